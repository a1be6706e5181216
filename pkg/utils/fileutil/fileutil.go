package fileutil

// Releaser provides the Release method to release a file lock.
type Releaser interface {
	Release() error
}
