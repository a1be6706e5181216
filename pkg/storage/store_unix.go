//go:build !windows
// +build !windows

package storage

import (
	"os/user"
	"path/filepath"

	"k8s.io/klog/v2"
)

var (
	storePath = getStorePath()
)

func getStorePath() string {
	if u, err := user.Current(); err == nil {
		return filepath.Join(u.HomeDir, "visagateway")
	} else {
		klog.ErrorS(err, "Failed to get home dir")
		return "./visagateway"
	}
}

func isEphemeralError(err error) bool {
	return false
}
