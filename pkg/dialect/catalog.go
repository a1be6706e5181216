package dialect

import (
	"strings"

	"k8s.io/klog/v2"
)

type entry struct {
	pattern string
	dialect Dialect
}

// Catalog is an ordered table mapping identity-substring patterns to
// dialects. Resolution walks registration order and returns the first match,
// so a specific model pattern must be registered before any family pattern
// it could collide with.
type Catalog struct {
	entries []entry
}

func NewCatalog() *Catalog {
	return &Catalog{}
}

func (c *Catalog) Register(pattern string, d Dialect) {
	c.entries = append(c.entries, entry{
		pattern: strings.ToUpper(pattern),
		dialect: d,
	})
}

// Resolve matches the identity string case-insensitively against registered
// patterns as a substring test. It is a pure function of the identity and
// registration order; nil means no dialect is known and dependent features
// must be disabled rather than guessed at.
func (c *Catalog) Resolve(identity string) Dialect {
	if strings.TrimSpace(identity) == "" {
		return nil
	}
	up := strings.ToUpper(identity)
	for _, e := range c.entries {
		if strings.Contains(up, e.pattern) {
			return e.dialect
		}
	}
	klog.V(3).InfoS("No dialect for identity", "identity", identity)
	return nil
}

// Len is the number of registered patterns.
func (c *Catalog) Len() int {
	return len(c.entries)
}
