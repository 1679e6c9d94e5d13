package notification

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrInvalidConfig reports a configuration mistake detected at call time.
var ErrInvalidConfig = errors.New("invalid subscription configuration")

// VersionOverrides maps resource names to the version notifications about
// them must be delivered in. Names match case-insensitively. The zero value
// is an empty table ready for use.
type VersionOverrides struct {
	mu       sync.RWMutex
	versions map[string]string
}

// NewVersionOverrides creates an empty override table.
func NewVersionOverrides() *VersionOverrides {
	return &VersionOverrides{versions: make(map[string]string)}
}

// Set pins resourceName to version, replacing any earlier entry.
func (o *VersionOverrides) Set(resourceName, version string) error {
	name := strings.TrimSpace(resourceName)
	if name == "" {
		return fmt.Errorf("%w: resource name is required", ErrInvalidConfig)
	}
	v := strings.TrimSpace(version)
	if v == "" {
		return fmt.Errorf("%w: version for %q is required", ErrInvalidConfig, name)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.versions == nil {
		o.versions = make(map[string]string)
	}
	o.versions[strings.ToLower(name)] = v
	return nil
}

// SetAll applies every entry of m. It stops at the first invalid entry;
// entries applied before it are kept.
func (o *VersionOverrides) SetAll(m map[string]string) error {
	for name, version := range m {
		if err := o.Set(name, version); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the pinned version for resourceName.
func (o *VersionOverrides) Lookup(resourceName string) (string, bool) {
	if o == nil {
		return "", false
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.versions[strings.ToLower(strings.TrimSpace(resourceName))]
	return v, ok
}

// Delete removes the entry for resourceName.
func (o *VersionOverrides) Delete(resourceName string) {
	if o == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.versions, strings.ToLower(strings.TrimSpace(resourceName)))
}

// Len returns the number of entries.
func (o *VersionOverrides) Len() int {
	if o == nil {
		return 0
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.versions)
}
