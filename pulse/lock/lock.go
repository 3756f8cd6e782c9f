// Package lock derives lock identifiers for the objects a job declares as
// locked, and decides whether two sets of identifiers conflict.
//
// Identifiers are plain strings compared by prefix: a coarse lock such as a
// bare "host:port" excludes every finer lock that starts with it, and vice
// versa. There is no lock tree; the prefix rule is the whole contract.
package lock

import (
	"fmt"
	"reflect"
	"strings"
)

// Null is the identifier of an absent object
const Null = "null"

// Endpoint is implemented by connection-like objects. Their identifier is
// "<host>:<port>" regardless of any other state they carry.
type Endpoint interface {
	Host() string
	Port() int
}

// Resolve returns the lock identifier for obj. It never panics: objects
// whose string form cannot be produced fall back to fmt's %v rendering,
// which reports the failure inline instead of propagating it.
func Resolve(obj interface{}) string {
	if IsNil(obj) {
		return Null
	}
	if ep, ok := obj.(Endpoint); ok {
		if id, ok := endpointID(ep); ok {
			return id
		}
	}
	return fmt.Sprint(obj)
}

// ResolveAll resolves every object in order. The result has the same length
// as objects; nil entries resolve to Null.
func ResolveAll(objects []interface{}) []string {
	ids := make([]string, len(objects))
	for i, obj := range objects {
		ids[i] = Resolve(obj)
	}
	return ids
}

// Conflicts reports whether any identifier in mine is a prefix of, or has
// as a prefix, any identifier in other.
func Conflicts(mine, other []string) bool {
	_, _, found := FirstConflict(mine, other)
	return found
}

// FirstConflict returns the first conflicting pair found, for logging.
func FirstConflict(mine, other []string) (m, o string, found bool) {
	for _, m := range mine {
		for _, o := range other {
			if strings.HasPrefix(o, m) || strings.HasPrefix(m, o) {
				return m, o, true
			}
		}
	}
	return "", "", false
}

func endpointID(ep Endpoint) (id string, ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return fmt.Sprintf("%s:%d", ep.Host(), ep.Port()), true
}

// IsNil reports whether obj is nil or a nil pointer, map, slice, func,
// channel or interface stored in a non-nil interface value.
func IsNil(obj interface{}) bool {
	if obj == nil {
		return true
	}
	v := reflect.ValueOf(obj)
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}
