// Package module defines the contract every service module satisfies and the
// process-wide registry mains use to share ports between modules
package module

import (
	"fmt"
	"reflect"
)

// Module is what each services/*/module package returns from New
type Module interface {
	// Ports returns the module's port struct
	Ports() any

	// Name is the registry key
	Name() string
}

// PortsOf extracts T from m.Ports(), either directly or from an exported
// field of a ports struct
func PortsOf[T any](m Module) (T, bool) {
	var zero T
	p := m.Ports()
	if p == nil {
		return zero, false
	}
	if v, ok := p.(T); ok {
		return v, true
	}
	rv := reflect.ValueOf(p)
	if rv.Kind() != reflect.Struct {
		return zero, false
	}
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanInterface() {
			continue
		}
		if v, ok := f.Interface().(T); ok {
			return v, true
		}
	}
	return zero, false
}

// MustPortsOf panics when m does not expose T; only mains call it
func MustPortsOf[T any](m Module) T {
	if v, ok := PortsOf[T](m); ok {
		return v
	}
	panic("module: requested port not found on module " + m.Name())
}

// Resolve returns the registered ports for name, or builds the module and
// takes T from it when nothing is registered yet
func Resolve[T any](name string, build func() Module) T {
	if v, ok := PortsAs[T](name); ok {
		return v
	}
	m := build()
	v, ok := PortsOf[T](m)
	if !ok {
		panic(fmt.Sprintf("module: %s does not expose %T", m.Name(), v))
	}
	return v
}
