// Package topology connects the ring metrics to a property graph.
//
// The ring package only knows integers. This package reads those integers
// from graph and node properties, and writes the resulting distance and edit
// metrics back as edge properties.
package topology

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

var packageLogger = log.WithField("package", "topology")

// Names of the properties read and written by this package.
const (
	PropAddrSpace = "addr_space"
	PropID        = "id"
	PropDist      = "dist"
	PropEdit      = "edit"
)

// ErrMissingProperty is wrapped by a MalformedPropertyError when the property
// is not set at all.
var ErrMissingProperty = errors.New("property not set")

// A PropertyGetter looks up string properties by name.
type PropertyGetter interface {
	GetProperty(name string) (string, bool)
}

// A Graph carries graph-level properties such as the address space.
type Graph interface {
	PropertyGetter
}

// A Node carries node properties such as its id.
type Node interface {
	PropertyGetter
}

// An Edge connects two nodes.
type Edge interface {
	Source() Node
	Target() Node
}

// MalformedPropertyError is returned when a property cannot be read as an
// integer.
type MalformedPropertyError struct {
	Name  string
	Value string
	Err   error
}

func (e *MalformedPropertyError) Error() string {
	if errors.Is(e.Err, ErrMissingProperty) {
		return fmt.Sprintf("property %q: %v", e.Name, e.Err)
	}

	return fmt.Sprintf("property %q has malformed integer value %q: %v",
		e.Name, e.Value, e.Err)
}

func (e *MalformedPropertyError) Unwrap() error {
	return e.Err
}

// IntProperty reads a base-10 integer property. Surrounding whitespace is
// ignored.
func IntProperty(p PropertyGetter, name string) (int64, error) {
	raw, ok := p.GetProperty(name)
	if !ok {
		return 0, &MalformedPropertyError{
			Name: name,
			Err:  ErrMissingProperty,
		}
	}

	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, &MalformedPropertyError{
			Name:  name,
			Value: raw,
			Err:   err,
		}
	}

	return v, nil
}
