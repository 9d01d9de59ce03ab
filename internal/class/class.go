package class

import (
	"errors"
	"fmt"
)

// Kind tags a class as compiled into the host or defined at runtime.
type Kind uint8

const (
	KindNative  Kind = iota // compiled engine/game type
	KindDynamic             // script-authored subtype
)

func (k Kind) String() string {
	switch k {
	case KindNative:
		return "native"
	case KindDynamic:
		return "dynamic"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind accepts "native" or "dynamic". Empty means native.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "", "native":
		return KindNative, nil
	case "dynamic":
		return KindDynamic, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

var (
	ErrDuplicateClass = errors.New("class already defined")
	ErrUnknownSuper   = errors.New("unknown super class")
	ErrUnknownKind    = errors.New("unknown class kind")
	ErrEmptyName      = errors.New("empty class name")
)

// Class describes one type in the host reflection system. Classes are
// compared by pointer; the super chain always ends at a root with a nil
// super because a class can only name an already-defined parent.
type Class struct {
	name  string
	path  string
	super *Class
	kind  Kind
	depth int
}

func (c *Class) Name() string  { return c.name }
func (c *Class) Path() string  { return c.path }
func (c *Class) Super() *Class { return c.super }
func (c *Class) Kind() Kind    { return c.kind }

func (c *Class) IsNative() bool { return c.kind == KindNative }

// IsChildOf reports whether c equals other or descends from it.
func (c *Class) IsChildOf(other *Class) bool {
	if c == nil || other == nil || c.depth < other.depth {
		return false
	}
	for cur := c; cur != nil; cur = cur.super {
		if cur == other {
			return true
		}
	}
	return false
}

// Ancestors returns c followed by each super up to the root.
func (c *Class) Ancestors() []*Class {
	if c == nil {
		return nil
	}
	out := make([]*Class, 0, c.depth+1)
	for cur := c; cur != nil; cur = cur.super {
		out = append(out, cur)
	}
	return out
}

// NativeAncestor returns the first native class on c's chain, c included.
func (c *Class) NativeAncestor() *Class {
	for cur := c; cur != nil; cur = cur.super {
		if cur.IsNative() {
			return cur
		}
	}
	return nil
}

func (c *Class) String() string {
	if c == nil {
		return "None"
	}
	return c.name
}
