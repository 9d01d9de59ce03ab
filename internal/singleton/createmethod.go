package singleton

import (
	"fmt"
	"sync/atomic"
)

// CreateMethod selects where no-world singletons are allocated.
type CreateMethod int32

const (
	// CreateInInstance owns the object by the active game instance.
	CreateInInstance CreateMethod = 0
	// CreateTransient allocates in the transient package.
	CreateTransient CreateMethod = 1
)

func (m CreateMethod) String() string {
	switch m {
	case CreateInInstance:
		return "instance"
	case CreateTransient:
		return "transient"
	}
	return fmt.Sprintf("method(%d)", int32(m))
}

// createMethod backs the singletons.create_method setting. Written at
// startup, read on the game thread.
var createMethod atomic.Int32

// SetCreateMethod stores the allocation strategy. Unknown values are
// rejected.
func SetCreateMethod(m CreateMethod) error {
	if m != CreateInInstance && m != CreateTransient {
		return fmt.Errorf("invalid singleton create method %d (0 for instance, 1 for transient)", int32(m))
	}
	createMethod.Store(int32(m))
	return nil
}

// CurrentCreateMethod returns the allocation strategy.
func CurrentCreateMethod() CreateMethod {
	return CreateMethod(createMethod.Load())
}
