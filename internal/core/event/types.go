package event

import "github.com/l1jgo/worldsingleton/internal/core/handle"

// WorldInitialized is emitted when a world finishes construction. Delivered
// on the next dispatch.
type WorldInitialized struct {
	World handle.ID
}

// WorldCleanup is published right before a world and the objects it owns
// are destroyed.
type WorldCleanup struct {
	World            handle.ID
	SessionEnded     bool
	CleanupResources bool
}

// ObjectDestroyed is emitted for every object swept from the host.
type ObjectDestroyed struct {
	Object handle.ID
	Name   string
}
