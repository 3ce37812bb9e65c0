package ports

import (
	"context"
	"time"

	"librefind/domain/core/entities"
	"librefind/domain/events"
)

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	Publish(ctx context.Context, event events.DomainEvent) error
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// InventorySource supplies the device's installed packages. How the list is
// produced is up to the implementation.
type InventorySource interface {
	InstalledPackages(ctx context.Context) ([]entities.InstalledPackage, error)
}

// IgnoreListStore holds the package names a user excluded from scoring.
type IgnoreListStore interface {
	Ignored(ctx context.Context) (map[string]struct{}, error)
	Ignore(ctx context.Context, packageName string) error
	Restore(ctx context.Context, packageName string) error
	// Watch emits the full ignore set after every change until ctx ends.
	Watch(ctx context.Context) <-chan map[string]struct{}
}

// SessionProvider answers who, if anyone, is signed in.
type SessionProvider interface {
	CurrentUserID() (string, bool)
}

// Cache defines the interface for caching
type Cache interface {
	Get(ctx context.Context, key string) (interface{}, bool)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
