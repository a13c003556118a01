package bootstrap

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// Seeder loads reference data through the service built by the pipeline.
type Seeder[T any] interface {
	Seed(ctx context.Context, svc T) error
}

// SeederFunc adapts a bare function to the Seeder interface.
type SeederFunc[T any] func(ctx context.Context, svc T) error

// Seed executes the underlying function.
func (f SeederFunc[T]) Seed(ctx context.Context, svc T) error {
	return f(ctx, svc)
}

// ServiceProvider builds the application service on top of the initialized
// infrastructure. db is nil when the configured driver is not an SQL driver.
type ServiceProvider[T any] interface {
	Provide(ctx context.Context, db *sqlx.DB) (T, error)
}

// ServiceProviderFunc adapts a function to the ServiceProvider interface.
type ServiceProviderFunc[T any] func(ctx context.Context, db *sqlx.DB) (T, error)

// Provide executes the underlying function.
func (f ServiceProviderFunc[T]) Provide(ctx context.Context, db *sqlx.DB) (T, error) {
	return f(ctx, db)
}

// Modules groups the optional service and seeding hooks.
type Modules[T any] struct {
	Services ServiceProvider[T]
	Seeders  []Seeder[T]
}
