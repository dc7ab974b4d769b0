package repository

import (
	"context"

	"franchise-bootstrap/internal/bootstrap/domain/model"
)

// Provisioner defines the server-side operations a bootstrap run performs.
// Every operation after SelectDatabase acts on the selected database.
type Provisioner interface {
	// SelectDatabase binds the target database; connectivity and
	// authentication failures surface here.
	SelectDatabase(ctx context.Context, name string) error

	// CreateUser creates the principal. An existing user with the same name
	// is reported as errors.ErrDuplicateUser.
	CreateUser(ctx context.Context, user model.UserSpec) error

	// CreateCollection creates an empty collection. An existing collection
	// is reported as errors.ErrCollectionExists.
	CreateCollection(ctx context.Context, name string) error

	// Inspect reads the collections and users of the selected database.
	Inspect(ctx context.Context) (*model.State, error)
}

// EventPublisher announces finished bootstrap runs to other services
type EventPublisher interface {
	PublishCompleted(ctx context.Context, report *model.Report) error
}
