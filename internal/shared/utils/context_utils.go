package utils

import (
	"context"
	"errors"

	"franchise-bootstrap/internal/shared/contextkeys"
)

// Common context errors
var (
	ErrRunIDNotFound     = errors.New("runID not found in context")
	ErrRunIDNotString    = errors.New("runID in context is not a string")
	ErrStepNotFound      = errors.New("step not found in context")
	ErrStepNotString     = errors.New("step in context is not a string")
	ErrDatabaseNotFound  = errors.New("database not found in context")
	ErrDatabaseNotString = errors.New("database in context is not a string")
)

// GetRunIDFromContext retrieves the bootstrap run ID from the context.
// It returns an error if the run ID is not found or is not a string.
func GetRunIDFromContext(ctx context.Context) (string, error) {
	return getString(ctx, contextkeys.RunIDKey, ErrRunIDNotFound, ErrRunIDNotString)
}

// GetStepFromContext retrieves the current step name from the context.
func GetStepFromContext(ctx context.Context) (string, error) {
	return getString(ctx, contextkeys.StepKey, ErrStepNotFound, ErrStepNotString)
}

// GetDatabaseFromContext retrieves the target database name from the context.
func GetDatabaseFromContext(ctx context.Context) (string, error) {
	return getString(ctx, contextkeys.DatabaseKey, ErrDatabaseNotFound, ErrDatabaseNotString)
}

func getString(ctx context.Context, key interface{}, notFound, notString error) (string, error) {
	val := ctx.Value(key)
	if val == nil {
		return "", notFound
	}
	s, ok := val.(string)
	if !ok {
		return "", notString
	}
	return s, nil
}

// WithRunID returns a copy of ctx carrying the run ID
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, contextkeys.RunIDKey, runID)
}

// WithStep returns a copy of ctx carrying the step name
func WithStep(ctx context.Context, step string) context.Context {
	return context.WithValue(ctx, contextkeys.StepKey, step)
}

// WithDatabase returns a copy of ctx carrying the target database name
func WithDatabase(ctx context.Context, database string) context.Context {
	return context.WithValue(ctx, contextkeys.DatabaseKey, database)
}

// GetRunIDOrDefault returns the run ID or def when absent
func GetRunIDOrDefault(ctx context.Context, def string) string {
	if v, err := GetRunIDFromContext(ctx); err == nil {
		return v
	}
	return def
}

// HasRunID reports whether ctx carries a run ID
func HasRunID(ctx context.Context) bool {
	_, err := GetRunIDFromContext(ctx)
	return err == nil
}
