package contextkeys

// contextKey is an unexported type to prevent collisions with context keys defined in
// other packages.
type contextKey string

// String makes contextKey satisfy the Stringer interface to assist with debugging.
func (c contextKey) String() string {
	return "franchise-bootstrap context key " + string(c)
}

// RunIDKey is the key for the bootstrap run identifier in context.Context
const RunIDKey = contextKey("runID")

// StepKey is the key for the bootstrap step currently executing
const StepKey = contextKey("step")

// DatabaseKey is the key for the target database name
const DatabaseKey = contextKey("database")
