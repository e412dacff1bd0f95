package quota

// Store is the persistence boundary for authorization records and daily
// usage counters. Backed by Postgres in production and by MemoryStore in
// tests and single-node development.
type Store interface {
	// FindAuthorization returns the active record for an identity with its
	// model limits in position order, or (nil, nil) when none exists.
	FindAuthorization(identityID string) (*AuthorizationRecord, error)
	// UsageFor returns prompts consumed for (identity, model, day).
	// A missing counter reads as zero.
	UsageFor(identityID, modelName, day string) (int, error)
	// IncrementUsage adds one prompt to the counter, creating it at one
	// when absent.
	IncrementUsage(identityID, modelName, day string) error
}
