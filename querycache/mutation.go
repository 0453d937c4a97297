package querycache

import "time"

type MutationStatus string

const (
	MutationInFlight   MutationStatus = "in-flight"
	MutationCommitted  MutationStatus = "committed"
	MutationRolledBack MutationStatus = "rolled-back"
)

// Mutation is the bookkeeping record for one optimistic write. It exists
// from the moment the action fires until the network call settles, then is
// discarded; LastMutation keeps the most recent one for debugging.
type Mutation struct {
	ID        string
	EntityId  string
	Status    MutationStatus
	StartedAt time.Time
	SettledAt time.Time

	// query keys whose snapshots back this mutation's rollback
	AffectedKeys []QueryKey
}
