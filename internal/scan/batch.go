package scan

import "github.com/wtengine/wtengine/internal/wtree"

// Batch accumulates everything one commit will apply: raw stat observations
// from the walk or the fs-event stream, and engine-initiated mutations
// (spec §4.D). The commit loop drains whatever has queued up since the last
// commit into a Batch and hands it to Commit in a single critical section
// (spec §4.C "Commit").
type Batch struct {
	Observations []Observation
	Mutations    []wtree.Mutation
}

// NewBatch returns an empty Batch.
func NewBatch() *Batch {
	return &Batch{}
}

// AddObservation queues a freshly-stat'd path.
func (b *Batch) AddObservation(o Observation) {
	b.Observations = append(b.Observations, o)
}

// AddMutation queues an engine-initiated change.
func (b *Batch) AddMutation(m wtree.Mutation) {
	b.Mutations = append(b.Mutations, m)
}

// Empty reports whether the batch has nothing to commit.
func (b *Batch) Empty() bool {
	return len(b.Observations) == 0 && len(b.Mutations) == 0
}
