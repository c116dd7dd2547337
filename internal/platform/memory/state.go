package memory

import (
	"github.com/google/uuid"
	"github.com/phrazzld/scry-jobs/internal/domain"
)

type state struct {
	jobs        map[uuid.UUID]domain.Job
	goals       map[uuid.UUID]domain.Goal
	messages    map[uuid.UUID]domain.Message
	hierarchies map[uuid.UUID]domain.Hierarchy
	nodes       map[uuid.UUID]domain.Node
	cards       map[uuid.UUID]domain.Card
}

func newState() *state {
	return &state{
		jobs:        make(map[uuid.UUID]domain.Job),
		goals:       make(map[uuid.UUID]domain.Goal),
		messages:    make(map[uuid.UUID]domain.Message),
		hierarchies: make(map[uuid.UUID]domain.Hierarchy),
		nodes:       make(map[uuid.UUID]domain.Node),
		cards:       make(map[uuid.UUID]domain.Card),
	}
}

// clone copies every map. Entities are stored by value and their slice
// fields are replaced rather than mutated, so a shallow copy is enough.
func (st *state) clone() *state {
	return &state{
		jobs:        cloneMap(st.jobs),
		goals:       cloneMap(st.goals),
		messages:    cloneMap(st.messages),
		hierarchies: cloneMap(st.hierarchies),
		nodes:       cloneMap(st.nodes),
		cards:       cloneMap(st.cards),
	}
}

func cloneMap[V any](m map[uuid.UUID]V) map[uuid.UUID]V {
	out := make(map[uuid.UUID]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
