package dynamics

import (
	"sort"

	"github.com/snower/physync/actor"
	"github.com/snower/physync/engine"
)

type pairKey struct {
	a, b engine.BodyID
}

// makePairKey orders the ids so (A, B) and (B, A) share a key.
func makePairKey(a, b engine.BodyID) pairKey {
	if b < a {
		a, b = b, a
	}
	return pairKey{a: a, b: b}
}

// Events turns per-substep contacts and sleep flags into begin/stay/end and sleep/wake
// transitions, once per Step.
type Events struct {
	previousActivePairs map[pairKey]bool
	currentActivePairs  map[pairKey]bool

	sleepStates map[engine.BodyID]bool
}

func NewEvents() Events {
	return Events{
		previousActivePairs: make(map[pairKey]bool),
		currentActivePairs:  make(map[pairKey]bool),
		sleepStates:         make(map[engine.BodyID]bool),
	}
}

// recordContact marks the pair as touching during the current step.
func (e *Events) recordContact(a, b engine.BodyID) {
	e.currentActivePairs[makePairKey(a, b)] = true
}

// forget drops every trace of a removed body. No end event is emitted for its pairs.
func (e *Events) forget(id engine.BodyID) {
	delete(e.sleepStates, id)
	for pair := range e.previousActivePairs {
		if pair.a == id || pair.b == id {
			delete(e.previousActivePairs, pair)
		}
	}
	for pair := range e.currentActivePairs {
		if pair.a == id || pair.b == id {
			delete(e.currentActivePairs, pair)
		}
	}
}

// flush appends the transitions of the finished step to out, in a deterministic order:
// begin/stay by pair, end by pair, then sleep/wake by body order.
func (e *Events) flush(out []engine.Event, bodies []*actor.RigidBody) []engine.Event {
	for _, pair := range sortedPairs(e.currentActivePairs) {
		kind := engine.ContactBegin
		if e.previousActivePairs[pair] {
			kind = engine.ContactStay
		}
		out = append(out, engine.Event{Kind: kind, BodyA: pair.a, BodyB: pair.b})
	}

	var ended []pairKey
	for pair := range e.previousActivePairs {
		if !e.currentActivePairs[pair] {
			ended = append(ended, pair)
		}
	}
	sortPairs(ended)
	for _, pair := range ended {
		out = append(out, engine.Event{Kind: engine.ContactEnd, BodyA: pair.a, BodyB: pair.b})
	}

	e.previousActivePairs, e.currentActivePairs = e.currentActivePairs, e.previousActivePairs
	clear(e.currentActivePairs)

	for _, body := range bodies {
		id := engine.BodyID(body.ID)
		tracked, exists := e.sleepStates[id]
		e.sleepStates[id] = body.IsSleeping
		if !exists || tracked == body.IsSleeping {
			continue
		}

		kind := engine.BodyWake
		if body.IsSleeping {
			kind = engine.BodySleep
		}
		out = append(out, engine.Event{Kind: kind, BodyA: id})
	}

	return out
}

func sortedPairs(set map[pairKey]bool) []pairKey {
	pairs := make([]pairKey, 0, len(set))
	for pair := range set {
		pairs = append(pairs, pair)
	}
	sortPairs(pairs)
	return pairs
}

func sortPairs(pairs []pairKey) {
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].a != pairs[j].a {
			return pairs[i].a < pairs[j].a
		}
		return pairs[i].b < pairs[j].b
	})
}
