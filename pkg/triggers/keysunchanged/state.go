package keysunchanged

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/lodeflow/sentinel/pkg/events"
)

// State is the change-detection history threaded from sensor to trigger and
// across re-deferrals. It is never reconstructible from the namespace alone,
// so both sides carry it explicitly.
type State struct {
	Previous     map[string]struct{}
	Inactivity   time.Duration
	LastActivity time.Time
}

func NewState() State {
	return State{Previous: make(map[string]struct{})}
}

// StateFromKeys restores a state from its serialized fields.
func StateFromKeys(keys []string, inactivity time.Duration, lastActivity time.Time) State {
	state := NewState()
	for _, key := range keys {
		state.Previous[key] = struct{}{}
	}

	state.Inactivity = inactivity
	state.LastActivity = lastActivity

	return state
}

// Keys returns the previously observed object identifiers, sorted for
// stable serialization.
func (s *State) Keys() []string {
	keys := make([]string, 0, len(s.Previous))
	for key := range s.Previous {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}

// Advance folds one listing into the state: growth resets the accumulated
// inactivity, an unchanged set accrues one poke interval, and a shrink is
// either treated as a change (allowDelete) or reported as an error.
func (s *State) Advance(listing []events.ObjectMeta, pokeInterval time.Duration, allowDelete bool, logger *slog.Logger) error {
	current := make(map[string]struct{}, len(listing))
	for _, meta := range listing {
		current[meta.Key] = struct{}{}
	}

	var removed []string

	for key := range s.Previous {
		if _, ok := current[key]; !ok {
			removed = append(removed, key)
		}
	}

	added := false

	for key := range current {
		if _, ok := s.Previous[key]; !ok {
			added = true

			break
		}
	}

	switch {
	case len(removed) > 0:
		if !allowDelete {
			sort.Strings(removed)

			return fmt.Errorf("illegal deletion of %d objects (%v) detected between pokes", len(removed), removed)
		}

		logger.Warn("Objects deleted between pokes, treating as a change event",
			"removed_count", len(removed))

		s.reset(current)
	case added:
		s.reset(current)
	default:
		s.Inactivity += pokeInterval
	}

	return nil
}

// Satisfied reports whether the inactivity window has elapsed with enough
// objects present.
func (s *State) Satisfied(window time.Duration, minObjects int) bool {
	return s.Inactivity >= window && len(s.Previous) >= minObjects
}

func (s *State) reset(current map[string]struct{}) {
	s.Previous = current
	s.Inactivity = 0
	s.LastActivity = time.Now().UTC()
}
