// Package sensors implements the deferrable task variants. Each sensor
// performs one fast poke in Execute, suspends with a trigger when the
// condition is not met yet, and decides the final outcome when resumed with
// the trigger's event.
package sensors

import (
	"github.com/go-playground/validator/v10"

	"github.com/lodeflow/sentinel/pkg/events"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// PredicateFunc is a user-supplied check over the matched listing; it is
// evaluated sensor-side on every resume so re-deferral picks up changes.
type PredicateFunc func(files []events.ObjectMeta) bool
