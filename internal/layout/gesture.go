package layout

import (
	"fmt"

	"github.com/GregMSThompson/dashboard-backend/internal/errs"
	"github.com/GregMSThompson/dashboard-backend/internal/models"
)

// Tracker holds the drag/resize state of every widget of one dashboard.
// Widgets without an entry are idle. Not safe for concurrent use; callers
// serialise access per dashboard.
type Tracker struct {
	states map[string]models.GestureState
}

func NewTracker() *Tracker {
	return &Tracker{states: make(map[string]models.GestureState)}
}

func (t *Tracker) State(id string) models.GestureState {
	if s, ok := t.states[id]; ok {
		return s
	}
	return models.GestureIdle
}

// Begin moves id from idle into kind. Gestures only start in edit mode.
func (t *Tracker) Begin(id string, kind models.GestureState, editMode bool) error {
	if kind != models.GestureDragging && kind != models.GestureResizing {
		return errs.NewValidationError(fmt.Sprintf("unknown gesture %q", kind))
	}
	if !editMode {
		return errs.NewValidationError("widgets can only be moved in edit mode")
	}
	if cur := t.State(id); cur != models.GestureIdle {
		return errs.NewConflictError(fmt.Sprintf("widget %s is already %s", id, cur))
	}
	t.states[id] = kind
	return nil
}

// End moves id from kind back to idle.
func (t *Tracker) End(id string, kind models.GestureState) error {
	if cur := t.State(id); cur != kind {
		return errs.NewConflictError(fmt.Sprintf("widget %s is not %s", id, kind))
	}
	delete(t.states, id)
	return nil
}

// Active reports whether any widget is mid-gesture.
func (t *Tracker) Active() bool { return len(t.states) > 0 }

func (t *Tracker) Forget(id string) { delete(t.states, id) }

// Reset returns every widget to idle, e.g. when edit mode is switched off.
func (t *Tracker) Reset() { clear(t.states) }
