package rset

import "fmt"

// State is a record's position in its lifecycle.
type State int

const (
	StateDetached State = iota
	StateAdded
	StateChanged
	StateUnchanged
	StateDeleted
)

func (s State) String() string {
	switch s {
	case StateDetached:
		return "detached"
	case StateAdded:
		return "added"
	case StateChanged:
		return "changed"
	case StateUnchanged:
		return "unchanged"
	case StateDeleted:
		return "deleted"
	default:
		return fmt.Sprintf("invalid state %d", int(s))
	}
}

func ParseState(s string) (State, error) {
	for st := StateDetached; st <= StateDeleted; st++ {
		if st.String() == s {
			return st, nil
		}
	}
	return StateDetached, fmt.Errorf("invalid record state %q", s)
}

func (r *Record) State() State { return r.state }

// SetState sets the state directly. Marking an owned record Deleted keeps
// it in the owner until AcceptChanges.
func (r *Record) SetState(s State) {
	if r.state == s {
		return
	}
	r.state = s
	if r.owner != nil {
		r.owner.recordChanged(r)
	}
}

// updateState moves an unchanged record to Changed after a write, and back
// once every field is at its accepted value again.
func (r *Record) updateState() {
	switch {
	case len(r.changed) > 0 && r.state == StateUnchanged:
		r.state = StateChanged
	case len(r.changed) == 0 && r.state == StateChanged:
		r.state = StateUnchanged
	}
}

// AcceptChanges makes the current values the original ones. Without field
// names it also advances the state: Added and Changed become Unchanged;
// Deleted becomes Detached, and the record leaves its owner.
func (r *Record) AcceptChanges(fields ...string) {
	if len(fields) > 0 {
		for _, name := range fields {
			delete(r.changed, name)
		}
		r.updateState()
		return
	}
	if r.state == StateDeleted && r.owner != nil {
		if _, err := r.owner.RemoveAt(r.pos); err != nil {
			r.log().Warn("rset: cannot remove deleted record", "pos", r.pos, "err", err)
		}
	}
	r.accept()
}

func (r *Record) accept() {
	clear(r.changed)
	switch r.state {
	case StateDeleted:
		r.state = StateDetached
	case StateAdded, StateChanged:
		r.state = StateUnchanged
	}
	r.acceptedState = r.state
}

// RejectChanges restores the named fields (all changed fields, when none
// are given) to their original values. Rejecting everything also restores
// the state of the last accept.
func (r *Record) RejectChanges(fields ...string) {
	names := fields
	if len(names) == 0 {
		names = r.ChangedFields()
	}
	restored := make(map[string]any)
	r.rejecting = true
	for _, name := range names {
		cf, ok := r.changed[name]
		if !ok {
			continue
		}
		delete(r.changed, name)
		restored[name] = cf.value
		if cf.byLink {
			switch child := cf.value.(type) {
			case *Record:
				child.RejectChanges()
			case *RecordSet:
				child.RejectChanges()
			}
			continue
		}
		view := r.raw()
		switch {
		case cf.had:
			if err := view.Set(name, cf.raw); err != nil {
				r.log().Warn("rset: cannot restore field", "field", name, "err", err)
			}
		case r.owner == nil && view.Has(name):
			if f, ok := r.field(name); ok && f.HasDeclaredDefault() {
				_ = view.Set(name, wireDefault(f))
			} else {
				_ = r.RemoveField(name)
			}
		}
		r.invalidate(name)
	}
	r.rejecting = false

	if len(fields) == 0 || len(r.changed) == 0 {
		r.state = r.acceptedState
	}
	if len(restored) > 0 {
		r.notifyChange(restored)
	}
}
