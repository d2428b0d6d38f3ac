package rset

import "fmt"

type (
	// Action is the kind of structural change a collection reports.
	Action int

	// CollectionChange describes one structural change of an ordered
	// collection. NewItems/NewIndex describe the state after the change,
	// OldItems/OldIndex the state before it.
	CollectionChange[T any] struct {
		Action   Action
		NewItems []T
		NewIndex int
		OldItems []T
		OldIndex int
	}

	// PropertyChange is fired by a Record after a Set/SetMany call (or a
	// nested entity change) with the new values of the affected fields.
	PropertyChange struct {
		Record  *Record
		Changed map[string]any
	}
)

const (
	ActionNone Action = iota
	ActionAdd
	ActionRemove
	ActionChange
	ActionReplace
	ActionMove
	ActionReset
)

func (v Action) String() string {
	switch v {
	case ActionNone:
		return "none"
	case ActionAdd:
		return "add"
	case ActionRemove:
		return "remove"
	case ActionChange:
		return "change"
	case ActionReplace:
		return "replace"
	case ActionMove:
		return "move"
	case ActionReset:
		return "reset"
	default:
		return fmt.Sprintf("invalid action %d", int(v))
	}
}

// IsStructural reports whether positions of items may have shifted.
func (v Action) IsStructural() bool {
	switch v {
	case ActionAdd, ActionRemove, ActionMove, ActionReset:
		return true
	default:
		return false
	}
}

func (chg CollectionChange[T]) String() string {
	return fmt.Sprintf("%v new=%d@%d old=%d@%d", chg.Action, len(chg.NewItems), chg.NewIndex, len(chg.OldItems), chg.OldIndex)
}
