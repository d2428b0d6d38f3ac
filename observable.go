package rset

import (
	"iter"
	"slices"
)

// DefaultResetThreshold is the share of touched items (relative to the
// collection size) above which resuming events emits a single Reset.
const DefaultResetThreshold = 0.5

type subscription[E any] struct {
	id int
	fn func(E)
}

// observers is a list of event handlers. Handlers added or removed while an
// event is being dispatched take effect for the next event.
type observers[E any] struct {
	subs   []subscription[E]
	lastID int
}

func (o *observers[E]) Subscribe(fn func(E)) (unsubscribe func()) {
	o.lastID++
	id := o.lastID
	o.subs = append(o.subs, subscription[E]{id, fn})
	return func() {
		o.subs = slices.DeleteFunc(o.subs, func(s subscription[E]) bool { return s.id == id })
	}
}

func (o *observers[E]) HasSubscribers() bool {
	return len(o.subs) > 0
}

func (o *observers[E]) notify(e E) {
	if len(o.subs) == 0 {
		return
	}
	for _, s := range slices.Clone(o.subs) {
		s.fn(e)
	}
}

// collectionEvents dispatches CollectionChange events and implements silent
// mode: while raising is disabled, touched positions accumulate and are
// replayed on resume.
type collectionEvents[T any] struct {
	observers[CollectionChange[T]]
	silent     bool
	analyze    bool
	structural bool
	touched    map[int]struct{}
	threshold  float64
}

func (ev *collectionEvents[T]) IsEventRaising() bool {
	return !ev.silent
}

func (ev *collectionEvents[T]) emit(chg CollectionChange[T]) {
	if ev.silent {
		if ev.analyze {
			ev.touch(chg)
		}
		return
	}
	ev.notify(chg)
}

func (ev *collectionEvents[T]) touch(chg CollectionChange[T]) {
	if chg.Action.IsStructural() {
		ev.structural = true
		return
	}
	if ev.touched == nil {
		ev.touched = make(map[int]struct{})
	}
	for i := range chg.NewItems {
		ev.touched[chg.NewIndex+i] = struct{}{}
	}
	for i := range chg.OldItems {
		ev.touched[chg.OldIndex+i] = struct{}{}
	}
}

// setRaising switches silent mode. When resuming an analyzed silent period,
// either one Reset or a series of Change events (one per contiguous run of
// touched positions) is emitted. items(start, count) returns current items.
func (ev *collectionEvents[T]) setRaising(enabled, analyze bool, size int, items func(start, count int) []T) {
	if enabled == !ev.silent {
		return
	}
	if !enabled {
		ev.silent = true
		ev.analyze = analyze
		ev.structural = false
		clear(ev.touched)
		return
	}

	ev.silent = false
	wasAnalyzing := ev.analyze
	ev.analyze = false
	if !wasAnalyzing {
		return
	}
	structural, touched := ev.structural, ev.touched
	ev.structural, ev.touched = false, nil

	if !structural && len(touched) == 0 {
		return
	}
	threshold := ev.threshold
	if threshold <= 0 {
		threshold = DefaultResetThreshold
	}
	if structural || float64(len(touched)) > threshold*float64(size) {
		ev.notify(CollectionChange[T]{Action: ActionReset, NewItems: items(0, size)})
		return
	}
	for start, count := range contiguousRuns(touched, size) {
		batch := items(start, count)
		ev.notify(CollectionChange[T]{
			Action:   ActionChange,
			NewItems: batch,
			NewIndex: start,
			OldItems: batch,
			OldIndex: start,
		})
	}
}

// contiguousRuns yields maximal runs of consecutive positions below size.
func contiguousRuns(set map[int]struct{}, size int) iter.Seq2[int, int] {
	positions := make([]int, 0, len(set))
	for i := range set {
		if i >= 0 && i < size {
			positions = append(positions, i)
		}
	}
	slices.Sort(positions)
	return func(yield func(int, int) bool) {
		for i := 0; i < len(positions); {
			j := i + 1
			for j < len(positions) && positions[j] == positions[j-1]+1 {
				j++
			}
			if !yield(positions[i], j-i) {
				return
			}
			i = j
		}
	}
}

// ObservableList is a List that reports every public mutation as exactly one
// CollectionChange event.
type ObservableList[T any] struct {
	List[T]
	events collectionEvents[T]
}

func NewObservableList[T any](items ...T) *ObservableList[T] {
	return &ObservableList[T]{List: List[T]{items: append([]T(nil), items...)}}
}

func (l *ObservableList[T]) Subscribe(fn func(CollectionChange[T])) (unsubscribe func()) {
	return l.events.Subscribe(fn)
}

// SetResetThreshold changes the share of touched items above which resuming
// events emits a Reset instead of Change runs.
func (l *ObservableList[T]) SetResetThreshold(v float64) {
	l.events.threshold = v
}

func (l *ObservableList[T]) IsEventRaising() bool {
	return l.events.IsEventRaising()
}

// SetEventRaising enables or disables events. With analyze, changes made while
// disabled are summarized when events are enabled again.
func (l *ObservableList[T]) SetEventRaising(enabled, analyze bool) {
	l.events.setRaising(enabled, analyze, len(l.items), l.slice)
}

func (l *ObservableList[T]) slice(start, count int) []T {
	return append([]T(nil), l.items[start:start+count]...)
}

func (l *ObservableList[T]) Add(item T, at int) error {
	if err := l.List.Add(item, at); err != nil {
		return err
	}
	if at < 0 {
		at = len(l.items) - 1
	}
	l.events.emit(CollectionChange[T]{Action: ActionAdd, NewItems: []T{item}, NewIndex: at, OldIndex: -1})
	return nil
}

// Append adds all items at the end with one Add event.
func (l *ObservableList[T]) Append(items ...T) {
	if len(items) == 0 {
		return
	}
	start := len(l.items)
	l.items = append(l.items, items...)
	l.events.emit(CollectionChange[T]{Action: ActionAdd, NewItems: slices.Clone(items), NewIndex: start, OldIndex: -1})
}

// Prepend adds all items at the start with one Add event.
func (l *ObservableList[T]) Prepend(items ...T) {
	if len(items) == 0 {
		return
	}
	l.items = slices.Insert(l.items, 0, items...)
	l.events.emit(CollectionChange[T]{Action: ActionAdd, NewItems: slices.Clone(items), NewIndex: 0, OldIndex: -1})
}

func (l *ObservableList[T]) RemoveAt(i int) (T, error) {
	item, err := l.List.RemoveAt(i)
	if err != nil {
		return item, err
	}
	l.events.emit(CollectionChange[T]{Action: ActionRemove, NewIndex: -1, OldItems: []T{item}, OldIndex: i})
	return item, nil
}

func (l *ObservableList[T]) Replace(item T, i int) (T, error) {
	prev, err := l.List.Replace(item, i)
	if err != nil {
		return prev, err
	}
	l.events.emit(CollectionChange[T]{Action: ActionReplace, NewItems: []T{item}, NewIndex: i, OldItems: []T{prev}, OldIndex: i})
	return prev, nil
}

func (l *ObservableList[T]) Move(from, to int) error {
	if err := l.List.Move(from, to); err != nil {
		return err
	}
	if from != to {
		item := l.items[to]
		l.events.emit(CollectionChange[T]{Action: ActionMove, NewItems: []T{item}, NewIndex: to, OldItems: []T{item}, OldIndex: from})
	}
	return nil
}

// Assign replaces all items with one Reset event.
func (l *ObservableList[T]) Assign(items ...T) {
	old := l.items
	l.items = append([]T(nil), items...)
	l.events.emit(CollectionChange[T]{Action: ActionReset, NewItems: slices.Clone(items), NewIndex: 0, OldItems: old, OldIndex: 0})
}

func (l *ObservableList[T]) Clear() {
	l.Assign()
}

// NotifyItemChange reports that the item at position i changed in place.
func (l *ObservableList[T]) NotifyItemChange(i int) error {
	if err := checkPos("list", i, len(l.items)); err != nil {
		return err
	}
	item := []T{l.items[i]}
	l.events.emit(CollectionChange[T]{Action: ActionChange, NewItems: item, NewIndex: i, OldItems: item, OldIndex: i})
	return nil
}
