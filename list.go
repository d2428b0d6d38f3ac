package rset

import "iter"

// List is an ordered collection of items. It is the base of Format and
// ObservableList.
type List[T any] struct {
	items []T
}

// NewList returns a list holding a copy of items.
func NewList[T any](items ...T) *List[T] {
	return &List[T]{items: append([]T(nil), items...)}
}

func (l *List[T]) Count() int { return len(l.items) }

func (l *List[T]) At(i int) (T, error) {
	if err := checkPos("list", i, len(l.items)); err != nil {
		var zero T
		return zero, err
	}
	return l.items[i], nil
}

// Items returns a copy of the items.
func (l *List[T]) Items() []T {
	return append([]T(nil), l.items...)
}

func (l *List[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i, item := range l.items {
			if !yield(i, item) {
				return
			}
		}
	}
}

// Add inserts item at the given position. Negative at appends.
func (l *List[T]) Add(item T, at int) error {
	if at > len(l.items) {
		return posErrf("list", at, len(l.items))
	}
	l.items = insertAt(l.items, at, item)
	return nil
}

func (l *List[T]) RemoveAt(i int) (T, error) {
	var zero T
	if err := checkPos("list", i, len(l.items)); err != nil {
		return zero, err
	}
	item := l.items[i]
	l.items = removeAt(l.items, i)
	return item, nil
}

// Replace puts item at position i and returns the previous item.
func (l *List[T]) Replace(item T, i int) (T, error) {
	var zero T
	if err := checkPos("list", i, len(l.items)); err != nil {
		return zero, err
	}
	prev := l.items[i]
	l.items[i] = item
	return prev, nil
}

func (l *List[T]) Move(from, to int) error {
	n := len(l.items)
	if err := checkPos("list", from, n); err != nil {
		return err
	}
	if err := checkPos("list", to, n); err != nil {
		return err
	}
	moveItem(l.items, from, to)
	return nil
}

func (l *List[T]) Clear() {
	clear(l.items)
	l.items = l.items[:0]
}

// IndexOf returns the position of the first item matching pred, or -1.
func (l *List[T]) IndexOf(pred func(T) bool) int {
	for i, item := range l.items {
		if pred(item) {
			return i
		}
	}
	return -1
}
