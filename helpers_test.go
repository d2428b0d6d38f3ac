package rset

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func eq[T comparable](t testing.TB, a, e T) {
	if a != e {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}

func deepEqual[T any](t testing.TB, a, e T) {
	if diff := cmp.Diff(e, a); diff != "" {
		t.Helper()
		t.Errorf("** mismatch (-wanted +got):\n%s", diff)
	}
}

func noerr(t testing.TB, err error) {
	if err != nil {
		t.Helper()
		t.Fatalf("** unexpected error: %v", err)
	}
}

func isErr(t testing.TB, err, target error) {
	if !errors.Is(err, target) {
		t.Helper()
		t.Errorf("** got error %v, wanted %v", err, target)
	}
}

func isnil[T any, P ~*T](t testing.TB, a P) {
	if a != nil {
		t.Helper()
		t.Errorf("** got &%v, wanted nil", *a)
	}
}

func assertPanics(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	fn()
}

func plainRS(t testing.TB, rows ...map[string]any) *RecordSet {
	t.Helper()
	return must(NewRecordSet(RecordSetOptions{RawData: rows, IDProperty: "id"}))
}

func plainRec(t testing.TB, row map[string]any) *Record {
	t.Helper()
	return must(NewRecord(RecordOptions{RawData: row}))
}

type eventLog struct {
	events []CollectionChange[*Record]
}

func watch(rs *RecordSet) *eventLog {
	l := &eventLog{}
	rs.Subscribe(func(chg CollectionChange[*Record]) {
		l.events = append(l.events, chg)
	})
	return l
}

func (l *eventLog) actions() []Action {
	res := make([]Action, len(l.events))
	for i, e := range l.events {
		res[i] = e.Action
	}
	return res
}
