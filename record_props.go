package rset

import "reflect"

// compute evaluates a computed property. Fields read during evaluation
// become its dependencies.
func (r *Record) compute(name string, prop Property) (any, error) {
	raw, err := r.rawValue(name)
	if err != nil {
		return nil, err
	}
	r.evaluating = append(r.evaluating, name)
	v := prop.Get(r, raw)
	r.evaluating = r.evaluating[:len(r.evaluating)-1]
	if r.model.CacheAll || cacheable(v) {
		r.store(name, v)
	}
	return v, nil
}

func (r *Record) trackRead(name string) {
	n := len(r.evaluating)
	if n == 0 {
		return
	}
	outer := r.evaluating[n-1]
	if outer == name {
		return
	}
	if r.deps == nil {
		r.deps = make(map[string]map[string]struct{})
	}
	set := r.deps[name]
	if set == nil {
		set = make(map[string]struct{})
		r.deps[name] = set
	}
	set[outer] = struct{}{}
}

// Dependents returns the properties whose cached values depend on name.
func (r *Record) Dependents(name string) []string {
	var res []string
	for dep := range r.deps[name] {
		res = append(res, dep)
	}
	return res
}

func (r *Record) store(name string, v any) {
	if r.cache == nil {
		r.cache = make(map[string]any)
	}
	if prev, ok := r.cache[name]; ok && prev == v {
		return
	}
	r.forget(name)
	r.cache[name] = v
	r.watchNested(name, v)
}

// invalidate drops the cached value of name and of everything depending
// on it, transitively.
func (r *Record) invalidate(name string) {
	visited := map[string]bool{name: true}
	queue := []string{name}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		r.forget(cur)
		for dep := range r.deps[cur] {
			if !visited[dep] {
				visited[dep] = true
				queue = append(queue, dep)
			}
		}
	}
}

func (r *Record) forget(name string) {
	delete(r.cache, name)
	if unsub := r.nested[name]; unsub != nil {
		unsub()
		delete(r.nested, name)
	}
}

func (r *Record) forgetAll() {
	for name := range r.cache {
		r.forget(name)
	}
	clear(r.deps)
}

// watchNested makes changes inside a nested entity count as changes of the
// field holding it.
func (r *Record) watchNested(name string, v any) {
	var unsub func()
	switch child := v.(type) {
	case *Record:
		unsub = child.Subscribe(func(PropertyChange) { r.childChanged(name, child) })
	case *RecordSet:
		unsub = child.Subscribe(func(CollectionChange[*Record]) { r.childChanged(name, child) })
	default:
		return
	}
	if r.nested == nil {
		r.nested = make(map[string]func())
	}
	r.nested[name] = unsub
}

func (r *Record) childChanged(name string, child any) {
	if r.rejecting {
		return
	}
	view := r.raw()
	had := view.Has(name)
	var prevRaw any
	if had {
		prevRaw = view.Get(name)
	}
	if had {
		r.resync(view, name, child)
	}
	if _, was := r.changed[name]; !was {
		if r.changed == nil {
			r.changed = make(map[string]changedField)
		}
		r.changed[name] = changedField{raw: prevRaw, value: child, had: had, byLink: true}
	}
	for dep := range r.deps[name] {
		r.invalidate(dep)
	}
	r.updateState()
	r.notifyChange(map[string]any{name: child})
}

func isEntityValue(v any) bool {
	switch v.(type) {
	case *Record, *RecordSet:
		return true
	}
	return false
}

func entityRawData(v any) any {
	switch v := v.(type) {
	case *Record:
		return v.RawData()
	case *RecordSet:
		return v.RawData()
	}
	return nil
}

// cacheable reports whether a computed value is worth caching without
// CacheAll: reference-typed and struct values are, scalars are not.
func cacheable(v any) bool {
	if v == nil {
		return false
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Pointer, reflect.Struct, reflect.Array:
		return true
	}
	return false
}
