package passes

// grouped collects items by normalized key, merging duplicates and keeping
// first-seen order so that later stable sorts are deterministic.
type grouped[T any] struct {
	order []string
	items map[string]*T
}

func newGrouped[T any]() *grouped[T] {
	return &grouped[T]{items: make(map[string]*T)}
}

// add inserts item under key, or folds it into the existing entry.
func (g *grouped[T]) add(key string, item T, merge func(existing *T, incoming T)) {
	if existing, ok := g.items[key]; ok {
		merge(existing, item)
		return
	}
	g.order = append(g.order, key)
	g.items[key] = &item
}

func (g *grouped[T]) list() []T {
	out := make([]T, 0, len(g.order))
	for _, key := range g.order {
		out = append(out, *g.items[key])
	}
	return out
}
