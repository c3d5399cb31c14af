package transform

// ordered is a string-keyed map that remembers first-insertion order.
type ordered[V any] struct {
	keys  []string
	items map[string]V
}

func newOrdered[V any]() *ordered[V] {
	return &ordered[V]{items: make(map[string]V)}
}

func (o *ordered[V]) get(key string) (V, bool) {
	v, ok := o.items[key]
	return v, ok
}

// put stores v under key. Replacing an existing key keeps its position.
func (o *ordered[V]) put(key string, v V) {
	if _, ok := o.items[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.items[key] = v
}

func (o *ordered[V]) len() int { return len(o.keys) }

func (o *ordered[V]) each(fn func(key string, v V)) {
	for _, k := range o.keys {
		fn(k, o.items[k])
	}
}
