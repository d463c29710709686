package registry

import (
	"sync"

	"github.com/on-the-ground/proxy_ive_go/proxies/model"
)

// Store holds published definitions. Implementations never evict.
type Store[V any] interface {
	Load(key Key) (value V, ok bool, err error)
	InsertIfAbsent(key Key, value V) (inserted bool, err error)
	Entries(strategy model.Strategy) ([]Entry[V], error)
	Reset() error
}

// trieStore nests one sync.Map per key segment:
// strategy -> target -> source -> aux -> Entry.
type trieStore[V any] struct {
	root *sync.Map
}

// NewMemoryStore returns an in-process trie store.
func NewMemoryStore[V any]() Store[V] {
	return &trieStore[V]{root: &sync.Map{}}
}

func (t *trieStore[V]) traverse(keys []string) (*sync.Map, string) {
	targetMap := t.root
	for _, k := range keys[:len(keys)-1] {
		v, ok := targetMap.Load(k)
		if !ok {
			v, _ = targetMap.LoadOrStore(k, &sync.Map{})
		}
		targetMap = v.(*sync.Map)
	}
	return targetMap, keys[len(keys)-1]
}

func (t *trieStore[V]) Load(key Key) (value V, ok bool, err error) {
	m, k := t.traverse(key.path())
	raw, ok := m.Load(k)
	if !ok {
		return value, false, nil
	}
	return raw.(Entry[V]).Value, true, nil
}

func (t *trieStore[V]) InsertIfAbsent(key Key, value V) (inserted bool, err error) {
	m, k := t.traverse(key.path())
	_, loaded := m.LoadOrStore(k, Entry[V]{Key: key, Value: value})
	return !loaded, nil
}

func (t *trieStore[V]) Entries(strategy model.Strategy) ([]Entry[V], error) {
	var out []Entry[V]
	collect := func(m *sync.Map) {
		walk(m, func(e Entry[V]) { out = append(out, e) })
	}
	if strategy == "" {
		collect(t.root)
		return out, nil
	}
	if sub, ok := t.root.Load(string(strategy)); ok {
		collect(sub.(*sync.Map))
	}
	return out, nil
}

func walk[V any](m *sync.Map, visit func(Entry[V])) {
	m.Range(func(_, v any) bool {
		switch v := v.(type) {
		case *sync.Map:
			walk(v, visit)
		case Entry[V]:
			visit(v)
		}
		return true
	})
}

func (t *trieStore[V]) Reset() error {
	t.root = &sync.Map{}
	return nil
}
