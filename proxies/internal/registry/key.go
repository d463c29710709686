package registry

import (
	"strings"

	"github.com/on-the-ground/proxy_ive_go/proxies/model"
)

// Key identifies one synthesized type: a strategy applied to a target
// descriptor, optionally paired with a source descriptor (forwarding) or an
// auxiliary key (lazy key property).
type Key struct {
	Strategy model.Strategy
	Target   string
	Source   string
	Aux      string
}

func (k Key) path() []string {
	return []string{string(k.Strategy), k.Target, k.Source, k.Aux}
}

func (k Key) String() string {
	return strings.Join(k.path(), "/")
}

// Entry is one published (key, value) pair.
type Entry[V any] struct {
	Key   Key
	Value V
}
