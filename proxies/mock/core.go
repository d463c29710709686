package mock

import (
	"reflect"
	"slices"
	"sync"

	"github.com/on-the-ground/proxy_ive_go/proxies/model"
)

// Invocation is one recorded call.
type Invocation struct {
	Method       string
	Params       []any
	GenericTypes []reflect.Type
	At           model.TimeSpan
}

// Predicate decides whether a rule applies to a call.
type Predicate func(Invocation) bool

// Response computes the value a call returns. Methods with several results
// expect a []any holding one value per result.
type Response func(genericTypes []reflect.Type, params []any) any

type rule struct {
	match   Predicate
	respond Response
}

// Recorder is the view of a mock used to configure and inspect it.
type Recorder interface {
	AddSetup(method string, match Predicate, respond Response)
	CleanSetups()
	ClearCalls()
	CallsMade() []Invocation
	CallsTo(method string) []Invocation
}

// Core records invocations and answers them from setup rules. All of its
// state is guarded by one mutex.
type Core struct {
	mu     sync.Mutex
	calls  []Invocation
	setups map[string][]rule
}

var _ Recorder = (*Core)(nil)

func NewCore() *Core {
	return &Core{setups: make(map[string][]rule)}
}

// Record appends the call and picks the first matching rule for method in
// one critical section. The response runs after the lock is released.
// ok is false when no rule matched.
func (c *Core) Record(method string, genericTypes []reflect.Type, params []any) (result any, ok bool) {
	c.mu.Lock()
	inv := Invocation{
		Method:       method,
		Params:       params,
		GenericTypes: genericTypes,
		At:           model.Now(),
	}
	c.calls = append(c.calls, inv)

	var selected *rule
	for i, r := range c.setups[method] {
		if r.match == nil || r.match(inv) {
			selected = &c.setups[method][i]
			break
		}
	}
	var respond Response
	if selected != nil {
		respond = selected.respond
	}
	c.mu.Unlock()

	if selected == nil {
		return nil, false
	}
	if respond == nil {
		return nil, true
	}
	return respond(genericTypes, params), true
}

// AddSetup appends a rule for method. Rules are tried in insertion order
// and stay in place after matching. A nil match matches every call, a nil
// respond returns zero values. match runs under the core lock and must not
// call back into the core.
func (c *Core) AddSetup(method string, match Predicate, respond Response) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setups[method] = append(c.setups[method], rule{match: match, respond: respond})
}

func (c *Core) CleanSetups() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setups = make(map[string][]rule)
}

func (c *Core) ClearCalls() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = nil
}

// CallsMade returns a snapshot of the recorded calls in order.
func (c *Core) CallsMade() []Invocation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.calls)
}

// CallsTo returns the recorded calls of one method in order.
func (c *Core) CallsTo(method string) []Invocation {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Invocation
	for _, inv := range c.calls {
		if inv.Method == method {
			out = append(out, inv)
		}
	}
	return out
}
