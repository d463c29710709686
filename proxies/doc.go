// Package proxies synthesizes implementations of Go types at run time.
//
// Given the capability set of a type (its methods and properties, see the
// descriptor package) a synthesizer builds a dispatch table and caches it
// process-wide. Four strategies exist, each in its own package:
//
//   - stub: every property gets a backing slot, abstract methods report
//     that they are not implemented, concrete methods keep their bodies.
//   - forward: every method of an interface forwards to a source object.
//   - lazy: property access on a concrete type is deferred to an instance
//     built on first use by a factory.
//   - mock: every method is recorded by an invocation recorder and answered
//     by configurable rules.
//
// # Types and objects
//
// Go cannot declare named types at run time, so a synthesized type is a
// *TypeHandle and an instance is an *Object. Members are reached dynamically:
//
//	obj, _ := stub.Of[Greeter]()
//	_ = obj.Set("Name", "Name!")
//	name, _ := obj.Get("Name")
//	out, err := obj.Call("Greet", "world")
//
// Arguments are checked against the declared parameter types before the
// body runs.
//
// # Cache
//
// Every synthesizer goes through Define, which guarantees that a given
// (strategy, target, source, key) combination is synthesized once and that
// the same handle is returned afterwards. A failed synthesis caches nothing.
//
// The engine is created on first use from config.Default, or explicitly
// with Init:
//
//	cfg := config.FromEnv()
//	if err := proxies.Init(cfg); err != nil {
//	    return err
//	}
//	defer proxies.Reset()
package proxies
