// Package refbridge lets native addon code hold handles on values in a
// garbage-collected managed heap without breaking the collector.
//
// Native code never sees heap cells directly. It gets opaque handles that
// are either scoped to the native call that produced them or counted
// references that outlive it. A reference with a count above zero keeps
// its value alive; at zero it only observes the value and reads empty once
// the value is collected. A finalizer attached to a reference runs once,
// when the value is collected or the reference is deleted, whichever comes
// first.
//
// # Architecture Overview
//
//	refbridge/
//	├── heap/          Managed heap: values, cells, realms, strong and weak
//	│                  handles, structures, mark/sweep Collect
//	├── errors/        Status codes with their fixed messages, structured Error
//	├── resource/      Opaque handle tables with lifecycle observers
//	├── napi/          WeakSlot, Reference, HandleScope, Call, Env, Class
//	├── host/          wazero host module exposing napi to wasm addons
//	└── cmd/napictl/   Loader and interactive console
//
// # Handle lifetimes
//
// Values vended during a native call land in the innermost open handle
// scope of that call and stay reachable until the scope closes:
//
//	call, _ := env.Enter()
//	defer call.Exit()
//
//	scope, _ := call.OpenScope()
//	h := call.Vend(value)       // retained until CloseScope
//	_ = call.CloseScope(scope)  // h no longer resolves
//
// References are created from an Env and managed by count:
//
//	ref, _ := env.CreateReference(value, 0)  // weak: observes only
//	ref.Ref()                                // strong: keeps value alive
//	ref.Unref()                              // weak again
//	env.DeleteReference(ref.Handle())        // finalizer runs if it has not
//
// # Threading
//
// A heap and everything bound to it is single-threaded. Finalizers run on
// that thread, during heap.Collect or environment cleanup.
package refbridge
