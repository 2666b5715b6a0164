// Package napi implements the reference and handle-scope subsystem of a
// native addon ABI on top of a garbage-collected heap.
//
// # References
//
// A Reference combines a weak observation of a managed value, an optional
// strong retention and a finalizer. The refcount selects the storage:
//
//	count == 0  weak:   Value() reads the weak slot, empty once collected
//	count >= 1  strong: Value() reads the strong handle
//
//	ref, _ := env.CreateReference(v, 1)
//	ref.Unref() // 1 -> 0, demoted to weak
//	ref.Ref()   // 0 -> 1, promoted back to strong
//
// Finalizers run at most once: when the heap sweeps the value, or when the
// reference is destroyed, whichever comes first.
//
// # Handle Scopes
//
// Values handed to native code are vended through an explicit Call, which
// carries the innermost open HandleScope:
//
//	call, _ := env.Enter()
//	defer call.Exit()
//
//	scope, _ := call.OpenScope()
//	h := call.Vend(v) // retained until scope closes
//	call.CloseScope(scope)
//
// # Errors
//
// Go callers get *errors.Error values. At the native boundary they become a
// Status recorded as the environment's last error:
//
//	return env.Status(err)
package napi
