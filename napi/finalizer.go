package napi

// FinalizeFunc releases native resources tied to a managed value.
type FinalizeFunc func(env *Env, data, hint any)

// Finalizer is a callback plus the hint passed back to it.
//
// Call has no fired flag: the owner (a Reference or an Env) guarantees it
// is invoked at most once.
type Finalizer struct {
	Callback FinalizeFunc
	Hint     any
}

// Call invokes the callback. A nil callback is a no-op.
func (f Finalizer) Call(env *Env, data any) {
	if f.Callback != nil {
		f.Callback(env, data, f.Hint)
	}
}

// IsSet reports whether a callback is attached.
func (f Finalizer) IsSet() bool { return f.Callback != nil }
