package host

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/refbridge/errors"
	"github.com/wippyai/refbridge/heap"
	"github.com/wippyai/refbridge/napi"
	"github.com/wippyai/refbridge/resource"
)

// Addon is one loaded native module: its env and, when loaded from wasm,
// its module instance.
type Addon struct {
	bridge  *Bridge
	env     *napi.Env
	module  api.Module
	exports *napi.Reference
	logger  *zap.Logger

	// ctx is the context of the host call or bridge operation in flight;
	// guest finalizers run on it.
	ctx context.Context

	name   string
	handle resource.Handle
}

func (a *Addon) Name() string { return a.name }

func (a *Addon) Env() *napi.Env { return a.env }

// Handle is the env handle the addon passes to host functions.
func (a *Addon) Handle() resource.Handle { return a.handle }

// Module returns the wasm instance, or nil for attached addons.
func (a *Addon) Module() api.Module { return a.module }

// Exports returns the value registration produced, or empty.
func (a *Addon) Exports() heap.Value {
	if a.exports == nil {
		return heap.Value{}
	}
	return a.exports.Value()
}

func (a *Addon) register(ctx context.Context) error {
	call, err := a.env.Enter()
	if err != nil {
		return err
	}
	exports := a.bridge.heap.NewObject(a.bridge.realm, nil)
	eh := call.Vend(heap.CellValue(exports))

	res, err := a.module.ExportedFunction(registerExport).Call(ctx, uint64(a.handle), uint64(eh))
	if err != nil {
		_ = call.Exit()
		return errors.Load("run "+registerExport, err)
	}

	v := heap.CellValue(exports)
	if h := resource.Handle(uint32(res[0])); h != 0 {
		if v, err = call.Resolve(h); err != nil {
			_ = call.Exit()
			return errors.Load(registerExport+" returned an invalid value", err)
		}
	}
	if a.exports, err = a.env.CreateReference(v, 1); err != nil {
		_ = call.Exit()
		return err
	}
	return call.Exit()
}

// Call invokes a guest export inside a native call, so values the guest
// creates are scoped to the invocation.
func (a *Addon) Call(ctx context.Context, export string, params ...uint64) ([]uint64, error) {
	if a.module == nil {
		return nil, errors.NotFound(errors.PhaseHost, "module for addon", a.name)
	}
	fn := a.module.ExportedFunction(export)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseHost, "export", export)
	}
	call, err := a.env.Enter()
	if err != nil {
		return nil, err
	}
	a.ctx = ctx
	res, err := fn.Call(ctx, params...)
	if exitErr := call.Exit(); err == nil && exitErr != nil {
		err = exitErr
	}
	return res, err
}

// finalizer returns a FinalizeFunc dispatching to the guest's finalize
// export with cb, or nil when cb is 0.
func (a *Addon) finalizer(cb uint32) napi.FinalizeFunc {
	if cb == 0 {
		return nil
	}
	return func(_ *napi.Env, data, hint any) {
		d, _ := data.(uint32)
		h, _ := hint.(uint32)
		a.finalize(cb, d, h)
	}
}

func (a *Addon) finalize(cb, data, hint uint32) {
	if a.module == nil {
		return
	}
	fn := a.module.ExportedFunction(finalizeExport)
	if fn == nil {
		a.logger.Warn("addon has finalizers but no finalize export", zap.Uint32("cb", cb))
		return
	}
	if _, err := fn.Call(a.ctx, uint64(cb), uint64(data), uint64(hint)); err != nil {
		a.logger.Warn("guest finalizer failed",
			zap.Uint32("cb", cb),
			zap.Uint32("data", data),
			zap.Error(err))
	}
}

func (a *Addon) memory() api.Memory {
	if a.module == nil {
		return nil
	}
	return a.module.ExportedMemory(memoryExport)
}
