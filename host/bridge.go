package host

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/refbridge/errors"
	"github.com/wippyai/refbridge/heap"
	"github.com/wippyai/refbridge/napi"
	"github.com/wippyai/refbridge/resource"
)

// Bridge connects addons to one managed heap. It is not safe for
// concurrent use; the heap is single-threaded.
type Bridge struct {
	heap   *heap.Heap
	realm  *heap.Realm
	cfg    *Config
	logger *zap.Logger
	table  *resource.Table
	addons *resource.Typed[*Addon]
	byName map[string]*Addon
	host   api.Module
}

// New creates a bridge with its own heap and realm.
func New(cfg *Config) *Bridge {
	h := heap.New()
	name := "main"
	if cfg != nil && cfg.RealmName != "" {
		name = cfg.RealmName
	}
	table := resource.NewTable()
	return &Bridge{
		heap:   h,
		realm:  h.NewRealm(name),
		cfg:    cfg,
		logger: cfg.logger(),
		table:  table,
		addons: resource.NewTyped[*Addon](table, resource.KindEnv),
		byName: make(map[string]*Addon),
	}
}

func (b *Bridge) Heap() *heap.Heap { return b.heap }

func (b *Bridge) Realm() *heap.Realm { return b.realm }

// Namespace returns the host module name addons import from.
func (b *Bridge) Namespace() string { return b.cfg.namespace() }

// Instantiate registers the host module into r. It must run before Load.
func (b *Bridge) Instantiate(ctx context.Context, r wazero.Runtime) error {
	ns := b.cfg.namespace()
	if r.Module(ns) != nil {
		return errors.New(errors.PhaseHost, errors.KindRegistration).
			Detail("module %q is already instantiated", ns).
			Build()
	}

	builder := r.NewHostModuleBuilder(ns)
	for _, f := range b.functions() {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(f.fn, f.params, f.results).
			Export(f.name)
	}
	mod, err := builder.Instantiate(ctx)
	if err != nil {
		return errors.Registration(ns, "", err)
	}
	b.host = mod
	b.logger.Debug("host module instantiated", zap.String("namespace", ns))
	return nil
}

// Attach creates an addon environment with no wasm module behind it. It is
// used to drive the bridge from Go.
func (b *Bridge) Attach(name string) (*Addon, error) {
	if _, ok := b.byName[name]; ok {
		return nil, errors.New(errors.PhaseLoad, errors.KindRegistration).
			Status(errors.StatusInvalidArg).
			Detail("addon %q already loaded", name).
			Build()
	}
	l := b.logger.With(zap.String("addon", name))
	a := &Addon{
		bridge: b,
		name:   name,
		logger: l,
		ctx:    context.Background(),
	}
	a.env = napi.NewEnv(b.realm, napi.Module{Name: name, Filename: name, Version: 1}, b.cfg.envConfig(l))
	a.handle = b.addons.Insert(a)
	b.byName[name] = a
	return a, nil
}

// Load compiles and instantiates an addon under name and runs its
// registration export.
func (b *Bridge) Load(ctx context.Context, r wazero.Runtime, name string, wasm []byte) (*Addon, error) {
	if b.host == nil {
		return nil, errors.Load("host module is not instantiated", nil)
	}
	compiled, err := r.CompileModule(ctx, wasm)
	if err != nil {
		return nil, errors.Load("compile "+name, err)
	}
	if _, ok := compiled.ExportedFunctions()[registerExport]; !ok {
		_ = compiled.Close(ctx)
		return nil, errors.NotFound(errors.PhaseLoad, "export", registerExport)
	}

	a, err := b.Attach(name)
	if err != nil {
		_ = compiled.Close(ctx)
		return nil, err
	}
	a.ctx = ctx

	mod, err := r.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(name))
	if err != nil {
		b.detach(ctx, a)
		return nil, errors.Instantiation(err)
	}
	a.module = mod

	if err := a.register(ctx); err != nil {
		b.detach(ctx, a)
		return nil, err
	}
	b.logger.Info("addon loaded",
		zap.String("addon", name),
		zap.Uint32("env", uint32(a.handle)),
		zap.Int("references", a.env.Handles().Count(resource.KindReference)))
	return a, nil
}

// Addon returns a loaded addon by name.
func (b *Bridge) Addon(name string) (*Addon, bool) {
	a, ok := b.byName[name]
	return a, ok
}

// Addons returns every loaded addon in env handle order.
func (b *Bridge) Addons() []*Addon {
	var out []*Addon
	b.addons.Each(func(_ resource.Handle, a *Addon) bool {
		out = append(out, a)
		return true
	})
	return out
}

func (b *Bridge) lookup(ctx context.Context, env uint64) (*Addon, bool) {
	a, ok := b.addons.Get(resource.Handle(uint32(env)))
	if !ok || a.env.Closed() {
		return nil, false
	}
	a.ctx = ctx
	return a, true
}

// Collect runs a heap collection. Finalizers of addons run on ctx.
func (b *Bridge) Collect(ctx context.Context) heap.Stats {
	b.addons.Each(func(_ resource.Handle, a *Addon) bool {
		a.ctx = ctx
		return true
	})
	stats := b.heap.Collect()
	b.logger.Debug("collection",
		zap.Int("live", stats.Live),
		zap.Int("swept", stats.Swept),
		zap.Int("notified", stats.Notified))
	return stats
}

// Unload cleans up an addon's environment, running its pending finalizers,
// and closes its module.
func (b *Bridge) Unload(ctx context.Context, name string) error {
	a, ok := b.byName[name]
	if !ok {
		return errors.NotFound(errors.PhaseLoad, "addon", name)
	}
	b.detach(ctx, a)
	return nil
}

func (b *Bridge) detach(ctx context.Context, a *Addon) {
	a.ctx = ctx
	a.env.Cleanup()
	if a.module != nil {
		if err := a.module.Close(ctx); err != nil {
			a.logger.Warn("close addon module", zap.Error(err))
		}
		a.module = nil
	}
	b.addons.Remove(a.handle)
	delete(b.byName, a.name)
}

// Close unloads every addon and closes the host module.
func (b *Bridge) Close(ctx context.Context) error {
	for _, a := range b.Addons() {
		b.detach(ctx, a)
	}
	var err error
	if b.host != nil {
		err = b.host.Close(ctx)
		b.host = nil
	}
	if cerr := b.table.Close(); err == nil {
		err = cerr
	}
	return err
}
