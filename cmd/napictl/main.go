package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/wippyai/refbridge/heap"
	"github.com/wippyai/refbridge/host"
	"github.com/wippyai/refbridge/napi"
	"github.com/wippyai/refbridge/resource"
)

func main() {
	var (
		wasmFile    = flag.String("wasm", "", "Path to addon wasm file")
		funcName    = flag.String("func", "", "Addon export to call after loading (optional)")
		namespace   = flag.String("ns", host.DefaultNamespace, "Host module namespace")
		maxDepth    = flag.Int("max-scopes", 0, "Maximum nested handle scopes per call (0 = unlimited)")
		collect     = flag.Bool("gc", false, "Run a collection before reporting")
		verbose     = flag.Bool("v", false, "Log lifecycle events")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *wasmFile == "" && !*interactive {
		fmt.Fprintln(os.Stderr, "Usage: napictl -wasm <addon.wasm> [-func name] [-gc] [-v]")
		fmt.Fprintln(os.Stderr, "       napictl [-wasm <addon.wasm>] -i  (interactive mode)")
		os.Exit(1)
	}

	logger := zap.NewNop()
	if *verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		logger = l
	}
	defer func() { _ = logger.Sync() }()
	heap.SetLogger(logger)
	napi.SetLogger(logger)
	host.SetLogger(logger)

	cfg := &host.Config{
		Logger:        logger,
		Namespace:     *namespace,
		MaxScopeDepth: *maxDepth,
		TraceHandles:  *verbose,
	}

	if *interactive {
		if err := runInteractive(cfg, *wasmFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg, *wasmFile, *funcName, *collect); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openBridge creates a runtime and bridge and loads wasmFile, or attaches
// an in-process env when wasmFile is empty.
func openBridge(ctx context.Context, cfg *host.Config, wasmFile string) (wazero.Runtime, *host.Bridge, *host.Addon, error) {
	rt := wazero.NewRuntime(ctx)
	b := host.New(cfg)
	if err := b.Instantiate(ctx, rt); err != nil {
		_ = rt.Close(ctx)
		return nil, nil, nil, fmt.Errorf("instantiate host module: %w", err)
	}

	var (
		a   *host.Addon
		err error
	)
	if wasmFile == "" {
		a, err = b.Attach("repl")
	} else {
		var data []byte
		data, err = os.ReadFile(wasmFile)
		if err != nil {
			err = fmt.Errorf("read file: %w", err)
		} else {
			a, err = b.Load(ctx, rt, "addon", data)
		}
	}
	if err != nil {
		_ = b.Close(ctx)
		_ = rt.Close(ctx)
		return nil, nil, nil, err
	}
	return rt, b, a, nil
}

func run(cfg *host.Config, wasmFile, funcName string, collect bool) error {
	ctx := context.Background()

	rt, b, a, err := openBridge(ctx, cfg, wasmFile)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)
	defer b.Close(ctx)

	fmt.Printf("Addon: %s (env %d)\n", wasmFile, a.Handle())
	fmt.Printf("Exports: %s\n", a.Exports())

	if funcName != "" {
		fmt.Printf("\nCalling %s...\n", funcName)
		res, err := a.Call(ctx, funcName, uint64(a.Handle()))
		if err != nil {
			return fmt.Errorf("call %s: %w", funcName, err)
		}
		fmt.Printf("Result: %v\n", res)
	}

	if collect {
		st := b.Collect(ctx)
		fmt.Printf("\nCollection: live %d, swept %d, notified %d\n", st.Live, st.Swept, st.Notified)
	}

	printReport(a)
	return nil
}

func printReport(a *host.Addon) {
	env := a.Env()
	h := env.Handles()
	fmt.Printf("\nReferences:   %d\n", h.Count(resource.KindReference))
	fmt.Printf("Scopes:       %d\n", h.Count(resource.KindScope))
	fmt.Printf("Scoped:       %d\n", h.Count(resource.KindValue))
	fmt.Printf("Loose:        %d\n", h.Count(resource.KindLooseValue))
	fmt.Printf("Classes:      %d\n", h.Count(resource.KindClass))

	info := env.LastErrorInfo()
	if info.Message == "" {
		fmt.Printf("Last error:   %d\n", info.Code)
	} else {
		fmt.Printf("Last error:   %d (%s)\n", info.Code, info.Message)
	}
}
