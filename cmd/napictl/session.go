package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/wippyai/refbridge/errors"
	"github.com/wippyai/refbridge/heap"
	"github.com/wippyai/refbridge/host"
	"github.com/wippyai/refbridge/napi"
	"github.com/wippyai/refbridge/resource"
)

const helpText = `commands:
  obj                 create an object
  str <text>          create a string
  newref <v> [count]  create a reference to value handle v
  ref <r>             increment reference r
  unref <r>           decrement reference r
  del <r>             delete reference r
  get <r>             read reference r into a value handle
  open [esc]          enter a call, or open a (escapable) scope
  close               close the innermost scope, exiting the call at the base
  escape <v>          escape value v from the innermost scope
  gc                  run a collection
  err                 show the last error
  ls                  list live handles
  help                show this text`

// session drives one addon env from typed commands. Every command records
// its status as the env's last error, like a host function would.
type session struct {
	bridge *host.Bridge
	addon  *host.Addon
	call   *napi.Call
}

func newSession(b *host.Bridge, a *host.Addon) *session {
	return &session{bridge: b, addon: a}
}

func (s *session) env() *napi.Env { return s.addon.Env() }

// exec runs one command line and returns its output.
func (s *session) exec(ctx context.Context, line string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}
	cmd, args := fields[0], fields[1:]

	out, err := s.dispatch(ctx, cmd, args)
	if cmd != "err" && cmd != "help" && cmd != "ls" {
		s.env().Status(err)
	}
	return out, err
}

func (s *session) dispatch(ctx context.Context, cmd string, args []string) (string, error) {
	env := s.env()
	h := s.bridge.Heap()

	switch cmd {
	case "help":
		return helpText, nil

	case "obj":
		return s.vend(heap.CellValue(h.NewObject(s.bridge.Realm(), nil))), nil

	case "str":
		return s.vend(heap.CellValue(h.NewString(strings.Join(args, " ")))), nil

	case "newref":
		vh, err := handleArg(args, 0)
		if err != nil {
			return "", err
		}
		count := uint64(0)
		if len(args) > 1 {
			if count, err = strconv.ParseUint(args[1], 10, 32); err != nil {
				return "", errors.InvalidArg(errors.PhaseReference, "count must be a number")
			}
		}
		v, err := env.Resolve(vh)
		if err != nil {
			return "", err
		}
		r, err := env.CreateReference(v, uint32(count))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("ref %d count %d", r.Handle(), r.Count()), nil

	case "ref", "unref":
		rh, err := handleArg(args, 0)
		if err != nil {
			return "", err
		}
		var n uint32
		if cmd == "ref" {
			n, err = env.ReferenceRef(rh)
		} else {
			n, err = env.ReferenceUnref(rh)
		}
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("ref %d count %d", rh, n), nil

	case "del":
		rh, err := handleArg(args, 0)
		if err != nil {
			return "", err
		}
		if err := env.DeleteReference(rh); err != nil {
			return "", err
		}
		return fmt.Sprintf("ref %d deleted", rh), nil

	case "get":
		rh, err := handleArg(args, 0)
		if err != nil {
			return "", err
		}
		v, err := env.ReferenceValue(rh)
		if err != nil {
			return "", err
		}
		if v.IsEmpty() {
			return "<empty>", nil
		}
		return s.vend(v), nil

	case "open":
		return s.open(len(args) > 0 && args[0] == "esc")

	case "close":
		return s.close()

	case "escape":
		vh, err := handleArg(args, 0)
		if err != nil {
			return "", err
		}
		if s.call == nil {
			return "", errors.ScopeMismatch(0, "no call is active")
		}
		eh, err := s.call.Scope().Escape(vh)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("value %d escaped", eh), nil

	case "gc":
		st := s.bridge.Collect(ctx)
		return fmt.Sprintf("live %d, swept %d, notified %d", st.Live, st.Swept, st.Notified), nil

	case "err":
		info := env.LastErrorInfo()
		if info.Message == "" {
			return fmt.Sprintf("status %d", info.Code), nil
		}
		return fmt.Sprintf("status %d: %s", info.Code, info.Message), nil

	case "ls":
		return s.list(), nil
	}
	return "", errors.NotFound(errors.PhaseHost, "command", cmd)
}

func (s *session) vend(v heap.Value) string {
	var h resource.Handle
	if s.call != nil {
		h = s.call.Vend(v)
	} else {
		h = s.env().Vend(v)
	}
	return fmt.Sprintf("value %d %s", h, v)
}

func (s *session) open(escapable bool) (string, error) {
	if s.call == nil {
		call, err := s.env().Enter()
		if err != nil {
			return "", err
		}
		s.call = call
		return fmt.Sprintf("call entered, scope %d", call.Scope().Handle()), nil
	}
	var (
		sc  *napi.HandleScope
		err error
	)
	if escapable {
		sc, err = s.call.OpenEscapableScope()
	} else {
		sc, err = s.call.OpenScope()
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("scope %d opened", sc.Handle()), nil
}

func (s *session) close() (string, error) {
	if s.call == nil {
		return "", errors.ScopeMismatch(0, "no call is active")
	}
	top := s.call.Scope()
	if top.Parent() == nil {
		err := s.call.Exit()
		s.call = nil
		return "call exited", err
	}
	n := top.Len()
	if err := s.call.CloseScope(top); err != nil {
		return "", err
	}
	return fmt.Sprintf("scope %d closed, %d released", top.Handle(), n), nil
}

func (s *session) list() string {
	var b strings.Builder
	s.env().Handles().Each(func(h resource.Handle, k resource.Kind, v any) bool {
		fmt.Fprintf(&b, "%4d  %-8s %s\n", h, k, describe(v))
		return true
	})
	if b.Len() == 0 {
		return "no live handles"
	}
	return strings.TrimRight(b.String(), "\n")
}

func describe(v any) string {
	switch x := v.(type) {
	case heap.Value:
		return x.String()
	case *napi.Reference:
		mode := "weak"
		if x.IsStrong() {
			mode = "strong"
		}
		return fmt.Sprintf("count %d %s -> %s", x.Count(), mode, x.Value())
	case *napi.HandleScope:
		if x.Closed() {
			return "closed"
		}
		return fmt.Sprintf("%d values", x.Len())
	case *napi.Class:
		return "class " + x.Name()
	case interface{ Value() heap.Value }:
		return x.Value().String()
	}
	return fmt.Sprintf("%T", v)
}

func handleArg(args []string, i int) (resource.Handle, error) {
	if i >= len(args) {
		return 0, errors.InvalidArg(errors.PhaseHost, "missing handle argument")
	}
	n, err := strconv.ParseUint(args[i], 10, 32)
	if err != nil {
		return 0, errors.InvalidArg(errors.PhaseHost, "handle must be a number")
	}
	return resource.Handle(n), nil
}
