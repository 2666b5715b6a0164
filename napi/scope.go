package napi

import (
	"go.uber.org/zap"

	"github.com/wippyai/refbridge/errors"
	"github.com/wippyai/refbridge/heap"
	"github.com/wippyai/refbridge/resource"
)

// HandleScope retains every value vended while it is the innermost open
// scope of its Call, and releases them together when it closes.
type HandleScope struct {
	call      *Call
	parent    *HandleScope
	values    []resource.Handle
	handle    resource.Handle
	depth     int
	escapable bool
	escaped   bool
	closed    bool
}

func (s *HandleScope) Handle() resource.Handle { return s.handle }

func (s *HandleScope) Parent() *HandleScope { return s.parent }

// Len returns the number of values the scope retains.
func (s *HandleScope) Len() int { return len(s.values) }

func (s *HandleScope) Closed() bool { return s.closed }

func (s *HandleScope) Escapable() bool { return s.escapable }

// Escape promotes the value behind h into the parent scope and returns its
// handle there. Only one escape per escapable scope is allowed.
func (s *HandleScope) Escape(h resource.Handle) (resource.Handle, error) {
	if s.closed || !s.escapable || s.parent == nil {
		return 0, errors.ScopeMismatch(uint32(s.handle), "escape requires an open escapable scope")
	}
	if s.escaped {
		return 0, errors.EscapeTwice(uint32(s.handle))
	}
	v, err := s.call.env.Resolve(h)
	if err != nil {
		return 0, err
	}
	s.escaped = true
	return s.parent.retain(v), nil
}

func (s *HandleScope) retain(v heap.Value) resource.Handle {
	h := s.call.env.handles.Insert(resource.KindValue, v)
	s.values = append(s.values, h)
	return h
}

// release drops the retained values. The scope's own entry stays in the
// table, marked closed, until the Call exits so its handle is not reissued
// to a later scope of the same Call.
func (s *HandleScope) release() {
	env := s.call.env
	for _, h := range s.values {
		env.handles.Remove(h)
	}
	s.values = nil
	s.closed = true
}

// Call is the context of one native invocation. It carries the innermost
// open handle scope; scopes never outlive the Call that opened them.
type Call struct {
	env     *Env
	base    *HandleScope
	top     *HandleScope
	retired []resource.Handle
	exited  bool
}

func (c *Call) Env() *Env { return c.env }

// Scope returns the innermost open scope, or nil after Exit.
func (c *Call) Scope() *HandleScope { return c.top }

// Exited reports whether Exit has run.
func (c *Call) Exited() bool { return c.exited }

// OpenScope pushes a new innermost scope.
func (c *Call) OpenScope() (*HandleScope, error) {
	return c.open(false)
}

// OpenEscapableScope pushes a scope from which one value may be escaped to
// its parent.
func (c *Call) OpenEscapableScope() (*HandleScope, error) {
	return c.open(true)
}

func (c *Call) open(escapable bool) (*HandleScope, error) {
	if c.exited {
		return nil, errors.ScopeMismatch(0, "call has already exited")
	}
	depth := 1
	if c.top != nil {
		depth = c.top.depth + 1
	}
	if limit := c.env.cfg.MaxScopeDepth; limit > 0 && depth > limit {
		return nil, errors.ScopeMismatch(0, "handle scope nesting limit exceeded")
	}

	s := &HandleScope{
		call:      c,
		parent:    c.top,
		depth:     depth,
		escapable: escapable,
	}
	s.handle = c.env.handles.Insert(resource.KindScope, s)
	c.top = s
	if c.base == nil {
		c.base = s
	}
	c.env.logger.Debug("handle scope opened",
		zap.Uint32("scope", uint32(s.handle)),
		zap.Int("depth", depth),
		zap.Bool("escapable", escapable))
	return s, nil
}

// CloseScope closes s, which must be the innermost open scope and not the
// base scope of the Call. All values it retains are released and its parent
// becomes current.
func (c *Call) CloseScope(s *HandleScope) error {
	if s == nil || s.call != c {
		return errors.ScopeMismatch(0, "scope does not belong to this call")
	}
	if s.closed {
		return errors.ScopeMismatch(uint32(s.handle), "scope is already closed")
	}
	if s != c.top {
		return errors.ScopeMismatch(uint32(s.handle), "scope is not the innermost open scope")
	}
	if s == c.base {
		return errors.ScopeMismatch(uint32(s.handle), "the base scope closes when the call exits")
	}
	c.pop()
	return nil
}

func (c *Call) pop() {
	s := c.top
	c.env.logger.Debug("handle scope closed",
		zap.Uint32("scope", uint32(s.handle)),
		zap.Int("released", len(s.values)))
	c.top = s.parent
	s.release()
	c.retired = append(c.retired, s.handle)
}

// Vend hands v to native code. The returned handle stays valid until the
// innermost open scope closes. With no scope open the handle is loose: it
// does not keep v alive and resolves to an error once v is collected.
func (c *Call) Vend(v heap.Value) resource.Handle {
	if c.top == nil {
		return c.env.Vend(v)
	}
	return c.top.retain(v)
}

// pin retains the cells among vs in the innermost scope so they survive a
// collection while a callback runs.
func (c *Call) pin(vs ...heap.Value) {
	if c == nil || c.top == nil {
		return
	}
	for _, v := range vs {
		if v.IsCell() {
			c.top.retain(v)
		}
	}
}

// Resolve returns the value behind a handle vended by this environment.
func (c *Call) Resolve(h resource.Handle) (heap.Value, error) {
	return c.env.Resolve(h)
}

// Exit closes every scope still open, including the base scope. Leaving
// inner scopes open is reported as a mismatch after they are released, as
// is exiting a call that is not the innermost active call.
func (c *Call) Exit() error {
	if c.exited {
		return errors.ScopeMismatch(0, "call has already exited")
	}
	c.exited = true

	var err error
	if c.top != c.base {
		err = errors.ScopeMismatch(uint32(c.top.handle), "handle scopes left open at call exit")
	}
	for c.top != nil {
		c.pop()
	}
	for _, h := range c.retired {
		c.env.handles.Remove(h)
	}
	c.retired = nil
	if !c.env.popCall(c) && err == nil {
		err = errors.ScopeMismatch(0, "call is not the innermost active call")
	}
	return err
}

// Scope looks up a scope by handle. Closed scopes remain resolvable, and
// report Closed, until their Call exits.
func (e *Env) Scope(h resource.Handle) (*HandleScope, error) {
	raw, ok := e.handles.GetKinded(h, resource.KindScope)
	if !ok {
		return nil, errors.InvalidHandle(errors.PhaseScope, uint32(h), "handle scope")
	}
	return raw.(*HandleScope), nil
}

// Call returns the Call the scope belongs to.
func (s *HandleScope) Call() *Call { return s.call }
