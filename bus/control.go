package bus

import (
	"sync"

	"github.com/ausocean/utils/logging"
)

// Request is a control-channel command: a type string and command-specific
// fields (spec §6).
type Request struct {
	Type   string
	Fields map[string]interface{}
}

// Reply is a control-channel response (spec §6: "{success: bool, error?:
// string, ...}").
type Reply struct {
	Success bool
	Error   string
	Fields  map[string]interface{}
}

// Handler processes one Request and produces a Reply. Handlers must not
// block indefinitely: spec requires one outstanding request at a time per
// client.
type Handler func(Request) Reply

// Control is the request/reply channel: a closed-set dispatch table keyed
// by command type string (spec §9 "typed dispatch table"). Adding a
// command is adding an entry to the table; there is no dynamic dispatch.
type Control struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	log      logging.Logger
}

func newControl(log logging.Logger) *Control {
	return &Control{handlers: make(map[string]Handler), log: log}
}

// Register installs handler for command type name, replacing any existing
// handler for that name. Intended to be called once per command during
// composition (lifecycle.Orchestrator wiring), not concurrently with
// Dispatch.
func (c *Control) Register(name string, handler Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[name] = handler
}

// Dispatch looks up req.Type in the table and invokes its handler. An
// unregistered command type produces the structured error reply specified
// by spec §6 ("Unknown command type: <type>") rather than a panic or a
// dropped request.
func (c *Control) Dispatch(req Request) Reply {
	c.mu.RLock()
	h, ok := c.handlers[req.Type]
	c.mu.RUnlock()
	if !ok {
		return errorReply("Unknown command type: %s", req.Type)
	}
	return h(req)
}

// Registered reports whether a handler exists for name, useful for tests
// and for the lifecycle orchestrator to assert full wiring at startup.
func (c *Control) Registered(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.handlers[name]
	return ok
}
