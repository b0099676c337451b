/*
DESCRIPTION
  bus.go implements the Message Bus (spec §4.3): three logical local
  channels — control (request/reply), sync (publish-only), and health
  (publish-only) — composed into a single Bus. The control channel's wire
  protocol and transport (the cross-process request/response plumbing named
  in spec §1 as an external collaborator) are out of scope; what is in
  scope, and implemented here, is the in-process dispatch table and the
  publish/subscribe fan-out that the external transport sits on top of.

  There is no ecosystem local-process pub/sub library in the retrieved
  pack suited to a single-binary, single-machine bus (the pack's
  message-oriented library, NATS, is a networked broker aimed at
  multi-process/multi-host systems — see DESIGN.md) so this is built on
  stdlib sync primitives and channels, following the teacher's own channel
  and WaitGroup based concurrency style (revid.Revid.err, revid.Revid.wg).

AUTHORS
  Kim Lab ISI Core Team

LICENSE
  Copyright (C) 2026 Kim Lab. All Rights Reserved.
*/

// Package bus implements the ISI macroscope's internal message bus: a
// control (request/reply) channel, a sync (publish) channel, and a health
// (publish) channel.
package bus

import (
	"fmt"

	"github.com/ausocean/utils/logging"
)

// Bus bundles the three logical channels used throughout the core.
type Bus struct {
	Control *Control
	Sync    *Sync
	Health  *Health
}

// New constructs a Bus with all three channels wired to the given logger.
func New(log logging.Logger) *Bus {
	return &Bus{
		Control: newControl(log),
		Sync:    newSync(log),
		Health:  newHealth(log),
	}
}

// errorReply is a convenience constructor for a failed Reply.
func errorReply(format string, args ...interface{}) Reply {
	return Reply{Success: false, Error: fmt.Sprintf(format, args...)}
}
