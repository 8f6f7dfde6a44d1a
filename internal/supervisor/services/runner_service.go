// ThreatStream - Real-Time Security Event Analytics and Risk Index
// Copyright 2026 ThreatStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatstream/threatstream

package services

import "context"

// RunFunc is a context-bound run loop: it blocks until the context is
// canceled and returns ctx.Err() on clean shutdown.
type RunFunc func(ctx context.Context) error

// RunnerService supervises any context-bound run loop. The WebSocket
// hub, its heartbeat ticker, and the risk index decay and publish loops
// all expose this shape already, so one wrapper serves them all.
type RunnerService struct {
	name string
	run  RunFunc
}

// NewRunnerService wraps run as a supervised service named name.
func NewRunnerService(name string, run RunFunc) *RunnerService {
	return &RunnerService{name: name, run: run}
}

// Serve implements suture.Service.
func (s *RunnerService) Serve(ctx context.Context) error {
	return s.run(ctx)
}

func (s *RunnerService) String() string {
	return s.name
}
