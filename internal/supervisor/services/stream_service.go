// ThreatStream - Real-Time Security Event Analytics and Risk Index
// Copyright 2026 ThreatStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatstream/threatstream

package services

import (
	"context"
	"fmt"
)

// StreamRouter matches the event stream router's lifecycle.
type StreamRouter interface {
	Run(ctx context.Context) error
	Close() error
}

// StreamRouterService supervises the Watermill router that drives the
// threat pipeline. Run blocks until the context is canceled; Close
// waits for in-flight messages to be acked.
type StreamRouterService struct {
	router StreamRouter
}

// NewStreamRouterService creates the wrapper.
func NewStreamRouterService(router StreamRouter) *StreamRouterService {
	return &StreamRouterService{router: router}
}

// Serve implements suture.Service.
func (s *StreamRouterService) Serve(ctx context.Context) error {
	err := s.router.Run(ctx)

	if closeErr := s.router.Close(); closeErr != nil && err == nil {
		err = fmt.Errorf("router close failed: %w", closeErr)
	}
	if err != nil {
		return err
	}
	return ctx.Err()
}

func (s *StreamRouterService) String() string {
	return "stream-router"
}
