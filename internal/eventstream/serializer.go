// ThreatStream - Real-Time Security Event Analytics and Risk Index
// Copyright 2026 ThreatStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatstream/threatstream

package eventstream

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/threatstream/threatstream/internal/models"
)

// Serializer handles security event encoding for stream messages.
type Serializer struct{}

// NewSerializer creates a new serializer.
func NewSerializer() *Serializer {
	return &Serializer{}
}

// Marshal converts an event to JSON bytes.
func (s *Serializer) Marshal(event *models.SecurityEvent) ([]byte, error) {
	if event.EventID == "" {
		return nil, fmt.Errorf("event missing event_id")
	}
	if event.EventType == "" {
		return nil, fmt.Errorf("event missing event_type")
	}

	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}

// Unmarshal converts JSON bytes to an event, rejecting payloads without
// the required identity fields.
func (s *Serializer) Unmarshal(data []byte) (*models.SecurityEvent, error) {
	var event models.SecurityEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	if event.EventID == "" {
		return nil, fmt.Errorf("event missing event_id")
	}
	if event.EventType == "" {
		return nil, fmt.Errorf("event missing event_type")
	}
	return &event, nil
}
