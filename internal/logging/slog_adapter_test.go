// ThreatStream - Real-Time Security Event Analytics and Risk Index
// Copyright 2026 ThreatStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatstream/threatstream

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewSlogHandler(t *testing.T) {
	handler := NewSlogHandler()
	if handler == nil {
		t.Fatal("NewSlogHandler() = nil")
	}
}

func TestSlogHandler_Enabled(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.InfoLevel)
	handler := NewSlogHandlerWithLogger(logger)

	tests := []struct {
		level   slog.Level
		enabled bool
	}{
		{slog.LevelDebug, false},
		{slog.LevelInfo, true},
		{slog.LevelWarn, true},
		{slog.LevelError, true},
	}

	for _, tt := range tests {
		if got := handler.Enabled(context.Background(), tt.level); got != tt.enabled {
			t.Errorf("Enabled(%v) = %v, want %v", tt.level, got, tt.enabled)
		}
	}
}

func TestSlogHandler_Handle(t *testing.T) {
	// The package init applies the default "info" global floor, which
	// would suppress the debug record regardless of the logger's level.
	zerolog.SetGlobalLevel(zerolog.TraceLevel)

	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.TraceLevel)
	handler := NewSlogHandlerWithLogger(logger)

	tests := []struct {
		name  string
		level slog.Level
		want  string
	}{
		{"debug", slog.LevelDebug, `"level":"debug"`},
		{"info", slog.LevelInfo, `"level":"info"`},
		{"warn", slog.LevelWarn, `"level":"warn"`},
		{"error", slog.LevelError, `"level":"error"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			record := slog.NewRecord(time.Now(), tt.level, "test message", 0)
			if err := handler.Handle(context.Background(), record); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			output := buf.String()
			if !strings.Contains(output, tt.want) {
				t.Errorf("expected %s in output: %s", tt.want, output)
			}
			if !strings.Contains(output, "test message") {
				t.Errorf("expected message in output: %s", output)
			}
		})
	}
}

func TestSlogHandler_Handle_WithAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	handler := NewSlogHandlerWithLogger(logger)

	record := slog.NewRecord(time.Now(), slog.LevelInfo, "with attrs", 0)
	record.AddAttrs(
		slog.String("service", "risk"),
		slog.Int("count", 7),
		slog.Bool("ok", true),
	)

	if err := handler.Handle(context.Background(), record); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	output := buf.String()
	for _, want := range []string{`"service":"risk"`, `"count":7`, `"ok":true`} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in output: %s", want, output)
		}
	}
}

func TestSlogHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	handler := NewSlogHandlerWithLogger(logger)

	child := handler.WithAttrs([]slog.Attr{slog.String("component", "hub")})
	record := slog.NewRecord(time.Now(), slog.LevelInfo, "msg", 0)
	if err := child.Handle(context.Background(), record); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if !strings.Contains(buf.String(), `"component":"hub"`) {
		t.Errorf("expected pre-configured attr in output: %s", buf.String())
	}
}

func TestSlogHandler_WithGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	handler := NewSlogHandlerWithLogger(logger)

	grouped := handler.WithGroup("ws")
	record := slog.NewRecord(time.Now(), slog.LevelInfo, "msg", 0)
	record.AddAttrs(slog.String("client", "c1"))
	if err := grouped.Handle(context.Background(), record); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if !strings.Contains(buf.String(), `"ws.client":"c1"`) {
		t.Errorf("expected group-prefixed attr in output: %s", buf.String())
	}
}

func TestSlogHandler_WithGroup_Empty(t *testing.T) {
	handler := NewSlogHandler()
	if got := handler.WithGroup(""); got != handler {
		t.Error("WithGroup(\"\") should return the same handler")
	}
}

func TestSlogToZerologLevel(t *testing.T) {
	tests := []struct {
		level slog.Level
		want  zerolog.Level
	}{
		{slog.LevelDebug - 4, zerolog.TraceLevel},
		{slog.LevelDebug, zerolog.DebugLevel},
		{slog.LevelInfo, zerolog.InfoLevel},
		{slog.LevelWarn, zerolog.WarnLevel},
		{slog.LevelError, zerolog.ErrorLevel},
		{slog.LevelError + 4, zerolog.ErrorLevel},
	}

	for _, tt := range tests {
		if got := slogToZerologLevel(tt.level); got != tt.want {
			t.Errorf("slogToZerologLevel(%v) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestNewSlogLogger(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf))
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	slogger := NewSlogLogger()
	slogger.Info("slog message", "key", "value")

	output := buf.String()
	if !strings.Contains(output, "slog message") {
		t.Errorf("expected message in output: %s", output)
	}
	if !strings.Contains(output, `"key":"value"`) {
		t.Errorf("expected attribute in output: %s", output)
	}
}
