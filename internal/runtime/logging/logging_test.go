package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
)

func TestSlogServiceLoggerDelegates(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	logger := NewSlogServiceLogger(base)

	logger.Info("boot", LogFields{"system": "test"})

	child := logger.With(LogFields{"base": "value"})
	child.Debug("child", LogFields{"extra": "field"})
	child.Warn("careful", nil)

	boom := errors.New("boom")
	child.Error("child failed", boom, nil)

	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 log lines, got %d:\n%s", len(lines), out)
	}

	if !strings.Contains(lines[0], "system=test") || !strings.Contains(lines[0], "boot") {
		t.Fatalf("unexpected first line: %s", lines[0])
	}
	if !strings.Contains(lines[1], "base=value") || !strings.Contains(lines[1], "extra=field") {
		t.Fatalf("expected inherited and call fields on second line: %s", lines[1])
	}
	if !strings.Contains(lines[2], "level=WARN") {
		t.Fatalf("expected warn level on third line: %s", lines[2])
	}
	if !strings.Contains(lines[3], "error=boom") {
		t.Fatalf("expected error field on final line: %s", lines[3])
	}
}

func TestSlogServiceLoggerPanicsOnNil(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic when slog logger nil")
		}
	}()
	NewSlogServiceLogger(nil)
}

func TestWatermillServiceLogger(t *testing.T) {
	captured := &capturingAdapter{}
	logger := NewWatermillServiceLogger(captured)

	logger.Info("hello", LogFields{"k": "v"})
	logger.Error("bad", errors.New("x"), nil)

	if len(captured.entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(captured.entries))
	}
	if captured.entries[0].msg != "hello" || captured.entries[0].fields["k"] != "v" {
		t.Fatalf("unexpected first entry: %#v", captured.entries[0])
	}
	if captured.entries[1].err == nil {
		t.Fatal("expected error recorded on second entry")
	}
}

func TestNewWatermillAdapterRoundTrip(t *testing.T) {
	captured := &capturingAdapter{}
	adapter := NewWatermillAdapter(NewWatermillServiceLogger(captured))

	adapter.Debug("dbg", watermill.LogFields{"a": 1})
	adapter.Trace("trc", nil)
	adapter.With(watermill.LogFields{"b": 2}).Info("inf", nil)

	if len(captured.entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(captured.entries))
	}
	if captured.entries[2].fields["b"] != 2 {
		t.Fatalf("expected With field on final entry, got %#v", captured.entries[2].fields)
	}
}

type capturedEntry struct {
	level  string
	msg    string
	err    error
	fields watermill.LogFields
}

type capturingAdapter struct {
	fields  watermill.LogFields
	entries []capturedEntry
}

func (c *capturingAdapter) record(level, msg string, err error, fields watermill.LogFields) {
	merged := watermill.LogFields{}
	for k, v := range c.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	c.entries = append(c.entries, capturedEntry{level: level, msg: msg, err: err, fields: merged})
}

func (c *capturingAdapter) Error(msg string, err error, fields watermill.LogFields) {
	c.record("error", msg, err, fields)
}

func (c *capturingAdapter) Info(msg string, fields watermill.LogFields) {
	c.record("info", msg, nil, fields)
}

func (c *capturingAdapter) Debug(msg string, fields watermill.LogFields) {
	c.record("debug", msg, nil, fields)
}

func (c *capturingAdapter) Trace(msg string, fields watermill.LogFields) {
	c.record("trace", msg, nil, fields)
}

func (c *capturingAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	merged := watermill.LogFields{}
	for k, v := range c.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	// Entries are shared with the parent so tests observe all output.
	return &childAdapter{parent: c, fields: merged}
}

type childAdapter struct {
	parent *capturingAdapter
	fields watermill.LogFields
}

func (c *childAdapter) Error(msg string, err error, fields watermill.LogFields) {
	c.parent.record("error", msg, err, mergeFields(c.fields, fields))
}

func (c *childAdapter) Info(msg string, fields watermill.LogFields) {
	c.parent.record("info", msg, nil, mergeFields(c.fields, fields))
}

func (c *childAdapter) Debug(msg string, fields watermill.LogFields) {
	c.parent.record("debug", msg, nil, mergeFields(c.fields, fields))
}

func (c *childAdapter) Trace(msg string, fields watermill.LogFields) {
	c.parent.record("trace", msg, nil, mergeFields(c.fields, fields))
}

func (c *childAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &childAdapter{parent: c.parent, fields: mergeFields(c.fields, fields)}
}

func mergeFields(base, extra watermill.LogFields) watermill.LogFields {
	merged := watermill.LogFields{}
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}
