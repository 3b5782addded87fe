package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   DEBUG,
		"info":    INFO,
		"":        INFO,
		"warn":    WARN,
		"WARNING": WARN,
		"error":   ERROR,
		"fatal":   FATAL,
		"bogus":   INFO,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WARN, false)
	logger.SetOutput(&buf)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("Messages below WARN should be filtered: %s", out)
	}
	if !strings.Contains(out, "warn message") || !strings.Contains(out, "error message") {
		t.Errorf("WARN and above should be logged: %s", out)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(INFO, true)
	logger.SetOutput(&buf)

	logger.Info("hello", map[string]interface{}{"target": "svc"})

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Output should be valid JSON: %v (%s)", err, buf.String())
	}
	if entry.Level != "INFO" || entry.Message != "hello" {
		t.Errorf("Entry mismatch: %+v", entry)
	}
	if entry.Fields["target"] != "svc" {
		t.Errorf("Fields not preserved: %v", entry.Fields)
	}
	if entry.Timestamp == "" {
		t.Error("Entry should carry a timestamp")
	}
}

func TestWithField(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(INFO, true)
	logger.SetOutput(&buf)

	child := logger.WithField("component", "supervisor")
	child.Info("started")

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatal(err)
	}
	if entry.Fields["component"] != "supervisor" {
		t.Errorf("Bound field missing: %v", entry.Fields)
	}

	// The parent logger must not inherit the child's field
	buf.Reset()
	logger.Info("plain")
	entry = LogEntry{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatal(err)
	}
	if _, ok := entry.Fields["component"]; ok {
		t.Error("Parent logger should not carry the child's field")
	}
}
