package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestHandleWritesToFileAlways(t *testing.T) {
	var buf bytes.Buffer
	debug := false
	h := NewHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}, &debug)
	log := slog.New(h)

	log.Info("hart halted", "pc", "0x80000004")

	out := buf.String()
	if !strings.Contains(out, "hart halted") {
		t.Errorf("file output = %q, want it to contain the message", out)
	}
	if !strings.Contains(out, "0x80000004") {
		t.Errorf("file output = %q, want it to contain the attr value", out)
	}
}

func TestSetDebug(t *testing.T) {
	var buf bytes.Buffer
	debug := false
	h := NewHandler(&buf, nil, &debug)
	debug = true
	h.SetDebug(&debug)
	if !h.debug {
		t.Error("SetDebug(true) did not take effect")
	}
}
