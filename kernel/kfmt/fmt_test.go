package kfmt

import (
	"bytes"
	"testing"
)

func TestFprintf(t *testing.T) {
	specs := []struct {
		format string
		args   []interface{}
		want   string
	}{
		{"no verbs", nil, "no verbs"},
		{"%s", []interface{}{"hi"}, "hi"},
		{"%5s", []interface{}{"hi"}, "   hi"},
		{"%d", []interface{}{42}, "42"},
		{"%d", []interface{}{-42}, "-42"},
		{"%3d", []interface{}{5}, "  5"},
		{"%x", []interface{}{uint32(0xDEAD)}, "dead"},
		{"%o", []interface{}{uint8(8)}, "10"},
		{"%t", []interface{}{true}, "true"},
		{"%t", []interface{}{false}, "false"},
		{"%c", []interface{}{byte('A')}, "A"},
		{"%%", nil, "%"},
		{"%d%s", []interface{}{1, "a"}, "1a"},
		{"%d", nil, "(MISSING)"},
		{"%d", []interface{}{1, 2}, "1%!(EXTRA)"},
		{"%q", []interface{}{1}, "%!(NOVERB)%!(EXTRA)"},
		{"%s", []interface{}{42}, "%!(WRONGTYPE)"},
	}

	for _, spec := range specs {
		var buf bytes.Buffer
		Fprintf(&buf, spec.format, spec.args...)
		if got := buf.String(); got != spec.want {
			t.Errorf("Fprintf(%q, %v) = %q, want %q", spec.format, spec.args, got, spec.want)
		}
	}
}

func TestSetOutputSinkFlushesEarlyBuffer(t *testing.T) {
	defer func() { outputSink = nil; earlyPrintBuffer = ringBuffer{} }()

	outputSink = nil
	earlyPrintBuffer = ringBuffer{}

	Printf("boot: %d", 1)

	var buf bytes.Buffer
	SetOutputSink(&buf)

	if got := buf.String(); got != "boot: 1" {
		t.Fatalf("expected flushed early buffer content %q, got %q", "boot: 1", got)
	}

	Printf(" %s", "live")
	if got := buf.String(); got != "boot: 1 live" {
		t.Fatalf("expected live output to go straight to sink, got %q", got)
	}
}
