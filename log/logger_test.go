package log

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetSink(&buf)
	defer SetSink(os.Stdout)

	prevLevel := GetLevel()
	defer SetLevel(prevLevel)

	logger := New("test")

	SetLevel(Notice)
	logger.Debug("hidden debug")
	logger.Info("hidden info")
	logger.Noticef("visible %s", "notice")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("expected messages below notice level to be filtered; got %q", out)
	}
	if !strings.Contains(out, "visible notice") {
		t.Fatalf("expected notice message to be logged; got %q", out)
	}
	if !strings.Contains(out, "[test]") {
		t.Fatalf("expected log line to include the module name; got %q", out)
	}

	buf.Reset()
	SetLevel(Debug)
	logger.Debugf("now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Fatalf("expected debug message to be logged after lowering level; got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	specs := []struct {
		in     string
		exp    Level
		expErr bool
	}{
		{"debug", Debug, false},
		{"INFO", Info, false},
		{" warning ", Warning, false},
		{"error", Error, false},
		{"chatty", Notice, true},
	}

	for index, spec := range specs {
		level, err := ParseLevel(spec.in)
		if spec.expErr {
			if err == nil {
				t.Fatalf("[spec %d] expected an error parsing %q", index, spec.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("[spec %d] unexpected error: %v", index, err)
		}
		if level != spec.exp {
			t.Fatalf("[spec %d] expected level %s; got %s", index, spec.exp, level)
		}
	}
}
