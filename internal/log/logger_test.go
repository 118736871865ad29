package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestNewJSONLoggerCarriesComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Format: "json", Output: &buf, Component: ComponentWorker})
	l.Info("exported", FieldInvoiceID, 7)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}
	if rec[FieldComponent] != ComponentWorker {
		t.Errorf("component = %v", rec[FieldComponent])
	}
	if rec[FieldInvoiceID] != float64(7) {
		t.Errorf("invoice_id = %v", rec[FieldInvoiceID])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelWarn, Output: &buf})
	l.Info("hidden")
	l.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{"debug": slog.LevelDebug, "": slog.LevelInfo, "WARN": slog.LevelWarn, "error": slog.LevelError}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestFieldsBuilder(t *testing.T) {
	f := NewFields().
		WithInvoice(3, "Kitchen", -1250).
		WithUser("alice").
		WithError(errors.New("boom")).
		WithRequestID("")
	if _, ok := f[FieldRequestID]; ok {
		t.Error("empty request id should be skipped")
	}
	s := f.ToSlice()
	if len(s) != 10 || s[0] != FieldAmountCents {
		t.Fatalf("unexpected slice %v", s)
	}
}

func TestFromContextFallback(t *testing.T) {
	if FromContext(context.Background()).Component() != "unknown" {
		t.Error("expected fallback logger")
	}
	l := New(DefaultConfig())
	if FromContext(IntoContext(context.Background(), l)) != l {
		t.Error("expected stored logger")
	}
}
