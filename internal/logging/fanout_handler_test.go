package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestFanoutHandlerDuplicatesRecords(t *testing.T) {
	var first, second bytes.Buffer
	handler := NewFanoutHandler(
		slog.NewJSONHandler(&first, nil),
		slog.NewJSONHandler(&second, nil),
	)

	logger := slog.New(handler)
	logger.Info("search queued", String(FieldSearchID, "42"))

	for name, buf := range map[string]*bytes.Buffer{"first": &first, "second": &second} {
		if !strings.Contains(buf.String(), "search queued") {
			t.Fatalf("%s handler missing record: %q", name, buf.String())
		}
	}
}

func TestFanoutHandlerRespectsChildLevels(t *testing.T) {
	var quiet, chatty bytes.Buffer
	handler := NewFanoutHandler(
		slog.NewJSONHandler(&quiet, &slog.HandlerOptions{Level: slog.LevelError}),
		slog.NewJSONHandler(&chatty, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	if !handler.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected fanout to be enabled when any child accepts the level")
	}

	slog.New(handler).Debug("stage progress")
	if quiet.Len() != 0 {
		t.Fatalf("error-level handler received debug record: %q", quiet.String())
	}
	if !strings.Contains(chatty.String(), "stage progress") {
		t.Fatalf("debug handler missing record: %q", chatty.String())
	}
}
