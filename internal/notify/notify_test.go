package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"trendfilter/internal/model"
)

func TestRunCompleted_Message(t *testing.T) {
	sum := model.RunSummary{
		Symbol:         "SBIN",
		Bars:           250,
		Changes:        14,
		Reversals:      3,
		FinalFilter:    512.35,
		FinalDirection: model.DirUp,
	}
	ev := RunCompleted(sum)
	if ev.Level != LevelInfo {
		t.Errorf("level = %s", ev.Level)
	}
	want := "SBIN: 250 bars, 14 changes, 3 reversals, final 512.3500 (up)"
	if ev.Message != want {
		t.Errorf("message = %q, want %q", ev.Message, want)
	}
	if ev.Run == nil || ev.Run.Symbol != "SBIN" {
		t.Error("summary should ride along")
	}
}

func TestRunFailed_Level(t *testing.T) {
	ev := RunFailed("SBIN", io.ErrUnexpectedEOF)
	if ev.Level != LevelCritical {
		t.Errorf("level = %s", ev.Level)
	}
	if !strings.Contains(ev.Message, "SBIN") {
		t.Errorf("message = %q", ev.Message)
	}
}

func TestWebhookNotifier_PostsEventJSON(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %s", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sum := model.RunSummary{RunID: "run-1", Symbol: "SBIN", Bars: 10}
	n := NewWebhookNotifier(srv.URL)
	if err := n.Send(context.Background(), RunCompleted(sum)); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if got["level"] != "INFO" || got["title"] != "filter run completed" {
		t.Errorf("payload = %+v", got)
	}
	run, ok := got["run"].(map[string]interface{})
	if !ok || run["run_id"] != "run-1" {
		t.Errorf("run payload = %+v", got["run"])
	}
	if got["ts"] == nil {
		t.Error("payload should carry a timestamp")
	}
}

func TestWebhookNotifier_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	if err := n.Send(context.Background(), RunFailed("SBIN", io.EOF)); err == nil {
		t.Fatal("expected error on 502")
	}
}

type sink struct {
	events []Event
	err    error
}

func (s *sink) Send(_ context.Context, ev Event) error {
	s.events = append(s.events, ev)
	return s.err
}

func TestMulti_SendsToAllBackends(t *testing.T) {
	a, b := &sink{}, &sink{err: io.ErrClosedPipe}
	m := Multi{a, b}

	err := m.Send(context.Background(), RunFailed("SBIN", io.EOF))
	if err == nil {
		t.Fatal("expected the failing backend's error")
	}
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Errorf("deliveries = %d/%d, want 1/1", len(a.events), len(b.events))
	}

	b.err = nil
	if err := m.Send(context.Background(), RunFailed("SBIN", io.EOF)); err != nil {
		t.Errorf("Send: %v", err)
	}
}

func TestEscapeMarkdown(t *testing.T) {
	got := escapeMarkdown("run.completed (SBIN)")
	want := `run\.completed \(SBIN\)`
	if got != want {
		t.Errorf("escaped = %q, want %q", got, want)
	}
}
