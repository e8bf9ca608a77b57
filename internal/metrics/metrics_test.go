package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordMessage(t *testing.T) {
	messagesTotal.Reset()

	RecordMessage("in", "UserState")
	RecordMessage("in", "UserState")
	RecordMessage("out", "Ping")

	if got := testutil.ToFloat64(messagesTotal.WithLabelValues("in", "UserState")); got != 2 {
		t.Errorf("in/UserState = %v, want 2", got)
	}
	if got := testutil.ToFloat64(messagesTotal.WithLabelValues("out", "Ping")); got != 1 {
		t.Errorf("out/Ping = %v, want 1", got)
	}
}

func TestRecordUtteranceOnlyObservesFlushed(t *testing.T) {
	utterancesTotal.Reset()
	before := testutil.CollectAndCount(utteranceDuration)

	RecordUtterance("failed", 3)
	RecordUtterance("flushed", 1.5)

	if got := testutil.ToFloat64(utterancesTotal.WithLabelValues("failed")); got != 1 {
		t.Errorf("failed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(utterancesTotal.WithLabelValues("flushed")); got != 1 {
		t.Errorf("flushed = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(utteranceDuration); got != before {
		t.Errorf("histogram series = %d, want %d", got, before)
	}
}

func TestSetConnectionUp(t *testing.T) {
	SetConnectionUp(true)
	if got := testutil.ToFloat64(connectionUp); got != 1 {
		t.Errorf("connection_up = %v, want 1", got)
	}
	SetConnectionUp(false)
	if got := testutil.ToFloat64(connectionUp); got != 0 {
		t.Errorf("connection_up = %v, want 0", got)
	}
}

func TestExporterHandler(t *testing.T) {
	queueDepth.Reset()
	SetQueueDepth("audio_output", 3)

	e := NewExporter(":0")
	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if !strings.Contains(string(body), `mumble_voice_queue_depth{queue="audio_output"} 3`) {
		t.Errorf("queue depth missing from output:\n%s", body)
	}
}
