package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"swmon/internal/watchdog"
)

func bindQuery(t *testing.T, rawQuery string) (*TimingQuery, error) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/start?"+rawQuery, nil)
	return BindTimingQuery(c)
}

func TestBindTimingQueryAppliesPresentFields(t *testing.T) {
	q, err := bindQuery(t, "delay=15000&reset=2000")
	if err != nil {
		t.Fatalf("bind: %v", err)
	}

	base := watchdog.DefaultParams()
	got := q.Apply(base)

	if got.Delay != 15*time.Second {
		t.Errorf("delay: got %v, want 15s", got.Delay)
	}
	if got.Reset != 2*time.Second {
		t.Errorf("reset: got %v, want 2s", got.Reset)
	}
	// Absent fields keep their stored values.
	if got.Event != base.Event || got.Type != base.Type {
		t.Errorf("absent fields must be untouched: event=%v type=%v", got.Event, got.Type)
	}
}

func TestBindTimingQueryEmptyIsNoop(t *testing.T) {
	q, err := bindQuery(t, "")
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	base := watchdog.DefaultParams()
	if got := q.Apply(base); got != base {
		t.Fatalf("empty query must leave params untouched: %+v", got)
	}
}

func TestBindTimingQueryRejectsBadValues(t *testing.T) {
	cases := []string{
		"delay=abc",
		"reset=0",
		"type=9",
		"delay=-5",
	}
	for _, raw := range cases {
		if _, err := bindQuery(t, raw); err == nil {
			t.Errorf("query %q must be rejected", raw)
		}
	}
}

func TestBindTimingQueryEventType(t *testing.T) {
	q, err := bindQuery(t, "type=3")
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	got := q.Apply(watchdog.DefaultParams())
	if got.Type != watchdog.EventPowerButton {
		t.Fatalf("type: got %v, want power-button", got.Type)
	}
}
