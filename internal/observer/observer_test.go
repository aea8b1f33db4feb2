package observer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

type recordingObserver struct {
	name   string
	mu     sync.Mutex
	events []JobEvent
}

func (r *recordingObserver) OnEvent(_ context.Context, e JobEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingObserver) GetObserverName() string { return r.name }

func (r *recordingObserver) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type panickingObserver struct{}

func (panickingObserver) OnEvent(context.Context, JobEvent) { panic("observer bug") }

func (panickingObserver) GetObserverName() string { return "panicking" }

func TestEventPublisherDeliversToAllObservers(t *testing.T) {
	pub := NewEventPublisher()
	a := &recordingObserver{name: "a"}
	b := &recordingObserver{name: "b"}
	pub.Subscribe(a)
	pub.Subscribe(b)
	pub.Subscribe(panickingObserver{})

	pub.NotifyObservers(context.Background(), JobEvent{EventType: JobQueued, JobID: "job"})
	pub.Wait()

	if a.count() != 1 || b.count() != 1 {
		t.Fatalf("expected one event per observer, got %d and %d", a.count(), b.count())
	}
	if a.events[0].Timestamp.IsZero() {
		t.Error("expected publisher to stamp the event")
	}

	pub.Unsubscribe(a)
	pub.NotifyObservers(context.Background(), JobEvent{EventType: JobStarted, JobID: "job"})
	pub.Wait()

	if a.count() != 1 {
		t.Errorf("unsubscribed observer received %d events", a.count())
	}
	if b.count() != 2 {
		t.Errorf("expected 2 events for b, got %d", b.count())
	}
}

func TestLoggingObserverLevels(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	obs := NewLoggingObserver(log)

	obs.OnEvent(context.Background(), JobEvent{EventType: JobCompleted, JobID: "job", SeverityScore: 4.2})
	obs.OnEvent(context.Background(), JobEvent{EventType: JobFailed, JobID: "job", ErrorMessage: "decode"})
	obs.OnEvent(context.Background(), JobEvent{EventType: JobRejected, JobID: "job"})

	entries := hook.AllEntries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Level != logrus.InfoLevel || entries[0].Data["job_id"] != "job" {
		t.Errorf("unexpected completed entry: %v %v", entries[0].Level, entries[0].Data)
	}
	if entries[1].Level != logrus.ErrorLevel || entries[1].Data["error"] != "decode" {
		t.Errorf("unexpected failed entry: %v %v", entries[1].Level, entries[1].Data)
	}
	if entries[2].Level != logrus.WarnLevel {
		t.Errorf("expected warn for rejection, got %v", entries[2].Level)
	}
}

func TestMetricsObserverJobSeries(t *testing.T) {
	m := NewMetrics()
	obs := NewMetricsObserver(m)
	ctx := context.Background()

	obs.OnEvent(ctx, JobEvent{EventType: JobQueued})
	obs.OnEvent(ctx, JobEvent{EventType: JobStarted, QueueLag: 20 * time.Millisecond})
	obs.OnEvent(ctx, JobEvent{EventType: JobProgress, Progress: 50})
	if got := testutil.ToFloat64(m.jobsInFlight); got != 1 {
		t.Fatalf("expected 1 job in flight, got %v", got)
	}

	obs.OnEvent(ctx, JobEvent{
		EventType:      JobCompleted,
		ProcessingTime: time.Second,
		SeverityScore:  6.5,
		RegionCounts:   map[string]int{"flood": 2, "generic": 3},
	})
	obs.OnEvent(ctx, JobEvent{EventType: JobStarted})
	obs.OnEvent(ctx, JobEvent{EventType: JobFailed, WasProcessing: true})
	obs.OnEvent(ctx, JobEvent{EventType: JobFailed})

	if got := testutil.ToFloat64(m.jobsInFlight); got != 0 {
		t.Errorf("expected no jobs in flight, got %v", got)
	}
	if got := testutil.ToFloat64(m.jobEvents.WithLabelValues("job_failed")); got != 2 {
		t.Errorf("expected 2 failures, got %v", got)
	}
	if got := testutil.ToFloat64(m.jobEvents.WithLabelValues("job_progress")); got != 0 {
		t.Errorf("progress events should not be counted, got %v", got)
	}
	if got := testutil.ToFloat64(m.regionsTotal.WithLabelValues("flood")); got != 2 {
		t.Errorf("expected 2 flood regions, got %v", got)
	}
	if n := testutil.CollectAndCount(m.jobDuration); n != 2 {
		t.Errorf("expected completed and failed duration series, got %d", n)
	}
}

func TestMetricsHandlerExposesSeries(t *testing.T) {
	m := NewMetrics()
	m.RegisterQueueGauges(func() float64 { return 3 }, func() float64 { return 64 })
	done := m.RequestStarted()
	done(http.MethodPost, "/analyze", http.StatusAccepted)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{
		`damage_assessor_http_requests_total{method="POST",path="/analyze",status="202"} 1`,
		"damage_assessor_jobs_queue_depth 3",
		"damage_assessor_jobs_queue_capacity 64",
		"damage_assessor_http_in_flight_requests 0",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
