package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"go-damage-assessor/internal/logger"
)

// JobEvent represents one step in the life of an analysis job
type JobEvent struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	JobID          string                 `json:"job_id"`
	BeforeImageID  string                 `json:"before_image_id,omitempty"`
	AfterImageID   string                 `json:"after_image_id,omitempty"`
	Progress       int                    `json:"progress"`
	Message        string                 `json:"message,omitempty"`
	ProcessingTime time.Duration          `json:"processing_time"`
	QueueLag       time.Duration          `json:"queue_lag"`
	Success        bool                   `json:"success"`
	WasProcessing  bool                   `json:"was_processing,omitempty"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	SeverityScore  float64                `json:"severity_score,omitempty"`
	RegionCounts   map[string]int         `json:"region_counts,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of job event
type EventType string

const (
	// JobQueued when a job is accepted into the queue
	JobQueued EventType = "job_queued"
	// JobRejected when the queue refuses a job
	JobRejected EventType = "job_rejected"
	// JobStarted when a worker picks the job up
	JobStarted EventType = "job_started"
	// JobProgress on every pipeline checkpoint
	JobProgress EventType = "job_progress"
	// JobCompleted when the result is persisted
	JobCompleted EventType = "job_completed"
	// JobFailed when the job ends without a result
	JobFailed EventType = "job_failed"
	// ResultDeleted when a stored result is removed
	ResultDeleted EventType = "result_deleted"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event JobEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event JobEvent)
}

// LoggingObserver logs job events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer; nil uses the shared logger
func NewLoggingObserver(l *logrus.Logger) Observer {
	if l == nil {
		l = logger.Logger
	}
	return &LoggingObserver{logger: l}
}

// OnEvent handles job events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event JobEvent) {
	fields := logrus.Fields{
		"event_type": event.EventType,
		"job_id":     event.JobID,
		"progress":   event.Progress,
	}
	if event.BeforeImageID != "" {
		fields["before_image_id"] = event.BeforeImageID
		fields["after_image_id"] = event.AfterImageID
	}
	if event.ProcessingTime > 0 {
		fields["duration_ms"] = event.ProcessingTime.Milliseconds()
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case JobQueued:
		entry.Info("Analysis job queued")
	case JobRejected:
		entry.Warn("Analysis job rejected")
	case JobStarted:
		entry.WithField("queue_lag_ms", event.QueueLag.Milliseconds()).Info("Analysis job started")
	case JobProgress:
		entry.WithField("message", event.Message).Debug("Analysis progress")
	case JobCompleted:
		entry.WithFields(logrus.Fields{
			"severity_score": event.SeverityScore,
			"regions":        event.RegionCounts,
		}).Info("Analysis job completed")
	case JobFailed:
		entry.Error("Analysis job failed")
	case ResultDeleted:
		entry.Info("Analysis result deleted")
	default:
		entry.Info("Job event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
	pending   sync.WaitGroup
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers delivers the event to every observer concurrently
func (p *EventPublisher) NotifyObservers(ctx context.Context, event JobEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, observer := range observers {
		p.pending.Add(1)
		go func(obs Observer) {
			defer p.pending.Done()
			defer func() {
				if r := recover(); r != nil {
					logger.WithFields(logrus.Fields{
						"observer": obs.GetObserverName(),
						"panic":    r,
					}).Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(ctx, event)
		}(observer)
	}
}

// Wait blocks until every delivered event has been handled
func (p *EventPublisher) Wait() {
	p.pending.Wait()
}
