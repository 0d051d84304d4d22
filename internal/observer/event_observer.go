package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Event represents one lifecycle event of the sync layer.
type Event struct {
	Type         EventType              `json:"type"`
	Timestamp    time.Time              `json:"timestamp"`
	UserID       string                 `json:"user_id,omitempty"`
	RecordID     string                 `json:"record_id,omitempty"`
	Duration     time.Duration          `json:"duration,omitempty"`
	Success      bool                   `json:"success"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of sync event
type EventType string

const (
	// AnalysisStarted when a damage-analysis request begins
	AnalysisStarted EventType = "analysis_started"
	// AnalysisCompleted when a damage-analysis request resolves
	AnalysisCompleted EventType = "analysis_completed"
	// AnalysisFailed when a damage-analysis request fails hard
	AnalysisFailed EventType = "analysis_failed"
	// QuotaFallback when quota exhaustion was recovered with a demo result
	QuotaFallback EventType = "quota_fallback"
	// RecordPersisted when a record reaches the durable store
	RecordPersisted EventType = "record_persisted"
	// RecordPersistFailed when a durable write failed and the record was kept locally
	RecordPersistFailed EventType = "record_persist_failed"
	// MigrationBatchDone when a legacy migration batch finishes
	MigrationBatchDone EventType = "migration_batch_done"
)

// Observer receives sync events.
type Observer interface {
	OnEvent(ctx context.Context, event Event)
	Name() string
}

// Unsubscribe removes a previously registered observer. It is safe to call
// more than once and must be invoked in component teardown.
type Unsubscribe func()

// Publisher fans events out to registered observers.
type Publisher struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]Observer
}

func NewPublisher() *Publisher {
	return &Publisher{subs: make(map[int]Observer)}
}

// Subscribe registers an observer and returns its unsubscribe handle.
func (p *Publisher) Subscribe(observer Observer) Unsubscribe {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = observer
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
		})
	}
}

// Notify delivers an event to every registered observer. Observers run
// concurrently and a panicking observer never takes the process down.
func (p *Publisher) Notify(ctx context.Context, event Event) {
	if p == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	observers := make([]Observer, 0, len(p.subs))
	for _, o := range p.subs {
		observers = append(observers, o)
	}
	p.mu.RUnlock()

	for _, observer := range observers {
		go func(obs Observer) {
			defer func() {
				if r := recover(); r != nil {
					logrus.WithField("observer", obs.Name()).
						WithField("panic", r).
						Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(ctx, event)
		}(observer)
	}
}

// LoggingObserver logs sync events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) *LoggingObserver {
	return &LoggingObserver{logger: logger}
}

// OnEvent handles sync events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event Event) {
	fields := logrus.Fields{
		"event_type": event.Type,
		"user_id":    event.UserID,
		"record_id":  event.RecordID,
		"duration":   event.Duration,
		"success":    event.Success,
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	switch event.Type {
	case AnalysisFailed, RecordPersistFailed:
		o.logger.WithFields(fields).Error("Sync event")
	case QuotaFallback:
		o.logger.WithFields(fields).Warn("Sync event")
	default:
		o.logger.WithFields(fields).Info("Sync event")
	}
}

// Name returns the observer name
func (o *LoggingObserver) Name() string {
	return "logging_observer"
}

// MetricsObserver collects counters from sync events
type MetricsObserver struct {
	mu               sync.RWMutex
	totalAnalyses    int64
	failedAnalyses   int64
	quotaFallbacks   int64
	localOnlyRecords int64
	totalDuration    time.Duration
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{}
}

// OnEvent handles sync events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event Event) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.Type {
	case AnalysisStarted:
		o.totalAnalyses++
	case AnalysisCompleted:
		o.totalDuration += event.Duration
	case AnalysisFailed:
		o.failedAnalyses++
	case QuotaFallback:
		o.quotaFallbacks++
	case RecordPersistFailed:
		o.localOnlyRecords++
	}
}

// Name returns the observer name
func (o *MetricsObserver) Name() string {
	return "metrics_observer"
}

// Metrics returns the current counters
func (o *MetricsObserver) Metrics() map[string]interface{} {
	o.mu.RLock()
	defer o.mu.RUnlock()

	completed := o.totalAnalyses - o.failedAnalyses
	avgDuration := time.Duration(0)
	if completed > 0 {
		avgDuration = o.totalDuration / time.Duration(completed)
	}

	return map[string]interface{}{
		"total_analyses":     o.totalAnalyses,
		"failed_analyses":    o.failedAnalyses,
		"quota_fallbacks":    o.quotaFallbacks,
		"local_only_records": o.localOnlyRecords,
		"avg_duration":       avgDuration,
	}
}
