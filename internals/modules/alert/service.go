package alert

import (
	"context"
	"encoding/json"
	"sync"
	"time"
	"watchtower/internals/modules/incident"

	"github.com/rs/zerolog"
)

// Publisher is the broker side of escalation delivery.
type Publisher interface {
	Publish(ctx context.Context, body []byte) error
}

// Service fans escalation events out to the message broker through a small
// worker pool. Enqueueing never blocks the incident workflow: when the
// buffer is full the event is logged and dropped, delivery is best effort
// by design of the notifier contract.
type Service struct {
	// lifecycle
	workerCount    int
	workerWG       sync.WaitGroup
	publishTimeout time.Duration

	// channels
	eventChan chan EscalationEvent

	// guards eventChan against sends after Shutdown closed it; producers
	// (the remediation engines) may outlive the shutdown grace
	mu     sync.Mutex
	closed bool

	// services
	publisher Publisher

	// misc
	logger *zerolog.Logger
}

func NewService(workerCount int, publishTimeout time.Duration, publisher Publisher, logger *zerolog.Logger) *Service {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Service{
		workerCount:    workerCount,
		publishTimeout: publishTimeout,
		eventChan:      make(chan EscalationEvent, 256),
		publisher:      publisher,
		logger:         logger,
	}
}

// Start launches the delivery workers.
func (s *Service) Start() {
	s.workerWG.Add(s.workerCount)

	for range s.workerCount {
		go s.handleEvents()
	}
}

// Notify implements the incident manager's notifier contract.
func (s *Service) Notify(inc incident.Incident) {
	ev := EscalationEvent{
		IncidentID:   inc.ID,
		TargetID:     inc.TargetID,
		CauseSummary: inc.CauseSummary,
		OpenedAt:     inc.OpenedAt,
		Attempts:     len(inc.Attempts),
		EscalatedAt:  time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.logger.Warn().
			Str("incident_id", inc.ID.String()).
			Msg("alert service stopped, escalation event dropped")
		return
	}

	select {
	case s.eventChan <- ev:
	default:
		s.logger.Error().
			Str("incident_id", inc.ID.String()).
			Msg("alert buffer full, escalation event dropped")
	}
}

func (s *Service) handleEvents() {
	defer s.workerWG.Done()

	for ev := range s.eventChan {
		s.deliver(ev)
	}
}

func (s *Service) deliver(ev EscalationEvent) {
	body, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to marshal escalation event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.publishTimeout)
	defer cancel()

	if s.publisher == nil {
		// no broker configured, the log line is the alert
		s.logger.Warn().
			Str("incident_id", ev.IncidentID.String()).
			Str("target_id", ev.TargetID).
			Str("cause", ev.CauseSummary).
			Msg("ESCALATION")
		return
	}

	if err := s.publisher.Publish(ctx, body); err != nil {
		s.logger.Error().
			Err(err).
			Str("incident_id", ev.IncidentID.String()).
			Msg("failed to publish escalation event")
		return
	}

	s.logger.Info().
		Str("incident_id", ev.IncidentID.String()).
		Str("target_id", ev.TargetID).
		Msg("escalation published")
}

// Shutdown stops accepting events and waits for in-flight deliveries.
// Idempotent; Notify calls arriving afterwards are dropped, not panicked on.
func (s *Service) Shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.eventChan)
	s.mu.Unlock()

	s.workerWG.Wait()
}
