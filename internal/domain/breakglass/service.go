package breakglass

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Auditor records break-glass lifecycle entries. Every invocation,
// justification and expiry produces one; the audit trail is the primary
// accountability mechanism for emergency overrides.
type Auditor interface {
	BreakGlassInvoked(ctx context.Context, ev *Event) error
	BreakGlassJustified(ctx context.Context, ev *Event) error
	BreakGlassExpired(ctx context.Context, ev *Event) error
}

type Service struct {
	repo       Repository
	audit      Auditor
	logger     zerolog.Logger
	window     time.Duration
	maxPerHour int
	limiter    *invocationLimit
	now        func() time.Time
}

// NewService builds the break-glass manager. window is the auto-expiry
// horizon for a new event (24h when zero); maxPerHour bounds invocations
// per user (5 when zero).
func NewService(repo Repository, audit Auditor, logger zerolog.Logger, window time.Duration, maxPerHour int) *Service {
	if window <= 0 {
		window = 24 * time.Hour
	}
	if maxPerHour <= 0 {
		maxPerHour = 5
	}
	return &Service{
		repo:       repo,
		audit:      audit,
		logger:     logger,
		window:     window,
		maxPerHour: maxPerHour,
		limiter:    newInvocationLimit(),
		now:        time.Now,
	}
}

// SetClock overrides the time source for tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Invoke opens an emergency-override window for the (user, patient)
// pair. Exactly one open event may exist per pair; a second invocation
// returns ErrAlreadyOpen.
func (s *Service) Invoke(ctx context.Context, userID, patientID uuid.UUID, reasonCode string) (*Event, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user_id is required")
	}
	if patientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	if strings.TrimSpace(reasonCode) == "" {
		return nil, fmt.Errorf("reason_code is required")
	}

	now := s.now()
	if !s.limiter.allow(userID.String(), now, s.maxPerHour) {
		s.logger.Warn().
			Str("user_id", userID.String()).
			Msg("break-glass rate limit exceeded")
		return nil, ErrRateLimited
	}

	ev := &Event{
		UserID:     userID,
		PatientID:  patientID,
		ReasonCode: reasonCode,
		OpenedAt:   now,
		AutoExpiry: now.Add(s.window),
	}
	if err := s.repo.CreateOpen(ctx, ev); err != nil {
		return nil, err
	}

	// Break-glass is always a reportable event, granted or not.
	s.logger.Warn().
		Str("event_id", ev.ID.String()).
		Str("user_id", userID.String()).
		Str("patient_id", patientID.String()).
		Str("reason_code", reasonCode).
		Time("auto_expiry", ev.AutoExpiry).
		Msg("break-glass invoked")

	if err := s.audit.BreakGlassInvoked(ctx, ev); err != nil {
		// An override must never stand without its invocation entry.
		// Roll the event back so the window stays closed; the rollback
		// runs on a detached context in case the caller's is gone.
		if delErr := s.repo.Delete(context.WithoutCancel(ctx), ev.ID); delErr != nil {
			s.logger.Error().
				Err(delErr).
				Str("event_id", ev.ID.String()).
				Str("user_id", userID.String()).
				Str("patient_id", patientID.String()).
				Msg("failed to roll back unaudited break-glass event")
		}
		return nil, fmt.Errorf("audit break-glass invocation: %w", err)
	}
	return ev, nil
}

// SubmitJustification attaches the retrospective justification and
// closes the event. Already-justified or expired events return
// ErrAlreadyClosed.
func (s *Service) SubmitJustification(ctx context.Context, id uuid.UUID, text string) (*Event, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("justification text is required")
	}

	ev, err := s.repo.Justify(ctx, id, text, s.now())
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("event_id", ev.ID.String()).
		Str("user_id", ev.UserID.String()).
		Msg("break-glass justified")

	if err := s.audit.BreakGlassJustified(ctx, ev); err != nil {
		return nil, fmt.Errorf("audit break-glass justification: %w", err)
	}
	return ev, nil
}

// IsOpen reports whether an open, unexpired override exists for the
// pair. An event past its auto-expiry reads as closed even before the
// sweeper has reached it.
func (s *Service) IsOpen(ctx context.Context, userID, patientID uuid.UUID) (bool, error) {
	ev, err := s.repo.GetOpen(ctx, userID, patientID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return ev.OpenAt(s.now()), nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Event, error) {
	return s.repo.GetByID(ctx, id)
}

// Sweep closes every open event past its auto-expiry and records a
// compliance audit entry for each. The sweep is the authoritative
// closer; IsOpen only masks the window between expiry and sweep.
//
// Each event is audited before its status flips: an event whose
// compliance entry cannot be written stays open in the store and is
// picked up again by the next sweep. A crash between the entry and the
// flip can at worst duplicate an entry, never lose one.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	now := s.now()
	candidates, err := s.repo.ListOpenExpired(ctx, now)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, ev := range candidates {
		entry := *ev
		entry.Status = StatusExpiredUnjustified
		if err := s.audit.BreakGlassExpired(ctx, &entry); err != nil {
			return swept, fmt.Errorf("audit break-glass expiry: %w", err)
		}
		if _, err := s.repo.Expire(ctx, ev.ID); err != nil {
			if errors.Is(err, ErrAlreadyClosed) || errors.Is(err, ErrNotFound) {
				// Justified between the listing and the flip.
				continue
			}
			return swept, fmt.Errorf("expire break-glass event: %w", err)
		}
		s.logger.Warn().
			Str("event_id", ev.ID.String()).
			Str("user_id", ev.UserID.String()).
			Str("patient_id", ev.PatientID.String()).
			Msg("break-glass expired without justification")
		swept++
	}

	s.limiter.cleanup(now)
	return swept, nil
}

// RunSweeper runs Sweep on the given interval until ctx is cancelled.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error().Err(err).Msg("break-glass sweep failed")
			}
		}
	}
}
