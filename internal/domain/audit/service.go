package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medguard/medguard/internal/platform/authz"
)

// Service is the audit log facade. It implements authz.AuditAppender
// for the decision engine and exposes typed appends for break-glass
// lifecycle events.
type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// SetClock overrides the time source for tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Append persists one access decision record. It satisfies
// authz.AuditAppender; a returned error makes the engine withhold the
// decision.
func (s *Service) Append(ctx context.Context, rec authz.DecisionRecord) (int64, error) {
	granted := rec.Decision.Granted
	e := &Entry{
		Timestamp:  rec.Time,
		Kind:       KindAccessDecision,
		UserID:     rec.Request.UserID,
		Role:       string(rec.Request.Role),
		Purpose:    string(rec.Request.Purpose),
		Category:   string(rec.Request.Category),
		Granted:    &granted,
		Reason:     rec.Decision.Reason,
		BreakGlass: rec.Decision.BreakGlass,
		Severity:   SeverityInfo,
	}
	if rec.Request.PatientID != uuid.Nil {
		pid := rec.Request.PatientID
		e.PatientID = &pid
	}
	if rec.Decision.BreakGlass {
		e.Severity = SeverityHigh
	}
	return s.repo.Append(ctx, e)
}

// AppendBreakGlass persists one break-glass lifecycle entry. All
// break-glass activity is high severity.
func (s *Service) AppendBreakGlass(ctx context.Context, kind string, userID, patientID uuid.UUID, reason string) (int64, error) {
	pid := patientID
	e := &Entry{
		Timestamp:  s.now().UTC(),
		Kind:       kind,
		UserID:     userID,
		PatientID:  &pid,
		Reason:     reason,
		BreakGlass: true,
		Severity:   SeverityHigh,
	}
	return s.repo.Append(ctx, e)
}

func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Entry, int, error) {
	return s.repo.List(ctx, f, limit, offset)
}
