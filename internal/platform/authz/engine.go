package authz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrAuditUnavailable aborts an evaluation whose audit entry could not
// be made durable. A decision without an audit trail must never reach
// the caller, so this is an infrastructure error, not a denial.
var ErrAuditUnavailable = errors.New("audit log unavailable")

// Denial reasons. These are user-visible and stable; tests and
// compliance reports match on them.
const (
	ReasonPolicyDenied     = "role/purpose does not authorize this data category"
	ReasonPatientRequired  = "patient_id is required for patient-scoped data"
	ReasonGeneticRestrict  = "genetic data requires treatment or emergency purpose"
	ReasonNoEncounter      = "no active encounter between user and patient"
	ReasonNoConsent        = "no active research consent for this data category"
	ReasonGranted          = "authorized by policy"
	ReasonGrantedOverride  = "authorized by break-glass override"
	reasonDependencyPrefix = "dependency unavailable"
)

// treatmentMaxDurationHours bounds a treatment-purpose grant.
const treatmentMaxDurationHours = 24

// ConsentChecker answers whether a non-revoked, non-expired consent
// exists for the tuple. Errors mean "consent unknown" and deny.
type ConsentChecker interface {
	IsActive(ctx context.Context, patientID uuid.UUID, category DataCategory, grantee string) (bool, error)
}

// EncounterChecker answers whether the user currently has an active
// clinical encounter with the patient.
type EncounterChecker interface {
	IsActiveEncounter(ctx context.Context, userID, patientID uuid.UUID) (bool, error)
}

// BreakGlassChecker answers whether an open, unexpired emergency
// override exists for the (user, patient) pair.
type BreakGlassChecker interface {
	IsOpen(ctx context.Context, userID, patientID uuid.UUID) (bool, error)
}

// DecisionRecord is the audit snapshot of one evaluation: the request
// and the decision, frozen at decision time.
type DecisionRecord struct {
	Time     time.Time
	Request  AccessRequest
	Decision AccessDecision
}

// AuditAppender persists decision records. Append must be durable
// before it returns; a failed append fails the whole evaluation.
type AuditAppender interface {
	Append(ctx context.Context, rec DecisionRecord) (int64, error)
}

// Engine is the access decision engine. It is stateless and safe for
// concurrent use; all mutable state lives in its collaborators.
type Engine struct {
	matrix     *Matrix
	consents   ConsentChecker
	encounters EncounterChecker
	breakGlass BreakGlassChecker
	audit      AuditAppender
	logger     zerolog.Logger
	now        func() time.Time
}

// NewEngine builds an Engine around an immutable policy matrix and its
// four collaborators. The audit appender is mandatory.
func NewEngine(matrix *Matrix, consents ConsentChecker, encounters EncounterChecker, breakGlass BreakGlassChecker, audit AuditAppender, logger zerolog.Logger) (*Engine, error) {
	if matrix == nil {
		return nil, errors.New("policy matrix is required")
	}
	if audit == nil {
		return nil, errors.New("audit appender is required")
	}
	return &Engine{
		matrix:     matrix,
		consents:   consents,
		encounters: encounters,
		breakGlass: breakGlass,
		audit:      audit,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// SetClock overrides the engine clock. Tests use this to pin timestamps.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// Evaluate answers an access request. Denials are returned as decisions
// with a reason, never as errors; the only error is ErrAuditUnavailable,
// raised when the mandatory audit write fails. Every call writes exactly
// one audit entry before returning, granted or denied.
func (e *Engine) Evaluate(ctx context.Context, req AccessRequest) (*AccessDecision, error) {
	if req.Timestamp.IsZero() {
		req.Timestamp = e.now().UTC()
	}

	dec := e.decide(ctx, req)

	seq, err := e.audit.Append(ctx, DecisionRecord{Time: e.now().UTC(), Request: req, Decision: *dec})
	if err != nil {
		e.logger.Error().Err(err).
			Str("user_id", req.UserID.String()).
			Str("purpose", string(req.Purpose)).
			Str("data_category", string(req.Category)).
			Msg("audit append failed; withholding decision")
		return nil, fmt.Errorf("%w: %v", ErrAuditUnavailable, err)
	}

	evt := e.logger.Info()
	if dec.BreakGlass {
		evt = e.logger.Warn()
	}
	evt.
		Int64("audit_seq", seq).
		Str("user_id", req.UserID.String()).
		Str("role", string(req.Role)).
		Str("purpose", string(req.Purpose)).
		Str("data_category", string(req.Category)).
		Bool("granted", dec.Granted).
		Bool("break_glass", dec.BreakGlass).
		Str("reason", dec.Reason).
		Msg("access_decision")

	return dec, nil
}

// decide runs the evaluation algorithm. Every path is fail-closed: any
// ambiguous or missing-data condition resolves to denial.
func (e *Engine) decide(ctx context.Context, req AccessRequest) *AccessDecision {
	if PatientScoped(req.Category) && req.PatientID == uuid.Nil {
		return deny(ReasonPatientRequired)
	}

	breakGlassPath := false
	if !e.matrix.Allows(req.Role, req.Purpose, req.Category) {
		if req.Purpose != PurposeEmergency {
			return deny(ReasonPolicyDenied)
		}
		open, err := e.breakGlass.IsOpen(ctx, req.UserID, req.PatientID)
		if err != nil {
			return denyUnavailable("break-glass registry")
		}
		if !open {
			return deny(ReasonPolicyDenied)
		}
		breakGlassPath = true
	}

	// Genetic gate: genetic data only for treatment or emergency, or
	// under an open override.
	if req.Category == CategoryGenetic && !breakGlassPath &&
		req.Purpose != PurposeTreatment && req.Purpose != PurposeEmergency {
		return deny(ReasonGeneticRestrict)
	}

	// Encounter scope: clinical purposes touching a named patient need
	// an active encounter; an open override stands in for one.
	if (req.Purpose == PurposeTreatment || req.Purpose == PurposeEmergency) &&
		req.PatientID != uuid.Nil && !breakGlassPath {
		active, err := e.encounters.IsActiveEncounter(ctx, req.UserID, req.PatientID)
		if err != nil {
			return denyUnavailable("encounter registry")
		}
		if !active {
			return deny(ReasonNoEncounter)
		}
	}

	// Consent gate: research on identifiable data needs an active
	// research consent from the patient.
	if req.Purpose == PurposeResearch &&
		req.Category != CategoryAnonClinical && req.Category != CategoryModelInfo {
		if req.PatientID == uuid.Nil {
			return deny(ReasonPatientRequired)
		}
		active, err := e.consents.IsActive(ctx, req.PatientID, req.Category, "research")
		if err != nil {
			return denyUnavailable("consent store")
		}
		if !active {
			return deny(ReasonNoConsent)
		}
	}

	dec := &AccessDecision{
		Granted:    true,
		Reason:     ReasonGranted,
		BreakGlass: breakGlassPath,
		Conditions: Conditions{RequiresAudit: true},
	}
	if req.Purpose == PurposeTreatment {
		hours := treatmentMaxDurationHours
		dec.Conditions.MaxDurationHours = &hours
	}
	if breakGlassPath {
		dec.Reason = ReasonGrantedOverride
		dec.Conditions.RequiresReverification = true
	}
	return dec
}

func deny(reason string) *AccessDecision {
	return &AccessDecision{
		Granted:    false,
		Reason:     reason,
		Conditions: Conditions{RequiresAudit: true},
	}
}

// denyUnavailable converts a collaborator failure into a fail-closed
// denial. "Unknown" is not "revoked": the reason names the dependency,
// not the patient's choice.
func denyUnavailable(dependency string) *AccessDecision {
	return deny(fmt.Sprintf("%s: %s", reasonDependencyPrefix, dependency))
}
