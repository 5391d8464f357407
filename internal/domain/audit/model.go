package audit

import (
	"time"

	"github.com/google/uuid"
)

// Entry kinds. Access decisions dominate the log; break-glass lifecycle
// entries carry the compliance trail for emergency overrides.
const (
	KindAccessDecision      = "access_decision"
	KindBreakGlassInvoked   = "break_glass_invoked"
	KindBreakGlassJustified = "break_glass_justified"
	KindBreakGlassExpired   = "break_glass_expired"
)

// Severities. Break-glass activity is always high.
const (
	SeverityInfo = "info"
	SeverityHigh = "high"
)

// Entry is one immutable audit record. Seq is assigned by the log on
// append and is strictly increasing with no gaps; a hole in the
// sequence is evidence of tampering.
type Entry struct {
	Seq        int64      `db:"seq" json:"seq"`
	Timestamp  time.Time  `db:"ts" json:"timestamp"`
	Kind       string     `db:"kind" json:"kind"`
	UserID     uuid.UUID  `db:"user_id" json:"user_id"`
	Role       string     `db:"role" json:"role,omitempty"`
	Purpose    string     `db:"purpose" json:"purpose,omitempty"`
	Category   string     `db:"category" json:"category,omitempty"`
	PatientID  *uuid.UUID `db:"patient_id" json:"patient_id,omitempty"`
	Granted    *bool      `db:"granted" json:"granted,omitempty"`
	Reason     string     `db:"reason" json:"reason,omitempty"`
	BreakGlass bool       `db:"break_glass" json:"break_glass"`
	Severity   string     `db:"severity" json:"severity"`
}

// Filter narrows a log query. Zero values match everything.
type Filter struct {
	UserID    *uuid.UUID
	PatientID *uuid.UUID
	Kind      string
	Since     *time.Time
	Until     *time.Time
}
