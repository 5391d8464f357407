package authz

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role is the enumerated actor class carried by an access request.
// It is fixed per request and comes from the authenticated identity,
// never from the request body.
type Role string

const (
	RoleDoctor       Role = "doctor"
	RoleNurse        Role = "nurse"
	RoleResearcher   Role = "researcher"
	RoleAdmin        Role = "admin"
	RolePatient      Role = "patient"
	RoleReceptionist Role = "receptionist"
)

var validRoles = map[Role]bool{
	RoleDoctor:       true,
	RoleNurse:        true,
	RoleResearcher:   true,
	RoleAdmin:        true,
	RolePatient:      true,
	RoleReceptionist: true,
}

// ParseRole validates a role string at the boundary. Unknown roles are
// rejected here rather than silently producing empty policy lookups.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !validRoles[r] {
		return "", fmt.Errorf("unknown role: %q", s)
	}
	return r, nil
}

// Purpose is the declared reason for access. It is always stated by the
// caller and never inferred from context.
type Purpose string

const (
	PurposeTreatment    Purpose = "treatment"
	PurposeResearch     Purpose = "research"
	PurposeBilling      Purpose = "billing"
	PurposeQuality      Purpose = "quality_improvement"
	PurposeRegistration Purpose = "registration"
	PurposeEmergency    Purpose = "emergency"
)

var validPurposes = map[Purpose]bool{
	PurposeTreatment:    true,
	PurposeResearch:     true,
	PurposeBilling:      true,
	PurposeQuality:      true,
	PurposeRegistration: true,
	PurposeEmergency:    true,
}

// ParsePurpose validates a purpose string at the boundary.
func ParsePurpose(s string) (Purpose, error) {
	p := Purpose(s)
	if !validPurposes[p] {
		return "", fmt.Errorf("unknown purpose: %q", s)
	}
	return p, nil
}

// DataCategory is the sensitivity class of the data being requested.
type DataCategory string

const (
	CategoryClinical     DataCategory = "clinical"
	CategoryGenetic      DataCategory = "genetic"
	CategoryPredictions  DataCategory = "predictions"
	CategoryDemographics DataCategory = "demographics"
	CategoryAuditLogs    DataCategory = "audit_logs"
	CategoryAnonClinical DataCategory = "anonymized_clinical"
	CategoryModelInfo    DataCategory = "model_info"
)

var validCategories = map[DataCategory]bool{
	CategoryClinical:     true,
	CategoryGenetic:      true,
	CategoryPredictions:  true,
	CategoryDemographics: true,
	CategoryAuditLogs:    true,
	CategoryAnonClinical: true,
	CategoryModelInfo:    true,
}

// ParseDataCategory validates a data category string at the boundary.
func ParseDataCategory(s string) (DataCategory, error) {
	c := DataCategory(s)
	if !validCategories[c] {
		return "", fmt.Errorf("unknown data category: %q", s)
	}
	return c, nil
}

// patientScoped categories always refer to a single patient's data and
// therefore require a patient_id on the request.
var patientScoped = map[DataCategory]bool{
	CategoryClinical:     true,
	CategoryGenetic:      true,
	CategoryPredictions:  true,
	CategoryDemographics: true,
}

// PatientScoped reports whether requests for the category must name a patient.
func PatientScoped(c DataCategory) bool {
	return patientScoped[c]
}

// AccessRequest is a single authorization question: may this user, in
// this role, for this declared purpose, read this category of data
// about this patient?
type AccessRequest struct {
	UserID          uuid.UUID    `json:"user_id"`
	Role            Role         `json:"role"`
	Purpose         Purpose      `json:"purpose"`
	Category        DataCategory `json:"data_category"`
	PatientID       uuid.UUID    `json:"patient_id,omitempty"`
	EncounterID     *uuid.UUID   `json:"encounter_id,omitempty"`
	BreakGlassToken *uuid.UUID   `json:"break_glass_token,omitempty"`
	Timestamp       time.Time    `json:"timestamp"`
}

// Conditions are obligations attached to a granted decision.
type Conditions struct {
	MaxDurationHours       *int `json:"max_duration_hours,omitempty"`
	RequiresAudit          bool `json:"requires_audit"`
	RequiresReverification bool `json:"requires_reverification,omitempty"`
}

// AccessDecision is the immutable outcome of an evaluation. It is
// produced once, written to the audit log, and never mutated afterward.
type AccessDecision struct {
	Granted    bool       `json:"granted"`
	Reason     string     `json:"reason"`
	BreakGlass bool       `json:"break_glass"`
	Conditions Conditions `json:"conditions"`
}
