package authz

import "sort"

// MatrixEntry grants a (role, purpose) pair access to a set of data
// categories. The matrix is the RBAC+purpose base layer; consent,
// encounter scoping, and break-glass refine it downstream.
type MatrixEntry struct {
	Role       Role
	Purpose    Purpose
	Categories []DataCategory
}

type matrixKey struct {
	role    Role
	purpose Purpose
}

// Matrix is an immutable policy table. Absence of a (role, purpose) key
// yields the empty set: unknown combinations deny, they never error.
type Matrix struct {
	allowed map[matrixKey]map[DataCategory]bool
}

// NewMatrix builds a Matrix from entries. Entries for the same
// (role, purpose) pair are merged.
func NewMatrix(entries []MatrixEntry) *Matrix {
	allowed := make(map[matrixKey]map[DataCategory]bool, len(entries))
	for _, e := range entries {
		key := matrixKey{role: e.Role, purpose: e.Purpose}
		set, ok := allowed[key]
		if !ok {
			set = make(map[DataCategory]bool, len(e.Categories))
			allowed[key] = set
		}
		for _, c := range e.Categories {
			set[c] = true
		}
	}
	return &Matrix{allowed: allowed}
}

// DefaultMatrix returns the shipped policy table. Extension is by adding
// entries here, not by runtime rule compilation.
func DefaultMatrix() *Matrix {
	return NewMatrix([]MatrixEntry{
		{RoleDoctor, PurposeTreatment, []DataCategory{CategoryClinical, CategoryGenetic, CategoryPredictions, CategoryDemographics}},
		{RoleDoctor, PurposeEmergency, []DataCategory{CategoryClinical, CategoryPredictions, CategoryDemographics}},
		{RoleDoctor, PurposeQuality, []DataCategory{CategoryAnonClinical, CategoryModelInfo}},

		{RoleNurse, PurposeTreatment, []DataCategory{CategoryClinical, CategoryPredictions, CategoryDemographics}},
		{RoleNurse, PurposeEmergency, []DataCategory{CategoryClinical, CategoryDemographics}},

		{RoleResearcher, PurposeResearch, []DataCategory{CategoryClinical, CategoryPredictions, CategoryAnonClinical, CategoryModelInfo}},

		{RoleAdmin, PurposeQuality, []DataCategory{CategoryAuditLogs, CategoryAnonClinical, CategoryModelInfo}},
		{RoleAdmin, PurposeBilling, []DataCategory{CategoryDemographics}},

		{RolePatient, PurposeTreatment, []DataCategory{CategoryClinical, CategoryPredictions, CategoryDemographics}},

		{RoleReceptionist, PurposeRegistration, []DataCategory{CategoryDemographics}},
		{RoleReceptionist, PurposeBilling, []DataCategory{CategoryDemographics}},
	})
}

// Allows reports whether the base policy grants the category to the
// (role, purpose) pair. Missing pairs deny.
func (m *Matrix) Allows(role Role, purpose Purpose, category DataCategory) bool {
	return m.allowed[matrixKey{role: role, purpose: purpose}][category]
}

// Lookup returns the allowed categories for a (role, purpose) pair,
// sorted for stable output. Missing pairs return nil.
func (m *Matrix) Lookup(role Role, purpose Purpose) []DataCategory {
	set := m.allowed[matrixKey{role: role, purpose: purpose}]
	if len(set) == 0 {
		return nil
	}
	out := make([]DataCategory, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
