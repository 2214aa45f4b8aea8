package grc

import (
	"strings"
	"unicode/utf8"
)

// Enum is a closed set of allowed values for one field. The first value is not implicitly a default.
type Enum struct {
	Field  string
	Values []string
}

// Has reports whether v is a member.
func (e Enum) Has(v string) bool {
	for _, x := range e.Values {
		if x == v {
			return true
		}
	}
	return false
}

// Check returns a validation error naming the field when v is not a member.
func (e Enum) Check(v string) error {
	if e.Has(v) {
		return nil
	}
	return Validation("%s must be one of: %s", e.Field, strings.Join(e.Values, ", "))
}

// Lifecycle values that are applied automatically.
const (
	UserActive = "Active"

	AuditPlanned          = "Planned"
	EvidencePendingReview = "Pending Review"
	EvidenceApproved      = "Approved"
	EvidenceRejected      = "Rejected"
	PolicyDraft           = "Draft"
	BCMDraft              = "Draft"
)

var (
	UserStatus = Enum{"status", []string{"Active", "Inactive", "Suspended"}}

	AssetType           = Enum{"type", []string{"System", "Application", "Database", "Network Device", "Physical Asset", "Information Asset", "Other"}}
	AssetClassification = Enum{"classification", []string{"Confidential", "Restricted", "Internal", "Public"}}
	AssetStatus         = Enum{"status", []string{"Active", "Decommissioned", "Under Maintenance"}}

	RiskCategory = Enum{"category", []string{"Cybersecurity", "Operational", "Financial", "Compliance", "Strategic", "Reputational", "Other"}}
	RiskStatus   = Enum{"status", []string{"Open", "Mitigated", "Accepted", "Transferred", "Closed", "Under Review"}}
	TaskStatus   = Enum{"task status", []string{"Open", "In Progress", "Completed", "Overdue"}}

	ControlStatus = Enum{"status", []string{"Implemented", "Partially Implemented", "Not Implemented", "Under Review", "Deficient"}}

	FrameworkType = Enum{"type", []string{"Regulatory", "Industry Standard", "Internal"}}

	PolicyStatus = Enum{"status", []string{"Draft", "Under Review", "Approved", "Published", "Archived", "Superseded"}}

	EvidenceStatus = Enum{"status", []string{"Pending Review", "Approved", "Rejected", "Expired"}}

	AuditType       = Enum{"type", []string{"Internal", "External", "Compliance", "Financial", "Operational", "IT"}}
	AuditStatus     = Enum{"status", []string{"Planned", "In Progress", "Fieldwork", "Reporting", "Closed", "Cancelled"}}
	FindingSeverity = Enum{"finding severity", []string{"Critical", "High", "Medium", "Low", "Observation"}}
	FindingStatus   = Enum{"finding status", []string{"Open", "In Progress", "Remediated", "Closed"}}

	BCMStatus      = Enum{"status", []string{"Draft", "Under Review", "Approved", "Active", "Archived", "Exercised"}}
	BCMTestType    = Enum{"test_type", []string{"Tabletop", "Functional", "Full-Scale"}}
	BCMTestOutcome = Enum{"outcome", []string{"Pass", "Fail", "Partial Pass"}}
)

// MaxLen rejects values longer than n characters.
func MaxLen(field, v string, n int) error {
	if utf8.RuneCountInString(v) > n {
		return Validation("%s cannot be more than %d characters", field, n)
	}
	return nil
}

// Range rejects integers outside [lo, hi].
func Range(field string, v, lo, hi int) error {
	if v < lo || v > hi {
		return Validation("%s must be between %d and %d", field, lo, hi)
	}
	return nil
}

// First returns the first non-nil error.
func First(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
