package enums

import "fmt"

// CaseStatus tracks the lifecycle of a case.
type CaseStatus string

const (
	CaseStatusSubmitted  CaseStatus = "submitted"
	CaseStatusPending    CaseStatus = "pending"
	CaseStatusAssigned   CaseStatus = "assigned"
	CaseStatusAccepted   CaseStatus = "accepted"
	CaseStatusInProgress CaseStatus = "in_progress"
	CaseStatusClosed     CaseStatus = "closed"
	CaseStatusRejected   CaseStatus = "rejected"
)

var validCaseStatuses = []CaseStatus{
	CaseStatusSubmitted,
	CaseStatusPending,
	CaseStatusAssigned,
	CaseStatusAccepted,
	CaseStatusInProgress,
	CaseStatusClosed,
	CaseStatusRejected,
}

// String implements fmt.Stringer.
func (c CaseStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CaseStatus.
func (c CaseStatus) IsValid() bool {
	for _, candidate := range validCaseStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// Assignable reports whether a case in this status may receive assignments.
func (c CaseStatus) Assignable() bool {
	return c == CaseStatusSubmitted || c == CaseStatusPending
}

// ParseCaseStatus converts raw input into a CaseStatus.
func ParseCaseStatus(value string) (CaseStatus, error) {
	for _, candidate := range validCaseStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid case status %q", value)
}
