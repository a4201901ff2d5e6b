package enums

import "fmt"

// AssignmentPriority ranks a provider's role on a case.
type AssignmentPriority string

const (
	AssignmentPriorityPrimary    AssignmentPriority = "primary"
	AssignmentPrioritySecondary  AssignmentPriority = "secondary"
	AssignmentPriorityConsultant AssignmentPriority = "consultant"
)

var validAssignmentPriorities = []AssignmentPriority{
	AssignmentPriorityPrimary,
	AssignmentPrioritySecondary,
	AssignmentPriorityConsultant,
}

// String implements fmt.Stringer.
func (a AssignmentPriority) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AssignmentPriority.
func (a AssignmentPriority) IsValid() bool {
	for _, candidate := range validAssignmentPriorities {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAssignmentPriority converts raw input into an AssignmentPriority.
func ParseAssignmentPriority(value string) (AssignmentPriority, error) {
	for _, candidate := range validAssignmentPriorities {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid assignment priority %q", value)
}
