package enums

import "fmt"

// Complexity ranks the clinical difficulty of a case.
type Complexity string

const (
	ComplexityLow      Complexity = "low"
	ComplexityMedium   Complexity = "medium"
	ComplexityHigh     Complexity = "high"
	ComplexityCritical Complexity = "critical"
)

var validComplexities = []Complexity{
	ComplexityLow,
	ComplexityMedium,
	ComplexityHigh,
	ComplexityCritical,
}

var complexityRank = map[Complexity]int{
	ComplexityLow:      1,
	ComplexityMedium:   2,
	ComplexityHigh:     3,
	ComplexityCritical: 4,
}

// String implements fmt.Stringer.
func (c Complexity) String() string {
	return string(c)
}

// IsValid reports whether the value is a known Complexity.
func (c Complexity) IsValid() bool {
	for _, candidate := range validComplexities {
		if candidate == c {
			return true
		}
	}
	return false
}

// Rank returns a comparable rank; higher means more complex.
func (c Complexity) Rank() int {
	return complexityRank[c]
}

// AtLeast reports whether c can cover a case of complexity other.
func (c Complexity) AtLeast(other Complexity) bool {
	return c.Rank() >= other.Rank()
}

// ParseComplexity converts raw input into a Complexity.
func ParseComplexity(value string) (Complexity, error) {
	for _, candidate := range validComplexities {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid complexity %q", value)
}
