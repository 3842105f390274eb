package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ValidationError is a single field-level configuration problem.
type ValidationError struct {
	Field   string `json:"field"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (value: %s)", e.Field, e.Message, e.Value)
}

// ValidationResult aggregates every problem found in a config pass.
// It doubles as the fatal config error surfaced before a run starts:
// a non-valid result returned through Err carries all field errors.
type ValidationResult struct {
	Valid  bool               `json:"valid"`
	Errors []*ValidationError `json:"errors,omitempty"`
}

// NewResult returns a result with no recorded errors.
func NewResult() *ValidationResult {
	return &ValidationResult{Valid: true}
}

// AddError records a field error and marks the result invalid.
func (r *ValidationResult) AddError(field, value, message string) {
	r.Valid = false
	r.Errors = append(r.Errors, &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	})
}

// Merge folds another result's errors into this one.
func (r *ValidationResult) Merge(other *ValidationResult) {
	if other == nil || other.Valid {
		return
	}
	r.Valid = false
	r.Errors = append(r.Errors, other.Errors...)
}

func (r *ValidationResult) Error() string {
	if r.Valid || len(r.Errors) == 0 {
		return "configuration is valid"
	}
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// Err returns the result as an error, or nil when valid.
func (r *ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return r
}

// CPU quantities accept Kubernetes forms: "100m", "0.5", "1", "2.5".
var cpuRegex = regexp.MustCompile(`^(\d+\.?\d*|\.\d+)m?$`)

// ValidateCPU checks a Kubernetes CPU quantity string. Empty is valid
// (optional field).
func ValidateCPU(value string) error {
	if value == "" {
		return nil
	}

	value = strings.TrimSpace(value)
	if !cpuRegex.MatchString(value) {
		return &ValidationError{
			Field:   "cpu",
			Value:   value,
			Message: "invalid format, use 100m (millicores) or 0.5, 1, 2 (cores)",
		}
	}

	numStr := strings.TrimSuffix(value, "m")
	num, err := strconv.ParseFloat(numStr, 64)
	if err != nil || num <= 0 {
		return &ValidationError{
			Field:   "cpu",
			Value:   value,
			Message: "value must be positive",
		}
	}

	// 128 cores is already beyond any sane burner pod.
	if strings.HasSuffix(value, "m") {
		if num > 128000 {
			return &ValidationError{
				Field:   "cpu",
				Value:   value,
				Message: "value too high (maximum: 128 cores / 128000m)",
			}
		}
	} else if num > 128 {
		return &ValidationError{
			Field:   "cpu",
			Value:   value,
			Message: "value too high (maximum: 128 cores)",
		}
	}

	return nil
}

// Memory quantities accept Kubernetes forms: "128Mi", "1Gi", "512M".
var memoryRegex = regexp.MustCompile(`^(\d+)(Mi|Gi|M|G|Ki|K|Ti|T)$`)

// ValidateMemory checks a Kubernetes memory quantity string. Empty is
// valid (optional field).
func ValidateMemory(value string) error {
	if value == "" {
		return nil
	}

	value = strings.TrimSpace(value)
	matches := memoryRegex.FindStringSubmatch(value)
	if len(matches) < 3 {
		return &ValidationError{
			Field:   "memory",
			Value:   value,
			Message: "invalid format, use 128Mi, 512Mi, 1Gi (k8s format)",
		}
	}

	num, _ := strconv.ParseInt(matches[1], 10, 64)
	if num <= 0 {
		return &ValidationError{
			Field:   "memory",
			Value:   value,
			Message: "value must be positive",
		}
	}

	bytes := num
	switch matches[2] {
	case "Ki", "K":
		bytes *= 1 << 10
	case "Mi", "M":
		bytes *= 1 << 20
	case "Gi", "G":
		bytes *= 1 << 30
	case "Ti", "T":
		bytes *= 1 << 40
	}

	if bytes > 1<<40 {
		return &ValidationError{
			Field:   "memory",
			Value:   value,
			Message: "value too high (maximum: 1Ti)",
		}
	}

	return nil
}

// ValidateReplicaBounds checks a min/max replica window.
func ValidateReplicaBounds(min, max int32) *ValidationResult {
	result := NewResult()

	if min < 1 {
		result.AddError("minReplicas", fmt.Sprintf("%d", min), "must be >= 1")
	}
	if max < 1 {
		result.AddError("maxReplicas", fmt.Sprintf("%d", max), "must be >= 1")
	}
	if max > 1000 {
		result.AddError("maxReplicas", fmt.Sprintf("%d", max), "too high (recommended maximum: 1000)")
	}
	if min > max {
		result.AddError("minReplicas", fmt.Sprintf("%d", min), "must not exceed maxReplicas")
	}

	return result
}

// ValidatePositiveDuration checks that a duration field is set and > 0.
func ValidatePositiveDuration(field string, d time.Duration) error {
	if d <= 0 {
		return &ValidationError{
			Field:   field,
			Value:   d.String(),
			Message: "must be a positive duration",
		}
	}
	return nil
}
