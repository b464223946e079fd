package models

import (
	"time"
)

// IssueSeverity classifies a validation finding
type IssueSeverity string

const (
	SeverityError   IssueSeverity = "error"
	SeverityWarning IssueSeverity = "warning"
	SeverityInfo    IssueSeverity = "info"
)

// ValidationIssue is a single classified finding from the validation engine
type ValidationIssue struct {
	Severity    IssueSeverity `json:"severity"`
	Metric      string        `json:"metric,omitempty"`
	Description string        `json:"description"`
}

// ValidationResult is the derived quality assessment of a model version. It is
// recomputable from stored metadata alone and is never authoritative for the
// deployment invariant.
type ValidationResult struct {
	Version         string            `json:"version"`
	IsValid         bool              `json:"is_valid"`
	Score           float64           `json:"score"`
	QualityMetrics  BasicMetrics      `json:"quality_metrics"`
	Issues          []ValidationIssue `json:"issues"`
	Errors          []string          `json:"errors"`
	Warnings        []string          `json:"warnings"`
	Recommendations []string          `json:"recommendations"`
	ComputedAt      time.Time         `json:"computed_at"`
}

// HasErrors reports whether any hard validation error was recorded
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// PackageSummary reports the outcome of a package import: which required
// members were found and which optional members were absent.
type PackageSummary struct {
	Version              string   `json:"version"`
	RequiredFilesPresent []string `json:"required_files_present"`
	OptionalFilesMissing []string `json:"optional_files_missing"`
	Warnings             []string `json:"warnings"`
}
