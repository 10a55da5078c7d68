// internal/workers/change/create-change/models.go
package createchange

import (
	"change-creator/internal/common/pipeline"
	"change-creator/internal/common/solarwinds"
)

// RiskLevel is ordered: a higher value is a riskier deployment.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskMediumHigh
	RiskHigh
)

func (l RiskLevel) String() string {
	switch l {
	case RiskLow:
		return "Low"
	case RiskMedium:
		return "Medium"
	case RiskMediumHigh:
		return "Medium-High"
	case RiskHigh:
		return "High"
	default:
		return "Unknown"
	}
}

type RiskAssessment struct {
	Level   RiskLevel
	Factors []string
}

// Outcome is the result of one run, also used as the metrics label.
type Outcome string

const (
	OutcomeSkipped             Outcome = "skipped"
	OutcomeCreatedWithIssue    Outcome = "created_with_issue"
	OutcomeCreatedWithoutIssue Outcome = "created_without_issue"
	OutcomeDryRun              Outcome = "dry_run"
	OutcomeFailed              Outcome = "failed"
)

// Result carries everything a run produced.
type Result struct {
	Outcome    Outcome
	Deployment pipeline.DeploymentContext
	// IssueKey is set only when the issue was actually fetched.
	IssueKey string
	Risk     *RiskAssessment
	Request  *solarwinds.ChangeRequest
	Response *solarwinds.ChangeResponse
}
