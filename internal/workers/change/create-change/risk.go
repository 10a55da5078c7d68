// internal/workers/change/create-change/risk.go
package createchange

import (
	"strings"

	"change-creator/internal/common/jira"
)

const (
	FactorHighPriority      = "High priority issue"
	FactorBugFix            = "Bug fix deployment"
	FactorCriticalComponent = "Critical system components affected"
	FactorBreakingChange    = "Breaking changes or database migrations"

	standardDeploymentLine = "• Standard deployment with minimal risk factors identified"
)

var (
	criticalComponents = []string{"database", "security", "authentication"}
	breakingLabels     = []string{"breaking-change", "database-migration"}
)

// Assess scores an issue. Rules only ever raise the level, except the
// breaking-change rule which pins it to High.
func Assess(issue *jira.Issue) RiskAssessment {
	assessment := RiskAssessment{Level: RiskLow}
	if issue == nil {
		return assessment
	}

	if containsAny(issue.Priority, "high", "critical") {
		assessment.Factors = append(assessment.Factors, FactorHighPriority)
		assessment.Level = escalate(assessment.Level, RiskMediumHigh)
	}

	if containsAny(issue.IssueType, "bug") {
		assessment.Factors = append(assessment.Factors, FactorBugFix)
		if assessment.Level == RiskLow {
			assessment.Level = RiskMedium
		} else {
			assessment.Level = escalate(assessment.Level, RiskMediumHigh)
		}
	}

	if anyContains(issue.Components, criticalComponents...) {
		assessment.Factors = append(assessment.Factors, FactorCriticalComponent)
		assessment.Level = escalate(assessment.Level, RiskMediumHigh)
	}

	if anyContains(issue.Labels, breakingLabels...) {
		assessment.Factors = append(assessment.Factors, FactorBreakingChange)
		assessment.Level = RiskHigh
	}

	return assessment
}

func escalate(current, to RiskLevel) RiskLevel {
	if to > current {
		return to
	}
	return current
}

// Render formats the assessment for the change description.
func (a RiskAssessment) Render() string {
	var sb strings.Builder
	sb.WriteString("Risk Level: " + a.Level.String() + "\n")
	if len(a.Factors) == 0 {
		sb.WriteString(standardDeploymentLine)
		return sb.String()
	}
	sb.WriteString("Risk Factors:")
	for _, factor := range a.Factors {
		sb.WriteString("\n  • " + factor)
	}
	return sb.String()
}

func containsAny(s string, needles ...string) bool {
	s = strings.ToLower(s)
	for _, needle := range needles {
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}

func anyContains(values []string, needles ...string) bool {
	for _, v := range values {
		if containsAny(v, needles...) {
			return true
		}
	}
	return false
}
