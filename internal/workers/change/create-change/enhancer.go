// internal/workers/change/create-change/enhancer.go
package createchange

import (
	"fmt"
	"strings"
	"time"

	"change-creator/internal/common/jira"
	"change-creator/internal/common/logger"
	"change-creator/internal/common/pipeline"
)

const (
	descriptionBanner    = "AUTOMATED PRODUCTION DEPLOYMENT"
	descriptionRule      = "================================"
	deploymentTimeLayout = "2006-01-02 15:04:05"
)

var deploymentProcessLines = []string{
	"- This is an automated production deployment initiated by the GitHub release pipeline",
	"- The deployment follows established CI/CD processes and has passed all required tests",
	"- This change is part of the regular software release cycle",
}

var rollbackPlanLines = []string{
	"- If issues are encountered, the previous version can be redeployed using the established rollback procedures",
	"- Application monitoring will be actively monitored for any anomalies post-deployment",
}

// Enhancer rewrites the base change description with context from a Jira issue.
type Enhancer struct {
	logger logger.Logger
	assess func(*jira.Issue) RiskAssessment
}

func NewEnhancer(log logger.Logger) *Enhancer {
	return &Enhancer{logger: log, assess: Assess}
}

// Enhance never fails: without an issue, or if rendering goes wrong, the base
// description is returned as given. now must be the instant the base
// description was built with.
func (e *Enhancer) Enhance(issue *jira.Issue, baseDescription string, dctx pipeline.DeploymentContext, now time.Time) (description string) {
	if issue == nil {
		e.logger.Debug("no jira issue provided, using base description", nil)
		return baseDescription
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("error enhancing description, falling back to base description", map[string]interface{}{
				"issueKey": issue.Key,
				"panic":    fmt.Sprint(r),
			})
			description = baseDescription
		}
	}()

	description = e.render(issue, dctx, now)
	e.logger.Debug("enhanced description with jira issue", map[string]interface{}{
		"issueKey": issue.Key,
		"length":   len(description),
	})
	return description
}

func (e *Enhancer) render(issue *jira.Issue, dctx pipeline.DeploymentContext, now time.Time) string {
	var sb strings.Builder

	writeHeader(&sb)

	sb.WriteString("DEPLOYMENT INFORMATION:\n")
	writeDeploymentFacts(&sb, dctx, now)
	sb.WriteString("\n")

	sb.WriteString("ASSOCIATED JIRA ISSUE:\n")
	fmt.Fprintf(&sb, "Issue Key: %s\n", issue.Key)
	fmt.Fprintf(&sb, "Summary: %s\n", cleanText(issue.Summary))
	fmt.Fprintf(&sb, "Type: %s\n", issue.IssueType)
	fmt.Fprintf(&sb, "Priority: %s\n", issue.Priority)
	fmt.Fprintf(&sb, "Status: %s\n", issue.Status)
	if issue.Assignee != nil && issue.Assignee.DisplayName != "" {
		fmt.Fprintf(&sb, "Assignee: %s\n", issue.Assignee.DisplayName)
	}
	if len(issue.Components) > 0 {
		fmt.Fprintf(&sb, "Components: %s\n", strings.Join(issue.Components, ", "))
	}
	if len(issue.Labels) > 0 {
		fmt.Fprintf(&sb, "Labels: %s\n", strings.Join(issue.Labels, ", "))
	}
	sb.WriteString("\n")

	sb.WriteString("CHANGE DETAILS (from Jira):\n")
	sb.WriteString(changeDetails(jira.ExtractPlainText(issue)))
	sb.WriteString("\n\n")

	sb.WriteString("DEPLOYMENT PROCESS:\n")
	for _, line := range deploymentProcessLines {
		sb.WriteString(line + "\n")
	}
	fmt.Fprintf(&sb, "- Associated with Jira issue: %s\n", issue.Key)
	sb.WriteString("\n")

	sb.WriteString("RISK ASSESSMENT:\n")
	sb.WriteString(e.assess(issue).Render())
	sb.WriteString("\n\n")

	sb.WriteString("ROLLBACK PLAN:\n")
	for _, line := range rollbackPlanLines {
		sb.WriteString(line + "\n")
	}
	fmt.Fprintf(&sb, "- Jira issue %s will be updated with deployment status and any rollback actions\n", issue.Key)

	return sb.String()
}

// BaseDescription is the deployment-facts-only description used when no
// issue is linked or enhancement fails.
func BaseDescription(dctx pipeline.DeploymentContext, now time.Time) string {
	var sb strings.Builder

	writeHeader(&sb)
	writeDeploymentFacts(&sb, dctx, now)
	sb.WriteString("\n")

	sb.WriteString("CHANGE DETAILS:\n")
	for _, line := range deploymentProcessLines {
		sb.WriteString(line + "\n")
	}
	sb.WriteString("\n")

	sb.WriteString("ROLLBACK PLAN:\n")
	for _, line := range rollbackPlanLines {
		sb.WriteString(line + "\n")
	}

	return sb.String()
}

func writeHeader(sb *strings.Builder) {
	sb.WriteString(descriptionBanner + "\n")
	sb.WriteString(descriptionRule + "\n\n")
}

func writeDeploymentFacts(sb *strings.Builder, dctx pipeline.DeploymentContext, now time.Time) {
	fmt.Fprintf(sb, "Release ID: %s\n", dctx.ReleaseID)
	fmt.Fprintf(sb, "Repository: %s\n", dctx.Repository)
	fmt.Fprintf(sb, "Branch: %s\n", dctx.Branch)
	fmt.Fprintf(sb, "Deployment Time: %s UTC\n", now.UTC().Format(deploymentTimeLayout))
}
