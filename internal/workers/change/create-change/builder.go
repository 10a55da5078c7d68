// internal/workers/change/create-change/builder.go
package createchange

import (
	"fmt"
	"time"

	"change-creator/internal/common/jira"
	"change-creator/internal/common/pipeline"
	"change-creator/internal/common/solarwinds"
)

const (
	plannedStartOffset = 30 * time.Minute
	plannedEndOffset   = 2 * time.Hour
	planningLayout     = "2006-01-02T15:04:05Z"
)

// Builder assembles the change request payload.
type Builder struct {
	defaults TicketDefaults
	enhancer *Enhancer
	now      func() time.Time
}

func NewBuilder(defaults TicketDefaults, enhancer *Enhancer, now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	return &Builder{defaults: defaults, enhancer: enhancer, now: now}
}

func (b *Builder) Build(dctx pipeline.DeploymentContext, issue *jira.Issue) *solarwinds.ChangeRequest {
	now := b.now().UTC()

	base := BaseDescription(dctx, now)
	description := b.enhancer.Enhance(issue, base, dctx, now)

	return &solarwinds.ChangeRequest{Change: solarwinds.Change{
		Name:        truncateName(changeName(dctx, issue)),
		Description: description,
		Requester:   solarwinds.Requester{Email: b.defaults.RequesterEmail},
		Category:    solarwinds.NamedRef{Name: b.defaults.Category},
		Subcategory: solarwinds.NamedRef{Name: b.defaults.Subcategory},
		Priority:    b.defaults.Priority,
		PlanningFields: solarwinds.PlanningFields{
			PlannedStartDate: now.Add(plannedStartOffset).Format(planningLayout),
			PlannedEndDate:   now.Add(plannedEndOffset).Format(planningLayout),
		},
	}}
}

func changeName(dctx pipeline.DeploymentContext, issue *jira.Issue) string {
	if issue != nil {
		return fmt.Sprintf("Production Deployment - %s: %s", issue.Key, issue.Summary)
	}
	return fmt.Sprintf("Production Deployment - Release %s", dctx.ReleaseID)
}
