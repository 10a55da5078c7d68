// internal/workers/change/create-change/service.go
package createchange

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"change-creator/internal/common/aws"
	"change-creator/internal/common/errors"
	"change-creator/internal/common/jira"
	"change-creator/internal/common/logger"
	"change-creator/internal/common/metrics"
	"change-creator/internal/common/observability"
	"change-creator/internal/common/pipeline"
	"change-creator/internal/common/solarwinds"
)

const (
	lookupFound    = "found"
	lookupNotFound = "not_found"
	lookupFailed   = "failed"
	lookupSkipped  = "skipped"
)

type IssueFetcher interface {
	GetIssue(ctx context.Context, issueKey string) (*jira.Issue, error)
}

type ChangeSubmitter interface {
	Submit(ctx context.Context, req *solarwinds.ChangeRequest) (*solarwinds.ChangeResponse, error)
}

type Notifier interface {
	Notify(ctx context.Context, a aws.Announcement) error
}

// Dependencies are the collaborators of a run. Issues, Notifier, Metrics and
// Telemetry may be nil.
type Dependencies struct {
	Issues    IssueFetcher
	Changes   ChangeSubmitter
	Notifier  Notifier
	Metrics   *metrics.RunMetrics
	Telemetry *observability.Observability
	Now       func() time.Time
}

// Service runs fetch, build, validate and submit for one deployment.
type Service struct {
	config    *Config
	issues    IssueFetcher
	changes   ChangeSubmitter
	notifier  Notifier
	builder   *Builder
	metrics   *metrics.RunMetrics
	telemetry *observability.Observability
	logger    logger.Logger
}

func NewService(cfg *Config, deps Dependencies, log logger.Logger) *Service {
	return &Service{
		config:    cfg,
		issues:    deps.Issues,
		changes:   deps.Changes,
		notifier:  deps.Notifier,
		builder:   NewBuilder(cfg.Defaults, NewEnhancer(log), deps.Now),
		metrics:   deps.Metrics,
		telemetry: deps.Telemetry,
		logger:    log,
	}
}

// Execute creates the change ticket for a production deployment. Only
// payload and submission failures are returned; issue problems degrade to
// an unlinked ticket.
func (s *Service) Execute(ctx context.Context, dctx pipeline.DeploymentContext) (*Result, error) {
	result := &Result{Outcome: OutcomeFailed, Deployment: dctx}

	issue := s.fetchIssue(ctx, dctx)
	if issue != nil {
		result.IssueKey = issue.Key
		risk := Assess(issue)
		result.Risk = &risk
	}

	req := s.builder.Build(dctx, issue)
	result.Request = req

	riskFactors := 0
	if result.Risk != nil {
		riskFactors = len(result.Risk.Factors)
	}
	s.metrics.ObserveChange(len(req.Change.Description), riskFactors)

	if err := ValidatePayload(req); err != nil {
		return result, err
	}

	if s.config.DryRun {
		result.Outcome = OutcomeDryRun
		return result, nil
	}

	resp, err := s.submit(ctx, req)
	if err != nil {
		return result, err
	}
	result.Response = resp

	if issue != nil {
		result.Outcome = OutcomeCreatedWithIssue
	} else {
		result.Outcome = OutcomeCreatedWithoutIssue
	}

	s.announce(ctx, result)
	return result, nil
}

func (s *Service) fetchIssue(ctx context.Context, dctx pipeline.DeploymentContext) *jira.Issue {
	if !dctx.HasIssue() {
		s.logger.Debug("no jira issue key detected", nil)
		return nil
	}
	if !s.config.FetchIssues || s.issues == nil {
		s.logger.Debug("jira description enhancement disabled", map[string]interface{}{
			"issueKey": dctx.IssueKey,
		})
		s.metrics.RecordIssueLookup(lookupSkipped)
		return nil
	}

	start := time.Now()
	spanCtx, span := s.telemetry.StartSpan(ctx, "jira.get_issue", attribute.String("issueKey", dctx.IssueKey))
	issue, err := s.issues.GetIssue(spanCtx, dctx.IssueKey)
	observability.EndSpan(span, err)
	s.telemetry.RecordStep(ctx, "fetch_issue", time.Since(start), err)

	if err != nil {
		s.logger.WithError(err).Warn("jira issue unavailable, continuing without it",
			errorFields(err, map[string]interface{}{"issueKey": dctx.IssueKey}))

		if errors.HasCode(err, errors.ErrCodeIssueNotFound) {
			s.metrics.RecordIssueLookup(lookupNotFound)
		} else {
			s.metrics.RecordIssueLookup(lookupFailed)
		}
		return nil
	}

	s.metrics.RecordIssueLookup(lookupFound)
	s.logger.Debug("retrieved jira issue", map[string]interface{}{
		"issueKey": issue.Key,
		"summary":  issue.Summary,
	})
	return issue
}

func (s *Service) submit(ctx context.Context, req *solarwinds.ChangeRequest) (*solarwinds.ChangeResponse, error) {
	start := time.Now()
	spanCtx, span := s.telemetry.StartSpan(ctx, "solarwinds.submit_change", attribute.String("name", req.Change.Name))
	resp, err := s.changes.Submit(spanCtx, req)
	observability.EndSpan(span, err)

	elapsed := time.Since(start)
	s.telemetry.RecordStep(ctx, "submit_change", elapsed, err)
	s.metrics.ObserveSubmit(elapsed)

	if err != nil {
		return nil, err
	}

	s.logger.Debug("change ticket response", map[string]interface{}{
		"ticketId":     resp.ID,
		"ticketNumber": resp.Number,
		"state":        resp.State,
	})
	return resp, nil
}

// announce failures are logged and never change the outcome.
func (s *Service) announce(ctx context.Context, result *Result) {
	if !s.config.Notify || s.notifier == nil || result.Response == nil {
		return
	}

	announcement := aws.Announcement{
		TicketNumber: result.Response.Number,
		TicketID:     result.Response.ID,
		Name:         result.Request.Change.Name,
		ReleaseID:    result.Deployment.ReleaseID,
		Repository:   result.Deployment.Repository,
		IssueKey:     result.IssueKey,
	}
	if result.Risk != nil {
		announcement.RiskLevel = result.Risk.Level.String()
	}

	start := time.Now()
	err := s.notifier.Notify(ctx, announcement)
	s.telemetry.RecordStep(ctx, "announce", time.Since(start), err)
	if err != nil {
		s.logger.WithError(err).Warn("change announcement failed",
			errorFields(err, map[string]interface{}{"ticketNumber": result.Response.Number}))
	}
}

// errorFields adds the code and category of a StandardError to fields.
func errorFields(err error, fields map[string]interface{}) map[string]interface{} {
	if stdErr, ok := errors.AsStandardError(err); ok {
		for k, v := range stdErr.Fields() {
			fields[k] = v
		}
	}
	return fields
}
