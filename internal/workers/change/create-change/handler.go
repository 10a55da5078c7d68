// internal/workers/change/create-change/handler.go
package createchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"change-creator/internal/common/errors"
	"change-creator/internal/common/logger"
	"change-creator/internal/common/metrics"
	"change-creator/internal/common/observability"
	"change-creator/internal/common/pipeline"
)

const TaskType = "create-change"

// Handler is the process boundary of a run: it gates on production, emits
// the single summary line and maps the result to an exit code.
type Handler struct {
	provider  pipeline.Provider
	service   *Service
	metrics   *metrics.RunMetrics
	telemetry *observability.Observability
	logger    logger.Logger
	out       io.Writer
}

func NewHandler(provider pipeline.Provider, service *Service, deps Dependencies, log logger.Logger, out io.Writer) *Handler {
	return &Handler{
		provider:  provider,
		service:   service,
		metrics:   deps.Metrics,
		telemetry: deps.Telemetry,
		logger:    log.WithFields(map[string]interface{}{"taskType": TaskType}),
		out:       out,
	}
}

func (h *Handler) Run(ctx context.Context) (exitCode int) {
	errorHandler := errors.NewErrorHandler(h.logger)

	defer func() {
		if r := recover(); r != nil {
			h.record(ctx, OutcomeFailed)
			exitCode = errorHandler.Handle("an unexpected error occurred while creating the change ticket",
				errors.NewInternalError(fmt.Errorf("panic: %v", r)))
		}
	}()

	if !h.provider.IsProductionDeployment() {
		h.logger.Warn("skipping change ticket creation: not a production deployment", nil)
		h.record(ctx, OutcomeSkipped)
		return errors.ExitCodeSuccess
	}

	if err := h.service.config.Validate(); err != nil {
		h.record(ctx, OutcomeFailed)
		return errorHandler.Handle("invalid change ticket configuration", errors.NewConfigInvalidError(err))
	}

	dctx := pipeline.Resolve(h.provider)
	log := h.logger.WithFields(map[string]interface{}{"releaseId": dctx.ReleaseID})
	log.Debug("pipeline information", map[string]interface{}{
		"repository": dctx.Repository,
		"branch":     dctx.Branch,
		"issueKey":   issueKeyOrNone(dctx.IssueKey),
	})

	result, err := h.service.Execute(ctx, dctx)
	if err != nil {
		h.record(ctx, OutcomeFailed)
		return errors.NewErrorHandler(log).Handle("failed to create change ticket", err)
	}

	switch result.Outcome {
	case OutcomeDryRun:
		if err := h.printDryRun(result); err != nil {
			h.record(ctx, OutcomeFailed)
			return errors.NewErrorHandler(log).Handle("failed to render dry run", errors.NewInternalError(err))
		}
		log.Info("dry run: change ticket not submitted", map[string]interface{}{
			"issueKey": result.IssueKey,
			"name":     result.Request.Change.Name,
		})
	case OutcomeCreatedWithIssue:
		log.Info("change ticket created", map[string]interface{}{
			"issueKey":     result.IssueKey,
			"ticketNumber": result.Response.Number,
		})
	default:
		fields := map[string]interface{}{"ticketNumber": result.Response.Number}
		if dctx.HasIssue() {
			fields["detectedIssueKey"] = dctx.IssueKey
		}
		log.Info("change ticket created without linked issue", fields)
	}

	h.record(ctx, result.Outcome)
	return errors.ExitCodeSuccess
}

func (h *Handler) record(ctx context.Context, outcome Outcome) {
	h.metrics.RecordRun(string(outcome))
	h.telemetry.RecordRun(ctx, string(outcome))
}

func (h *Handler) printDryRun(result *Result) error {
	change := result.Request.Change

	risk := "n/a"
	if result.Risk != nil {
		risk = result.Risk.Level.String()
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(h.out)
	tw.AppendHeader(table.Row{"Field", "Value"})
	tw.AppendRow(table.Row{"Name", change.Name})
	tw.AppendRow(table.Row{"Requester", change.Requester.Email})
	tw.AppendRow(table.Row{"Category", change.Category.Name})
	tw.AppendRow(table.Row{"Subcategory", change.Subcategory.Name})
	tw.AppendRow(table.Row{"Priority", change.Priority})
	tw.AppendRow(table.Row{"Planned start", change.PlanningFields.PlannedStartDate})
	tw.AppendRow(table.Row{"Planned end", change.PlanningFields.PlannedEndDate})
	tw.AppendRow(table.Row{"Linked issue", issueKeyOrNone(result.IssueKey)})
	tw.AppendRow(table.Row{"Risk level", risk})
	tw.Render()

	payload, err := json.MarshalIndent(result.Request, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(h.out, string(payload))
	return err
}

func issueKeyOrNone(key string) string {
	if key == "" {
		return "None"
	}
	return key
}
