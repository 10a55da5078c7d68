package solarwinds

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"change-creator/internal/common/errors"
	httpclient "change-creator/internal/common/http"
	"change-creator/internal/common/logger"
)

const AuthHeader = "X-Samanage-Authorization"

type Config struct {
	ServiceURL string
	APIToken   string
	Timeout    time.Duration
}

// Client creates change records in SolarWinds Service Desk.
type Client struct {
	http   *httpclient.Client
	logger logger.Logger
}

func NewClient(cfg Config, log logger.Logger, opts ...httpclient.Option) *Client {
	options := append([]httpclient.Option{
		httpclient.WithHeader(AuthHeader, fmt.Sprintf("Bearer %s", cfg.APIToken)),
	}, opts...)
	return &Client{
		http:   httpclient.NewClient(cfg.ServiceURL, cfg.Timeout, options...),
		logger: log,
	}
}

// Submit posts an already built change request. A non-success status is
// returned as CHANGE_REJECTED carrying the status and response body; the
// caller is responsible for reporting it.
func (c *Client) Submit(ctx context.Context, req *ChangeRequest) (*ChangeResponse, error) {
	if req == nil {
		return nil, errors.NewChangeSubmitFailedError(fmt.Errorf("change request is nil"))
	}

	c.logger.Debug("Creating change ticket", map[string]interface{}{
		"name":         req.Change.Name,
		"plannedStart": req.Change.PlanningFields.PlannedStartDate,
		"plannedEnd":   req.Change.PlanningFields.PlannedEndDate,
	})

	resp, err := c.http.DoJSON(ctx, http.MethodPost, "/changes.json", req)
	if err != nil {
		return nil, errors.NewChangeSubmitFailedError(err)
	}

	if !resp.IsSuccess() {
		return nil, errors.NewChangeRejectedError(resp.StatusCode, string(resp.Body))
	}

	c.logger.Debug("Change ticket creation response", map[string]interface{}{
		"statusCode": resp.StatusCode,
		"response":   string(resp.Body),
	})

	var changeResp ChangeResponse
	if err := resp.DecodeJSON(&changeResp); err != nil {
		return nil, errors.NewChangeDecodeFailedError(err)
	}

	return &changeResp, nil
}
