package jira

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"change-creator/internal/common/errors"
	httpclient "change-creator/internal/common/http"
	"change-creator/internal/common/logger"
)

const issueFields = "summary,description,priority,issuetype,status,assignee,components,labels"

type Config struct {
	BaseURL  string
	Username string
	APIToken string
	Timeout  time.Duration
}

// Client fetches issues from the Jira Cloud REST API v3.
type Client struct {
	http   *httpclient.Client
	logger logger.Logger
}

func NewClient(cfg Config, log logger.Logger, opts ...httpclient.Option) *Client {
	options := append([]httpclient.Option{httpclient.WithBasicAuth(cfg.Username, cfg.APIToken)}, opts...)
	return &Client{
		http:   httpclient.NewClient(cfg.BaseURL, cfg.Timeout, options...),
		logger: log,
	}
}

// GetIssue fetches one issue by key. Every failure is returned as a
// *errors.StandardError so callers can log it and carry on without the issue.
func (c *Client) GetIssue(ctx context.Context, issueKey string) (*Issue, error) {
	issueKey = strings.TrimSpace(issueKey)
	if issueKey == "" {
		return nil, errors.NewIssueFetchFailedError(issueKey, 0, "issue key is empty", nil)
	}

	c.logger.Debug("Fetching Jira issue", map[string]interface{}{"issueKey": issueKey})

	path := fmt.Sprintf("/rest/api/3/issue/%s?fields=%s", url.PathEscape(issueKey), issueFields)
	resp, err := c.http.DoJSON(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, errors.NewIssueFetchFailedError(issueKey, 0, err.Error(), err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.NewIssueNotFoundError(issueKey)
	}
	if !resp.IsSuccess() {
		return nil, errors.NewIssueFetchFailedError(issueKey, resp.StatusCode, string(resp.Body), nil)
	}

	issue, err := DecodeIssue(resp.Body)
	if err != nil {
		return nil, errors.NewIssueDecodeFailedError(issueKey, err)
	}

	c.logger.Debug("Successfully retrieved Jira issue", map[string]interface{}{
		"issueKey":        issue.Key,
		"summary":         issue.Summary,
		"descriptionKind": issue.Description.Kind().String(),
	})
	return issue, nil
}
