package createchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"change-creator/internal/common/aws"
	"change-creator/internal/common/errors"
	"change-creator/internal/common/jira"
	"change-creator/internal/common/logger"
	"change-creator/internal/common/metrics"
	"change-creator/internal/common/pipeline"
	"change-creator/internal/common/solarwinds"
)

const scenarioBIssue = `{
  "key": "OPS-42",
  "fields": {
    "summary": "Fix connection pool exhaustion",
    "description": {
      "type": "doc",
      "version": 1,
      "content": [
        {"type": "paragraph", "content": [{"type": "text", "text": "Raise the pool size"}]},
        {"type": "paragraph", "content": [{"type": "text", "text": "Add a migration for the pool table"}]}
      ]
    },
    "priority": {"name": "Critical"},
    "issuetype": {"name": "Bug"},
    "status": {"name": "Ready for Release"},
    "assignee": {"displayName": "Sam Rivera"},
    "components": [{"name": "Database"}],
    "labels": ["breaking-change"]
  }
}`

const createdChange = `{"id":1234,"number":"CHG-1001","name":"x","state":"New","created_at":"2026-10-18T10:00:05Z"}`

// fakeServers stands in for Jira and the service desk and counts calls.
type fakeServers struct {
	jira       *httptest.Server
	solarwinds *httptest.Server

	jiraCalls   int
	submitCalls int
	submitted   solarwinds.ChangeRequest

	jiraStatus   int
	jiraBody     string
	submitStatus int
	submitBody   string
}

func newFakeServers(t *testing.T) *fakeServers {
	f := &fakeServers{
		jiraStatus:   http.StatusOK,
		jiraBody:     scenarioBIssue,
		submitStatus: http.StatusCreated,
		submitBody:   createdChange,
	}

	f.jira = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.jiraCalls++
		w.WriteHeader(f.jiraStatus)
		w.Write([]byte(f.jiraBody))
	}))
	f.solarwinds = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.submitCalls++
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&f.submitted))
		w.WriteHeader(f.submitStatus)
		w.Write([]byte(f.submitBody))
	}))

	t.Cleanup(func() {
		f.jira.Close()
		f.solarwinds.Close()
	})
	return f
}

type testRun struct {
	handler *Handler
	logs    *observer.ObservedLogs
	out     *bytes.Buffer
	metrics *metrics.RunMetrics
}

func createTestRun(t *testing.T, env pipeline.MapEnv, servers *fakeServers, mutate func(*Config, *Dependencies)) *testRun {
	core, logs := observer.New(zapcore.DebugLevel)
	log := logger.NewZapAdapter(zap.New(core))

	cfg := &Config{
		TicketSystem: TicketSystem{ServiceURL: servers.solarwinds.URL, APIToken: "sw-token"},
		Defaults:     createTestDefaults(),
		FetchIssues:  true,
	}
	deps := Dependencies{
		Issues: jira.NewClient(jira.Config{
			BaseURL:  servers.jira.URL,
			Username: "bot@example.com",
			APIToken: "jira-token",
			Timeout:  2 * time.Second,
		}, log),
		Changes: solarwinds.NewClient(solarwinds.Config{
			ServiceURL: servers.solarwinds.URL,
			APIToken:   "sw-token",
			Timeout:    2 * time.Second,
		}, log),
		Metrics: metrics.NewRunMetrics(),
		Now:     fixedClock,
	}
	if mutate != nil {
		mutate(cfg, &deps)
	}

	out := &bytes.Buffer{}
	provider := pipeline.NewGitHubProvider(env, log)
	handler := NewHandler(provider, NewService(cfg, deps, log), deps, log, out)
	return &testRun{handler: handler, logs: logs, out: out, metrics: deps.Metrics}
}

func productionEnv(extra map[string]string) pipeline.MapEnv {
	env := pipeline.MapEnv{
		"RELEASE_ID":             "v1.2.3",
		"GITHUB_REPOSITORY":      "org/app",
		"BRANCH_NAME":            "main",
		"DEPLOYMENT_ENVIRONMENT": "production",
	}
	for k, v := range extra {
		env[k] = v
	}
	return env
}

func runsWithOutcome(t *testing.T, m *metrics.RunMetrics, outcome Outcome) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != "change_creator_runs_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetValue() == string(outcome) {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestHandler_Run_NoIssue(t *testing.T) {
	servers := newFakeServers(t)
	run := createTestRun(t, productionEnv(nil), servers, nil)

	code := run.handler.Run(context.Background())

	assert.Equal(t, errors.ExitCodeSuccess, code)
	assert.Equal(t, 0, servers.jiraCalls, "no issue key means no fetch")
	require.Equal(t, 1, servers.submitCalls)

	change := servers.submitted.Change
	assert.Equal(t, "Production Deployment - Release v1.2.3", change.Name)
	assert.Contains(t, change.Description, "AUTOMATED PRODUCTION DEPLOYMENT")
	assert.Contains(t, change.Description, "CHANGE DETAILS:\n- This is an automated production deployment")
	assert.Contains(t, change.Description, "ROLLBACK PLAN:")
	assert.NotContains(t, change.Description, "ASSOCIATED JIRA ISSUE")
	assert.NotContains(t, change.Description, "RISK ASSESSMENT")

	infoLogs := run.logs.FilterLevelExact(zapcore.InfoLevel)
	require.Equal(t, 1, infoLogs.Len())
	entry := infoLogs.All()[0]
	assert.Equal(t, "change ticket created without linked issue", entry.Message)
	assert.Equal(t, "v1.2.3", entry.ContextMap()["releaseId"])
	assert.Equal(t, "CHG-1001", entry.ContextMap()["ticketNumber"])
	assert.Equal(t, float64(1), runsWithOutcome(t, run.metrics, OutcomeCreatedWithoutIssue))
}

func TestHandler_Run_WithIssue(t *testing.T) {
	servers := newFakeServers(t)
	run := createTestRun(t, productionEnv(map[string]string{"JIRA_ISSUE_KEY": "OPS-42"}), servers, nil)

	code := run.handler.Run(context.Background())

	assert.Equal(t, errors.ExitCodeSuccess, code)
	assert.Equal(t, 1, servers.jiraCalls)
	require.Equal(t, 1, servers.submitCalls)

	change := servers.submitted.Change
	assert.Equal(t, "Production Deployment - OPS-42: Fix connection pool exhaustion", change.Name)
	assert.Contains(t, change.Description, "Risk Level: High")
	for _, factor := range []string{FactorHighPriority, FactorBugFix, FactorCriticalComponent, FactorBreakingChange} {
		assert.Contains(t, change.Description, "  • "+factor)
	}
	assert.Contains(t, change.Description, "• Raise the pool size\n• Add a migration for the pool table")

	infoLogs := run.logs.FilterLevelExact(zapcore.InfoLevel)
	require.Equal(t, 1, infoLogs.Len())
	entry := infoLogs.All()[0]
	assert.Equal(t, "change ticket created", entry.Message)
	assert.Equal(t, "OPS-42", entry.ContextMap()["issueKey"])
	assert.Equal(t, "CHG-1001", entry.ContextMap()["ticketNumber"])
	assert.Equal(t, float64(1), runsWithOutcome(t, run.metrics, OutcomeCreatedWithIssue))
}

func TestHandler_Run_IssueUnavailableDegrades(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "not found", status: http.StatusNotFound, body: `{"errorMessages":["Issue does not exist"]}`},
		{name: "server error", status: http.StatusBadGateway, body: "bad gateway"},
		{name: "malformed", status: http.StatusOK, body: "{not json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			servers := newFakeServers(t)
			servers.jiraStatus = tt.status
			servers.jiraBody = tt.body
			run := createTestRun(t, productionEnv(map[string]string{"BRANCH_NAME": "feature/OPS-42-pool", "DEPLOYMENT_ENVIRONMENT": "prd"}), servers, nil)

			code := run.handler.Run(context.Background())

			assert.Equal(t, errors.ExitCodeSuccess, code)
			assert.Equal(t, 1, servers.jiraCalls)
			require.Equal(t, 1, servers.submitCalls)
			assert.Equal(t, "Production Deployment - Release v1.2.3", servers.submitted.Change.Name)
			assert.Equal(t, 0, run.logs.FilterLevelExact(zapcore.ErrorLevel).Len())
			degraded := run.logs.FilterMessage("jira issue unavailable, continuing without it").All()
			require.Len(t, degraded, 1)
			assert.NotEmpty(t, degraded[0].ContextMap()["error"])
			assert.Equal(t, "issue_tracker", degraded[0].ContextMap()["errorCategory"])

			info := run.logs.FilterLevelExact(zapcore.InfoLevel).All()
			require.Len(t, info, 1)
			assert.Equal(t, "change ticket created without linked issue", info[0].Message)
			assert.Equal(t, "OPS-42", info[0].ContextMap()["detectedIssueKey"])
		})
	}
}

func TestHandler_Run_SubmissionRejected(t *testing.T) {
	servers := newFakeServers(t)
	servers.submitStatus = http.StatusInternalServerError
	servers.submitBody = `{"error":"internal"}`
	run := createTestRun(t, productionEnv(nil), servers, nil)

	code := run.handler.Run(context.Background())

	assert.Equal(t, errors.ExitCodeFailure, code)
	assert.Equal(t, 1, servers.submitCalls)

	errorLogs := run.logs.FilterLevelExact(zapcore.ErrorLevel)
	require.Equal(t, 1, errorLogs.Len())
	entry := errorLogs.All()[0]
	assert.Equal(t, "failed to create change ticket", entry.Message)
	assert.Equal(t, string(errors.ErrCodeChangeRejected), entry.ContextMap()["errorCode"])
	assert.Equal(t, `{"error":"internal"}`, entry.ContextMap()["details"])
	assert.EqualValues(t, http.StatusInternalServerError, entry.ContextMap()["statusCode"])
	assert.Equal(t, "v1.2.3", entry.ContextMap()["releaseId"])

	assert.Equal(t, 0, run.logs.FilterLevelExact(zapcore.InfoLevel).Len())
	assert.Equal(t, float64(1), runsWithOutcome(t, run.metrics, OutcomeFailed))
}

func TestHandler_Run_NotProduction(t *testing.T) {
	servers := newFakeServers(t)
	env := pipeline.MapEnv{
		"RELEASE_ID":             "v1.2.3",
		"BRANCH_NAME":            "feature/OPS-42-pool",
		"DEPLOYMENT_ENVIRONMENT": "staging",
	}
	run := createTestRun(t, env, servers, nil)

	code := run.handler.Run(context.Background())

	assert.Equal(t, errors.ExitCodeSuccess, code)
	assert.Equal(t, 0, servers.jiraCalls)
	assert.Equal(t, 0, servers.submitCalls)

	warnLogs := run.logs.FilterLevelExact(zapcore.WarnLevel)
	require.Equal(t, 1, warnLogs.Len())
	assert.Equal(t, "skipping change ticket creation: not a production deployment", warnLogs.All()[0].Message)
	assert.Equal(t, 0, run.logs.FilterLevelExact(zapcore.InfoLevel).Len())
	assert.Equal(t, float64(1), runsWithOutcome(t, run.metrics, OutcomeSkipped))
}

func TestHandler_Run_DryRun(t *testing.T) {
	servers := newFakeServers(t)
	run := createTestRun(t, productionEnv(map[string]string{"JIRA_ISSUE_KEY": "OPS-42"}), servers, func(cfg *Config, _ *Dependencies) {
		cfg.DryRun = true
	})

	code := run.handler.Run(context.Background())

	assert.Equal(t, errors.ExitCodeSuccess, code)
	assert.Equal(t, 1, servers.jiraCalls)
	assert.Equal(t, 0, servers.submitCalls)

	out := run.out.String()
	assert.Contains(t, out, "Production Deployment - OPS-42: Fix connection pool exhaustion")
	assert.Contains(t, out, "Linked issue")
	assert.Contains(t, out, "High")

	jsonStart := strings.Index(out, "{")
	require.GreaterOrEqual(t, jsonStart, 0)
	var payload solarwinds.ChangeRequest
	require.NoError(t, json.Unmarshal([]byte(out[jsonStart:]), &payload))
	assert.Equal(t, "2026-10-18T10:30:00Z", payload.Change.PlanningFields.PlannedStartDate)

	info := run.logs.FilterLevelExact(zapcore.InfoLevel).All()
	require.Len(t, info, 1)
	assert.Equal(t, "dry run: change ticket not submitted", info[0].Message)
}

func TestHandler_Run_IncompleteTicketConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name:    "missing token",
			mutate:  func(cfg *Config) { cfg.TicketSystem.APIToken = "" },
			wantErr: "solarwinds.api_token is required",
		},
		{
			name:    "missing requester",
			mutate:  func(cfg *Config) { cfg.Defaults.RequesterEmail = "" },
			wantErr: "solarwinds.default_requester_email is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			servers := newFakeServers(t)
			run := createTestRun(t, productionEnv(map[string]string{"JIRA_ISSUE_KEY": "OPS-42"}), servers, func(cfg *Config, _ *Dependencies) {
				tt.mutate(cfg)
			})

			code := run.handler.Run(context.Background())

			assert.Equal(t, errors.ExitCodeFailure, code)
			assert.Equal(t, 0, servers.jiraCalls)
			assert.Equal(t, 0, servers.submitCalls)
			errorLogs := run.logs.FilterLevelExact(zapcore.ErrorLevel)
			require.Equal(t, 1, errorLogs.Len())
			assert.Equal(t, string(errors.ErrCodeConfigInvalid), errorLogs.All()[0].ContextMap()["errorCode"])
			assert.Contains(t, errorLogs.All()[0].ContextMap()["details"], tt.wantErr)
		})
	}
}

func TestHandler_Run_NotProductionWithoutTicketConfig(t *testing.T) {
	servers := newFakeServers(t)
	env := pipeline.MapEnv{"BRANCH_NAME": "feature/x", "DEPLOYMENT_ENVIRONMENT": "staging"}
	run := createTestRun(t, env, servers, func(cfg *Config, _ *Dependencies) {
		cfg.TicketSystem = TicketSystem{}
		cfg.Defaults.RequesterEmail = ""
	})

	code := run.handler.Run(context.Background())

	assert.Equal(t, errors.ExitCodeSuccess, code)
	assert.Equal(t, 0, run.logs.FilterLevelExact(zapcore.ErrorLevel).Len())
	assert.Equal(t, float64(1), runsWithOutcome(t, run.metrics, OutcomeSkipped))
}

func TestHandler_Run_DryRunNeedsNoToken(t *testing.T) {
	servers := newFakeServers(t)
	run := createTestRun(t, productionEnv(nil), servers, func(cfg *Config, _ *Dependencies) {
		cfg.DryRun = true
		cfg.TicketSystem.APIToken = ""
	})

	code := run.handler.Run(context.Background())

	assert.Equal(t, errors.ExitCodeSuccess, code)
	assert.Equal(t, 0, servers.submitCalls)
	assert.Equal(t, float64(1), runsWithOutcome(t, run.metrics, OutcomeDryRun))
}

type panickingSubmitter struct{}

func (panickingSubmitter) Submit(context.Context, *solarwinds.ChangeRequest) (*solarwinds.ChangeResponse, error) {
	panic("connection pool poisoned")
}

func TestHandler_Run_RecoversPanic(t *testing.T) {
	servers := newFakeServers(t)
	run := createTestRun(t, productionEnv(nil), servers, func(_ *Config, deps *Dependencies) {
		deps.Changes = panickingSubmitter{}
	})

	code := run.handler.Run(context.Background())

	assert.Equal(t, errors.ExitCodeFailure, code)
	errorLogs := run.logs.FilterLevelExact(zapcore.ErrorLevel)
	require.Equal(t, 1, errorLogs.Len())
	assert.Equal(t, string(errors.ErrCodeInternal), errorLogs.All()[0].ContextMap()["errorCode"])
	assert.Equal(t, float64(1), runsWithOutcome(t, run.metrics, OutcomeFailed))
}

type recordingNotifier struct {
	announcements []aws.Announcement
	err           error
}

func (n *recordingNotifier) Notify(_ context.Context, a aws.Announcement) error {
	n.announcements = append(n.announcements, a)
	return n.err
}

func TestHandler_Run_Announces(t *testing.T) {
	servers := newFakeServers(t)
	notifier := &recordingNotifier{}
	run := createTestRun(t, productionEnv(map[string]string{"JIRA_ISSUE_KEY": "OPS-42"}), servers, func(cfg *Config, deps *Dependencies) {
		cfg.Notify = true
		deps.Notifier = notifier
	})

	code := run.handler.Run(context.Background())

	assert.Equal(t, errors.ExitCodeSuccess, code)
	require.Len(t, notifier.announcements, 1)
	a := notifier.announcements[0]
	assert.Equal(t, "CHG-1001", a.TicketNumber)
	assert.Equal(t, 1234, a.TicketID)
	assert.Equal(t, "OPS-42", a.IssueKey)
	assert.Equal(t, "High", a.RiskLevel)
	assert.Equal(t, "org/app", a.Repository)
}

func TestHandler_Run_AnnouncementFailureIsNotFatal(t *testing.T) {
	servers := newFakeServers(t)
	notifier := &recordingNotifier{err: errors.NewNotificationSendFailedError("sns", fmt.Errorf("throttled"))}
	run := createTestRun(t, productionEnv(nil), servers, func(cfg *Config, deps *Dependencies) {
		cfg.Notify = true
		deps.Notifier = notifier
	})

	code := run.handler.Run(context.Background())

	assert.Equal(t, errors.ExitCodeSuccess, code)
	assert.Equal(t, 0, run.logs.FilterLevelExact(zapcore.ErrorLevel).Len())
	warnings := run.logs.FilterMessage("change announcement failed").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, string(errors.ErrCodeNotificationSendFailed), warnings[0].ContextMap()["errorCode"])
}

func TestHandler_Run_IssueLookupDisabled(t *testing.T) {
	servers := newFakeServers(t)
	run := createTestRun(t, productionEnv(map[string]string{"JIRA_ISSUE_KEY": "OPS-42"}), servers, func(cfg *Config, _ *Dependencies) {
		cfg.FetchIssues = false
	})

	code := run.handler.Run(context.Background())

	assert.Equal(t, errors.ExitCodeSuccess, code)
	assert.Equal(t, 0, servers.jiraCalls)
	assert.Equal(t, "Production Deployment - Release v1.2.3", servers.submitted.Change.Name)
}
