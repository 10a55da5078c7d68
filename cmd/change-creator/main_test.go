package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"change-creator/internal/common/errors"
	"change-creator/internal/common/pipeline"
	"change-creator/internal/common/solarwinds"
)

const jiraIssue = `{
  "key": "OPS-42",
  "fields": {
    "summary": "Fix connection pool exhaustion",
    "description": {"type": "doc", "version": 1, "content": [
      {"type": "paragraph", "content": [{"type": "text", "text": "Raise the pool size"}]}
    ]},
    "priority": {"name": "High"},
    "issuetype": {"name": "Bug"},
    "status": {"name": "Ready for Release"}
  }
}`

// upstreams stands in for Jira, the service desk and the Pushgateway.
type upstreams struct {
	jira        *httptest.Server
	solarwinds  *httptest.Server
	pushgateway *httptest.Server

	jiraPaths    []string
	submitCalls  int
	submitted    solarwinds.ChangeRequest
	submitStatus int
	submitBody   string
	pushPaths    []string
}

func newUpstreams(t *testing.T) *upstreams {
	u := &upstreams{
		submitStatus: http.StatusCreated,
		submitBody:   `{"id":1234,"number":"CHG-1001","state":"New"}`,
	}

	u.jira = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.jiraPaths = append(u.jiraPaths, r.URL.Path)
		w.Write([]byte(jiraIssue))
	}))
	u.solarwinds = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.submitCalls++
		assert.Equal(t, "/changes.json", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&u.submitted))
		w.WriteHeader(u.submitStatus)
		w.Write([]byte(u.submitBody))
	}))
	u.pushgateway = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.pushPaths = append(u.pushPaths, r.Method+" "+r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))

	t.Cleanup(func() {
		u.jira.Close()
		u.solarwinds.Close()
		u.pushgateway.Close()
	})
	return u
}

// clearConfigEnv keeps the caller's shell from overriding the test config file.
func clearConfigEnv(t *testing.T) {
	for _, key := range []string{
		"APP_ENVIRONMENT",
		"SOLARWINDS_SERVICE_URL",
		"SOLARWINDS_API_TOKEN",
		"SOLARWINDS_DEFAULT_REQUESTER_EMAIL",
		"JIRA_BASE_URL",
		"JIRA_USERNAME",
		"JIRA_API_TOKEN",
		"JIRA_PROJECT_KEYS",
		"LOGGING_LEVEL",
		"LOGGING_FORMAT",
		"NOTIFICATIONS_SNS_ENABLED",
		"NOTIFICATIONS_SES_ENABLED",
		"OBSERVABILITY_PUSHGATEWAY_URL",
		"OBSERVABILITY_JAEGER_ENDPOINT",
		"SECRETS_AWS_SECRET_ID",
	} {
		t.Setenv(key, "")
	}
}

type fileConfig struct {
	apiToken  string
	requester string
}

func writeConfig(t *testing.T, u *upstreams, fc fileConfig) string {
	t.Helper()
	clearConfigEnv(t)

	content := fmt.Sprintf(`app:
  name: change-creator
  version: 1.2.3
solarwinds:
  service_url: %s
  api_token: %q
  default_requester_email: %q
jira:
  base_url: %s
  username: bot@example.com
  api_token: jira-token
  enable_description_enhancement: true
  project_keys: [ops]
logging:
  level: error
observability:
  pushgateway_url: %s
`, u.solarwinds.URL, fc.apiToken, fc.requester, u.jira.URL, u.pushgateway.URL)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

var completeConfig = fileConfig{apiToken: "sw-token", requester: "deployer@example.com"}

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

func TestRun_Production(t *testing.T) {
	u := newUpstreams(t)
	path := writeConfig(t, u, completeConfig)
	env := productionEnv(map[string]string{
		"COMMIT_MESSAGE": "verify SHA-256 of UTF-8 payloads (OPS-42)",
	})

	code := run(context.Background(), &options{configPath: path}, env, &bytes.Buffer{})

	assert.Equal(t, errors.ExitCodeSuccess, code)
	assert.Equal(t, []string{"/rest/api/3/issue/OPS-42"}, u.jiraPaths)
	require.Equal(t, 1, u.submitCalls)
	assert.Equal(t, "Production Deployment - OPS-42: Fix connection pool exhaustion", u.submitted.Change.Name)
	assert.Equal(t, "deployer@example.com", u.submitted.Change.Requester.Email)

	require.Len(t, u.pushPaths, 1)
	assert.True(t, strings.HasPrefix(u.pushPaths[0], "PUT /metrics/job/change-creator/instance/"), u.pushPaths[0])
}

func TestRun_NotProductionWithoutTicketCredentials(t *testing.T) {
	u := newUpstreams(t)
	path := writeConfig(t, u, fileConfig{})
	env := pipeline.MapEnv{
		"RELEASE_ID":             "v1.2.3",
		"BRANCH_NAME":            "feature/OPS-42-pool",
		"DEPLOYMENT_ENVIRONMENT": "staging",
	}

	code := run(context.Background(), &options{configPath: path}, env, &bytes.Buffer{})

	assert.Equal(t, errors.ExitCodeSuccess, code)
	assert.Empty(t, u.jiraPaths)
	assert.Equal(t, 0, u.submitCalls)
}

func TestRun_ProductionWithoutTicketCredentials(t *testing.T) {
	tests := []struct {
		name string
		fc   fileConfig
	}{
		{"missing api token", fileConfig{requester: "deployer@example.com"}},
		{"missing requester", fileConfig{apiToken: "sw-token"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := newUpstreams(t)
			path := writeConfig(t, u, tt.fc)

			code := run(context.Background(), &options{configPath: path}, productionEnv(nil), &bytes.Buffer{})

			assert.Equal(t, errors.ExitCodeFailure, code)
			assert.Empty(t, u.jiraPaths)
			assert.Equal(t, 0, u.submitCalls)
		})
	}
}

func TestRun_TicketTokenFromEnvironment(t *testing.T) {
	u := newUpstreams(t)
	path := writeConfig(t, u, fileConfig{requester: "deployer@example.com"})
	t.Setenv("SOLARWINDS_API_TOKEN", "env-token")

	code := run(context.Background(), &options{configPath: path}, productionEnv(nil), &bytes.Buffer{})

	assert.Equal(t, errors.ExitCodeSuccess, code)
	assert.Equal(t, 1, u.submitCalls)
}

func TestRun_SubmitFailure(t *testing.T) {
	u := newUpstreams(t)
	path := writeConfig(t, u, completeConfig)
	u.submitStatus = http.StatusUnprocessableEntity
	u.submitBody = `{"error":"requester not found"}`

	code := run(context.Background(), &options{configPath: path}, productionEnv(nil), &bytes.Buffer{})

	assert.Equal(t, errors.ExitCodeFailure, code)
	assert.Equal(t, 1, u.submitCalls)
	assert.Len(t, u.pushPaths, 1, "metrics are pushed for failed runs too")
}

func TestExecute(t *testing.T) {
	t.Run("dry run prints the change without a token", func(t *testing.T) {
		u := newUpstreams(t)
		path := writeConfig(t, u, fileConfig{requester: "deployer@example.com"})
		out := &bytes.Buffer{}

		code := execute([]string{"--config", path, "--dry-run"}, productionEnv(map[string]string{"JIRA_ISSUE_KEY": "OPS-42"}), out)

		assert.Equal(t, errors.ExitCodeSuccess, code)
		assert.Equal(t, 0, u.submitCalls)
		assert.Len(t, u.jiraPaths, 1)
		assert.Contains(t, out.String(), "Linked issue")

		jsonStart := strings.Index(out.String(), "{")
		require.GreaterOrEqual(t, jsonStart, 0)
		var payload solarwinds.ChangeRequest
		require.NoError(t, json.Unmarshal([]byte(out.String()[jsonStart:]), &payload))
		assert.Equal(t, "Production Deployment - OPS-42: Fix connection pool exhaustion", payload.Change.Name)
	})

	t.Run("production failure sets the exit code", func(t *testing.T) {
		u := newUpstreams(t)
		path := writeConfig(t, u, fileConfig{requester: "deployer@example.com"})

		code := execute([]string{"--config", path, "--log-level", "error"}, productionEnv(nil), &bytes.Buffer{})

		assert.Equal(t, errors.ExitCodeFailure, code)
		assert.Equal(t, 0, u.submitCalls)
	})

	t.Run("missing config file", func(t *testing.T) {
		code := execute([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}, productionEnv(nil), &bytes.Buffer{})

		assert.Equal(t, errors.ExitCodeFailure, code)
	})

	t.Run("unknown flag", func(t *testing.T) {
		code := execute([]string{"--no-such-flag"}, productionEnv(nil), &bytes.Buffer{})

		assert.Equal(t, errors.ExitCodeFailure, code)
	})

	t.Run("positional arguments are rejected", func(t *testing.T) {
		code := execute([]string{"extra"}, productionEnv(nil), &bytes.Buffer{})

		assert.Equal(t, errors.ExitCodeFailure, code)
	})
}
