package pipeline

import (
	"os"
	"regexp"
	"strings"

	"change-creator/internal/common/logger"
)

const (
	UnknownValue  = "UNKNOWN"
	DefaultBranch = "main"
)

var issueKeyPattern = regexp.MustCompile(`[A-Z][A-Z0-9]+-[0-9]+`)

// Env looks up a single environment variable.
type Env interface {
	Lookup(key string) (string, bool)
}

// OSEnv reads the process environment.
type OSEnv struct{}

func (OSEnv) Lookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// MapEnv is a fixed environment, mostly for tests.
type MapEnv map[string]string

func (m MapEnv) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// DeploymentContext holds the facts of one deployment. An empty IssueKey means no linked issue.
type DeploymentContext struct {
	ReleaseID    string
	Repository   string
	Branch       string
	IsProduction bool
	IssueKey     string
}

// HasIssue reports whether an issue key was resolved.
func (d DeploymentContext) HasIssue() bool {
	return d.IssueKey != ""
}

// Provider yields pipeline facts. Implementations never fail; missing signals
// degrade to sentinel values.
type Provider interface {
	ReleaseID() string
	Repository() string
	Branch() string
	IsProductionDeployment() bool
	IssueKey() string
}

var (
	branchSources   = []string{"GITHUB_HEAD_REF", "GITHUB_REF_NAME", "BRANCH_NAME"}
	freeTextSources = []string{"PR_TITLE", "COMMIT_MESSAGE"}
)

// GitHubProvider resolves pipeline facts from GitHub Actions variables, with
// generic CI fallbacks.
type GitHubProvider struct {
	env         Env
	projectKeys map[string]bool
	logger      logger.Logger
}

type Option func(*GitHubProvider)

// WithProjectKeys restricts detected issue keys to the given Jira projects.
// PR titles and commit messages are only searched when it is set, since
// tokens such as SHA-256 or UTF-8 look like issue keys.
func WithProjectKeys(keys ...string) Option {
	return func(p *GitHubProvider) {
		for _, key := range keys {
			if key = strings.ToUpper(strings.TrimSpace(key)); key != "" {
				p.projectKeys[key] = true
			}
		}
	}
}

func NewGitHubProvider(env Env, log logger.Logger, opts ...Option) *GitHubProvider {
	if env == nil {
		env = OSEnv{}
	}
	p := &GitHubProvider{env: env, projectKeys: map[string]bool{}, logger: log}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *GitHubProvider) ReleaseID() string {
	releaseID := p.first("GITHUB_REF_NAME")
	if releaseID == "" {
		if sha := p.first("GITHUB_SHA"); len(sha) >= 8 {
			releaseID = sha[:8]
		} else {
			releaseID = sha
		}
	}
	if releaseID == "" {
		releaseID = p.first("RELEASE_ID", "GITHUB_RUN_ID")
	}
	if releaseID == "" {
		releaseID = UnknownValue
	}

	p.logger.Debug("Retrieved release ID", map[string]interface{}{"releaseId": releaseID})
	return releaseID
}

func (p *GitHubProvider) Repository() string {
	repository := p.first("GITHUB_REPOSITORY", "REPO_NAME")
	if repository == "" {
		repository = UnknownValue
	}

	p.logger.Debug("Retrieved repository", map[string]interface{}{"repository": repository})
	return repository
}

func (p *GitHubProvider) Branch() string {
	branch := p.first("GITHUB_REF_NAME", "GITHUB_HEAD_REF", "GITHUB_BASE_REF", "BRANCH_NAME")
	if branch == "" {
		branch = DefaultBranch
	}

	p.logger.Debug("Retrieved branch", map[string]interface{}{"branch": branch})
	return branch
}

// IsProductionDeployment checks the deployment environment name and falls back
// to treating main/master as production.
func (p *GitHubProvider) IsProductionDeployment() bool {
	environment := p.first("DEPLOYMENT_ENVIRONMENT", "ENVIRONMENT", "DEPLOY_ENV")

	isProduction := false
	switch strings.ToUpper(environment) {
	case "PRD", "PROD", "PRODUCTION":
		isProduction = true
	}

	if !isProduction {
		branch := p.Branch()
		isProduction = strings.EqualFold(branch, "main") || strings.EqualFold(branch, "master")
	}

	p.logger.Debug("Is production deployment", map[string]interface{}{
		"isProduction": isProduction,
		"environment":  environment,
	})
	return isProduction
}

// IssueKey returns an explicitly configured issue key, or the first key found
// in the branch names, then the PR title and commit message when project keys
// are configured. Empty when none is found.
func (p *GitHubProvider) IssueKey() string {
	if key := p.first("JIRA_ISSUE_KEY", "ISSUE_KEY"); key != "" {
		return strings.ToUpper(key)
	}

	sources := branchSources
	if len(p.projectKeys) > 0 {
		sources = append(append([]string{}, branchSources...), freeTextSources...)
	}

	for _, name := range sources {
		value := p.first(name)
		if value == "" {
			continue
		}
		if key := p.matchKey(value); key != "" {
			p.logger.Debug("Detected issue key", map[string]interface{}{
				"issueKey": key,
				"source":   name,
			})
			return key
		}
	}
	return ""
}

func (p *GitHubProvider) matchKey(value string) string {
	for _, key := range issueKeyPattern.FindAllString(value, -1) {
		if len(p.projectKeys) == 0 || p.projectKeys[key[:strings.LastIndex(key, "-")]] {
			return key
		}
	}
	return ""
}

// Resolve reads every fact once.
func Resolve(p Provider) DeploymentContext {
	return DeploymentContext{
		ReleaseID:    p.ReleaseID(),
		Repository:   p.Repository(),
		Branch:       p.Branch(),
		IsProduction: p.IsProductionDeployment(),
		IssueKey:     p.IssueKey(),
	}
}

// first returns the first non-blank value among keys.
func (p *GitHubProvider) first(keys ...string) string {
	for _, key := range keys {
		if v, ok := p.env.Lookup(key); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}
