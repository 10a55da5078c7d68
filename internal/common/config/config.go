// internal/common/config/config.go
package config

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	SolarWinds    SolarWindsConfig    `mapstructure:"solarwinds"`
	Jira          JiraConfig          `mapstructure:"jira"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Notifications NotificationConfig  `mapstructure:"notifications"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Secrets       SecretsConfig       `mapstructure:"secrets"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// SolarWindsConfig holds the service desk endpoint and the ticket defaults.
type SolarWindsConfig struct {
	ServiceURL            string `mapstructure:"service_url"`
	APIToken              string `mapstructure:"api_token"`
	DefaultRequesterEmail string `mapstructure:"default_requester_email"`
	DefaultCategory       string `mapstructure:"default_category"`
	DefaultSubcategory    string `mapstructure:"default_subcategory"`
	DefaultPriority       string `mapstructure:"default_priority"`
	TimeoutSeconds        int    `mapstructure:"timeout_seconds"`
}

// JiraConfig configures issue lookups. ProjectKeys limits the issue keys
// taken from PR titles and commit messages.
type JiraConfig struct {
	BaseURL                      string   `mapstructure:"base_url"`
	Username                     string   `mapstructure:"username"`
	APIToken                     string   `mapstructure:"api_token"`
	EnableDescriptionEnhancement bool     `mapstructure:"enable_description_enhancement"`
	TimeoutSeconds               int      `mapstructure:"timeout_seconds"`
	ProjectKeys                  []string `mapstructure:"project_keys"`
}

// Enabled reports whether issues should be fetched at all.
func (j JiraConfig) Enabled() bool {
	return j.BaseURL != "" && j.EnableDescriptionEnhancement
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// NotificationConfig controls the optional change announcements.
type NotificationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
	SNS struct {
		Enabled  bool   `mapstructure:"enabled"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
	SES struct {
		Enabled    bool     `mapstructure:"enabled"`
		FromEmail  string   `mapstructure:"from_email"`
		Recipients []string `mapstructure:"recipients"`
	} `mapstructure:"ses"`
}

// Enabled reports whether any announcement channel is switched on.
func (n NotificationConfig) Enabled() bool {
	return n.SNS.Enabled || n.SES.Enabled
}

type ObservabilityConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}

// SecretsConfig points at an optional AWS Secrets Manager secret holding a
// JSON object of credentials. See ApplySecrets for the recognised keys.
type SecretsConfig struct {
	AWSSecretID string `mapstructure:"aws_secret_id"`
	Region      string `mapstructure:"region"`
}

// Enabled reports whether a secret store is configured.
func (s SecretsConfig) Enabled() bool {
	return s.AWSSecretID != ""
}

// ApplySecrets overlays credentials from a secret store. Keys use the same
// names as the environment overrides; blank values are ignored. It returns
// the keys that were applied.
func (c *Config) ApplySecrets(values map[string]string) []string {
	targets := []struct {
		key   string
		field *string
	}{
		{"SOLARWINDS_API_TOKEN", &c.SolarWinds.APIToken},
		{"SOLARWINDS_DEFAULT_REQUESTER_EMAIL", &c.SolarWinds.DefaultRequesterEmail},
		{"JIRA_USERNAME", &c.Jira.Username},
		{"JIRA_API_TOKEN", &c.Jira.APIToken},
	}

	var applied []string
	for _, target := range targets {
		if v := values[target.key]; v != "" {
			*target.field = v
			applied = append(applied, target.key)
		}
	}
	return applied
}
