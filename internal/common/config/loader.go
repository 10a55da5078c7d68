// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// defaults doubles as the key registry for AutomaticEnv: viper only consults
// the environment during Unmarshal for keys it already knows about.
var defaults = map[string]interface{}{
	"app.name":                            "change-creator",
	"app.version":                         "dev",
	"app.environment":                     "development",
	"solarwinds.service_url":              "",
	"solarwinds.api_token":                "",
	"solarwinds.default_requester_email":  "",
	"solarwinds.default_category":         "Software",
	"solarwinds.default_subcategory":      "Deployment",
	"solarwinds.default_priority":         "Medium",
	"solarwinds.timeout_seconds":          30,
	"jira.base_url":                       "",
	"jira.username":                       "",
	"jira.api_token":                      "",
	"jira.enable_description_enhancement": true,
	"jira.timeout_seconds":                30,
	"jira.project_keys":                   []string{},
	"logging.level":                       "info",
	"logging.format":                      "json",
	"notifications.aws.region":            "us-east-1",
	"notifications.sns.enabled":           false,
	"notifications.sns.topic_arn":         "",
	"notifications.ses.enabled":           false,
	"notifications.ses.from_email":        "",
	"notifications.ses.recipients":        []string{},
	"observability.service_name":          "change-creator",
	"observability.pushgateway_url":       "",
	"observability.jaeger_endpoint":       "",
	"secrets.aws_secret_id":               "",
	"secrets.region":                      "",
}

// Load reads configs/config.yaml (searched in the usual places) merged with
// config.{APP_ENVIRONMENT}.yaml, or the explicit file when path is set.
func Load(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("../../configs")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("error reading base config: %w", err)
			}
		}

		env := os.Getenv("APP_ENVIRONMENT")
		if env == "" {
			env = "development"
		}
		v.SetConfigName(fmt.Sprintf("config.%s", env))
		_ = v.MergeInConfig() // ignore error if not found
	}

	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	// SOLARWINDS_API_TOKEN overrides solarwinds.api_token
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads the first .env found walking up to the module root.
func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env"}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders left in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

// applyDefaults covers values that were explicitly blanked in a file or env.
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "change-creator"
	}

	if cfg.SolarWinds.DefaultCategory == "" {
		cfg.SolarWinds.DefaultCategory = "Software"
	}
	if cfg.SolarWinds.DefaultSubcategory == "" {
		cfg.SolarWinds.DefaultSubcategory = "Deployment"
	}
	if cfg.SolarWinds.DefaultPriority == "" {
		cfg.SolarWinds.DefaultPriority = "Medium"
	}
	if cfg.SolarWinds.TimeoutSeconds <= 0 {
		cfg.SolarWinds.TimeoutSeconds = 30
	}
	cfg.SolarWinds.ServiceURL = strings.TrimRight(cfg.SolarWinds.ServiceURL, "/")

	if cfg.Jira.TimeoutSeconds <= 0 {
		cfg.Jira.TimeoutSeconds = 30
	}
	cfg.Jira.BaseURL = strings.TrimRight(cfg.Jira.BaseURL, "/")
	cfg.Jira.ProjectKeys = normalizeProjectKeys(cfg.Jira.ProjectKeys)

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Notifications.AWS.Region == "" {
		cfg.Notifications.AWS.Region = "us-east-1"
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = cfg.App.Name
	}

	if cfg.Secrets.Region == "" {
		cfg.Secrets.Region = cfg.Notifications.AWS.Region
	}
}

// normalizeProjectKeys accepts both a YAML list and a comma separated env value.
func normalizeProjectKeys(keys []string) []string {
	var out []string
	for _, key := range keys {
		for _, part := range strings.Split(key, ",") {
			if part = strings.ToUpper(strings.TrimSpace(part)); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// validateConfig validates the sections every run depends on. Ticket-system
// credentials are checked later, once the deployment is known to be production.
func validateConfig(cfg *Config) error {
	if cfg.Notifications.SNS.Enabled && cfg.Notifications.SNS.TopicARN == "" {
		return fmt.Errorf("notifications.sns.topic_arn is required when sns is enabled")
	}
	if cfg.Notifications.SES.Enabled {
		if cfg.Notifications.SES.FromEmail == "" {
			return fmt.Errorf("notifications.ses.from_email is required when ses is enabled")
		}
		if len(cfg.Notifications.SES.Recipients) == 0 {
			return fmt.Errorf("notifications.ses.recipients is required when ses is enabled")
		}
	}

	return nil
}

// GetDuration converts seconds from config to time.Duration
func GetDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}
