// internal/workers/change/create-change/config.go
package createchange

import (
	"fmt"

	"change-creator/internal/common/config"
)

// TicketDefaults are copied onto every change request unmodified.
type TicketDefaults struct {
	RequesterEmail string
	Category       string
	Subcategory    string
	Priority       string
}

// TicketSystem is the service desk endpoint a run submits to.
type TicketSystem struct {
	ServiceURL string
	APIToken   string
}

type Config struct {
	TicketSystem TicketSystem
	Defaults     TicketDefaults
	FetchIssues  bool
	DryRun       bool
	Notify       bool
	ServiceName  string
}

func NewConfig(cfg *config.Config, dryRun bool) *Config {
	return &Config{
		TicketSystem: TicketSystem{
			ServiceURL: cfg.SolarWinds.ServiceURL,
			APIToken:   cfg.SolarWinds.APIToken,
		},
		Defaults: TicketDefaults{
			RequesterEmail: cfg.SolarWinds.DefaultRequesterEmail,
			Category:       cfg.SolarWinds.DefaultCategory,
			Subcategory:    cfg.SolarWinds.DefaultSubcategory,
			Priority:       cfg.SolarWinds.DefaultPriority,
		},
		FetchIssues: cfg.Jira.Enabled(),
		DryRun:      dryRun,
		Notify:      cfg.Notifications.Enabled(),
		ServiceName: cfg.Observability.ServiceName,
	}
}

// Validate runs only once a deployment is known to be production, so that
// pipelines without ticket-system secrets can still skip cleanly. A dry run
// never submits and needs no token.
func (c *Config) Validate() error {
	if c.TicketSystem.ServiceURL == "" {
		return fmt.Errorf("solarwinds.service_url is required")
	}
	if c.TicketSystem.APIToken == "" && !c.DryRun {
		return fmt.Errorf("solarwinds.api_token is required")
	}
	if c.Defaults.RequesterEmail == "" {
		return fmt.Errorf("solarwinds.default_requester_email is required")
	}
	return nil
}
