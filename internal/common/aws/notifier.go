// internal/common/aws/notifier.go
package aws

import (
	"context"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"change-creator/internal/common/errors"
	"change-creator/internal/common/logger"
)

type NotifierConfig struct {
	Region     string
	SNSEnabled bool
	TopicARN   string
	SESEnabled bool
	FromEmail  string
	Recipients []string
}

// Announcement describes a change ticket that was just opened.
type Announcement struct {
	TicketNumber string
	TicketID     int
	Name         string
	ReleaseID    string
	Repository   string
	IssueKey     string
	RiskLevel    string
}

func (a Announcement) Subject() string {
	return fmt.Sprintf("Change %s opened for release %s", a.TicketNumber, a.ReleaseID)
}

func (a Announcement) Body() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "A production change ticket was opened.\n\n")
	fmt.Fprintf(&sb, "Ticket: %s (id %d)\n", a.TicketNumber, a.TicketID)
	fmt.Fprintf(&sb, "Name: %s\n", a.Name)
	fmt.Fprintf(&sb, "Repository: %s\n", a.Repository)
	fmt.Fprintf(&sb, "Release: %s\n", a.ReleaseID)
	if a.IssueKey != "" {
		fmt.Fprintf(&sb, "Jira issue: %s\n", a.IssueKey)
	}
	if a.RiskLevel != "" {
		fmt.Fprintf(&sb, "Risk level: %s\n", a.RiskLevel)
	}
	return sb.String()
}

// ChangeNotifier announces created change tickets over SNS and/or SES.
type ChangeNotifier struct {
	config    NotifierConfig
	snsClient SNSService
	sesClient SESService
	logger    logger.Logger
}

// NewChangeNotifier loads the default AWS credential chain for the configured
// region. Channels that are disabled get no client.
func NewChangeNotifier(ctx context.Context, cfg NotifierConfig, log logger.Logger) (*ChangeNotifier, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, errors.NewNotificationSendFailedError("aws", err)
	}

	var snsClient SNSService
	if cfg.SNSEnabled {
		snsClient = sns.NewFromConfig(awsCfg)
	}
	var sesClient SESService
	if cfg.SESEnabled {
		sesClient = ses.NewFromConfig(awsCfg)
	}
	return NewChangeNotifierWithClients(cfg, snsClient, sesClient, log), nil
}

func NewChangeNotifierWithClients(cfg NotifierConfig, snsClient SNSService, sesClient SESService, log logger.Logger) *ChangeNotifier {
	return &ChangeNotifier{
		config:    cfg,
		snsClient: snsClient,
		sesClient: sesClient,
		logger:    log,
	}
}

// Notify tries every enabled channel and returns the first failure.
func (n *ChangeNotifier) Notify(ctx context.Context, a Announcement) error {
	subject := a.Subject()
	var firstErr error

	if n.config.SNSEnabled && n.snsClient != nil {
		if err := n.publish(ctx, subject, a); err != nil {
			n.logger.Debug("sns publish failed", map[string]interface{}{
				"topicArn": n.config.TopicARN,
				"error":    err.Error(),
			})
			firstErr = errors.NewNotificationSendFailedError("sns", err)
		} else {
			n.logger.Debug("change announced on sns", map[string]interface{}{
				"topicArn":     n.config.TopicARN,
				"ticketNumber": a.TicketNumber,
			})
		}
	}

	if n.config.SESEnabled && n.sesClient != nil {
		if err := n.sendEmail(ctx, subject, a.Body()); err != nil {
			n.logger.Debug("ses send failed", map[string]interface{}{
				"recipients": strings.Join(n.config.Recipients, ","),
				"error":      err.Error(),
			})
			if firstErr == nil {
				firstErr = errors.NewNotificationSendFailedError("ses", err)
			}
		} else {
			n.logger.Debug("change announced by email", map[string]interface{}{
				"recipients":   len(n.config.Recipients),
				"ticketNumber": a.TicketNumber,
			})
		}
	}

	return firstErr
}
