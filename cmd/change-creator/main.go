// cmd/change-creator/main.go
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"change-creator/internal/common/aws"
	"change-creator/internal/common/config"
	"change-creator/internal/common/errors"
	"change-creator/internal/common/jira"
	"change-creator/internal/common/logger"
	"change-creator/internal/common/metrics"
	"change-creator/internal/common/observability"
	"change-creator/internal/common/pipeline"
	"change-creator/internal/common/solarwinds"
	createchange "change-creator/internal/workers/change/create-change"
)

type options struct {
	configPath string
	dryRun     bool
	logLevel   string
	logFormat  string
}

func main() {
	os.Exit(execute(os.Args[1:], pipeline.OSEnv{}, os.Stdout))
}

// execute parses args and runs once. env supplies the pipeline variables and
// stdout receives the dry-run output.
func execute(args []string, env pipeline.Env, stdout io.Writer) int {
	opts := &options{}
	exitCode := errors.ExitCodeSuccess

	rootCmd := &cobra.Command{
		Use:           "change-creator",
		Short:         "Open a service desk change ticket for a production deployment",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			exitCode = run(cmd.Context(), opts, env, stdout)
			return nil
		},
	}
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.Flags().StringVar(&opts.configPath, "config", "", "path to a config file (default: configs/config.yaml)")
	rootCmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "build and validate the change request without submitting it")
	rootCmd.Flags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.Flags().StringVar(&opts.logFormat, "log-format", "", "log format: json or console")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return errors.ExitCodeFailure
	}
	return exitCode
}

func run(ctx context.Context, opts *options, env pipeline.Env, stdout io.Writer) int {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		log := logger.NewStructured(firstNonEmpty(opts.logLevel, "info"), firstNonEmpty(opts.logFormat, "json"))
		defer log.Sync()
		return errors.NewErrorHandler(log).Handle("failed to load configuration", errors.NewConfigInvalidError(err))
	}

	runID := uuid.NewString()
	log := logger.NewStructured(firstNonEmpty(opts.logLevel, cfg.Logging.Level), firstNonEmpty(opts.logFormat, cfg.Logging.Format)).
		WithFields(map[string]interface{}{
			"runId":   runID,
			"service": cfg.App.Name,
			"version": cfg.App.Version,
		})
	defer log.Sync()

	if cfg.Secrets.Enabled() {
		applySecrets(ctx, cfg, log)
	}

	runMetrics := metrics.NewRunMetrics()
	telemetry := observability.New(observability.Config{
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.App.Version,
		JaegerEndpoint: cfg.Observability.JaegerEndpoint,
	}, runMetrics.Registry(), log)
	defer telemetry.Shutdown(context.Background())

	deps := createchange.Dependencies{
		Changes: solarwinds.NewClient(solarwinds.Config{
			ServiceURL: cfg.SolarWinds.ServiceURL,
			APIToken:   cfg.SolarWinds.APIToken,
			Timeout:    config.GetDuration(cfg.SolarWinds.TimeoutSeconds),
		}, log),
		Metrics:   runMetrics,
		Telemetry: telemetry,
	}

	if cfg.Jira.Enabled() {
		deps.Issues = jira.NewClient(jira.Config{
			BaseURL:  cfg.Jira.BaseURL,
			Username: cfg.Jira.Username,
			APIToken: cfg.Jira.APIToken,
			Timeout:  config.GetDuration(cfg.Jira.TimeoutSeconds),
		}, log)
	}

	if cfg.Notifications.Enabled() && !opts.dryRun {
		notifier, err := aws.NewChangeNotifier(ctx, aws.NotifierConfig{
			Region:     cfg.Notifications.AWS.Region,
			SNSEnabled: cfg.Notifications.SNS.Enabled,
			TopicARN:   cfg.Notifications.SNS.TopicARN,
			SESEnabled: cfg.Notifications.SES.Enabled,
			FromEmail:  cfg.Notifications.SES.FromEmail,
			Recipients: cfg.Notifications.SES.Recipients,
		}, log)
		if err != nil {
			log.WithError(err).Warn("change announcements disabled", nil)
		} else {
			deps.Notifier = notifier
		}
	}

	provider := pipeline.NewGitHubProvider(env, log, pipeline.WithProjectKeys(cfg.Jira.ProjectKeys...))
	service := createchange.NewService(createchange.NewConfig(cfg, opts.dryRun), deps, log)
	code := createchange.NewHandler(provider, service, deps, log, stdout).Run(ctx)

	if err := runMetrics.Push(ctx, cfg.Observability.PushgatewayURL, cfg.App.Name, runID); err != nil {
		log.WithError(err).Warn("failed to push run metrics", map[string]interface{}{
			"pushgateway": cfg.Observability.PushgatewayURL,
		})
	}

	return code
}

// applySecrets overlays credentials from AWS Secrets Manager. A store that
// cannot be read leaves the file and environment values in place; a production
// run still fails later if the ticket-system token is missing.
func applySecrets(ctx context.Context, cfg *config.Config, log logger.Logger) {
	fields := map[string]interface{}{"secretId": cfg.Secrets.AWSSecretID}

	store, err := aws.NewSecretStore(ctx, cfg.Secrets.Region, log)
	if err != nil {
		log.WithError(err).Warn("secret store unavailable, using file and environment values", fields)
		return
	}
	values, err := store.Values(ctx, cfg.Secrets.AWSSecretID)
	if err != nil {
		log.WithError(err).Warn("secret store unavailable, using file and environment values", fields)
		return
	}

	fields["applied"] = cfg.ApplySecrets(values)
	log.Debug("applied secrets", fields)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
