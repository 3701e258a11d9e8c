package main

import (
	"context"
	"net/url"

	"golang.org/x/xerrors"

	"cdr.dev/slog"
	"cdr.dev/slog/sloggers/sloghuman"
	"github.com/coder/quartz"
	"github.com/coder/serpent"

	"github.com/commsd/commsd/comms"
	"github.com/commsd/commsd/comms/definition"
	"github.com/commsd/commsd/comms/dispatch"
	"github.com/commsd/commsd/comms/render"
	"github.com/commsd/commsd/comms/template"
	"github.com/commsd/commsd/database"
)

// rootConfig holds the flags shared by every subcommand.
type rootConfig struct {
	postgresURL     string
	verbose         bool
	smtpHost        string
	smtpPort        string
	smtpHello       string
	smtpFrom        string
	smtpUsername    string
	smtpPassword    string
	webhookEndpoint string
	smsSenderID     string
	parallelism     int64
}

func rootCommand() *serpent.Command {
	var cfg rootConfig
	cmd := &serpent.Command{
		Use:   "commsd",
		Short: "Multi-channel communication dispatch service.",
		Handler: func(inv *serpent.Invocation) error {
			return inv.Command.HelpHandler(inv)
		},
		Children: []*serpent.Command{
			migrateCommand(&cfg),
			seedCommand(&cfg),
			sendCommand(&cfg),
		},
		Options: serpent.OptionSet{
			{
				Flag:        "postgres-url",
				Env:         "COMMSD_POSTGRES_URL",
				Description: "URL of the PostgreSQL database holding definitions and templates.",
				Value:       serpent.StringOf(&cfg.postgresURL),
			},
			{
				Flag:          "verbose",
				FlagShorthand: "v",
				Env:           "COMMSD_VERBOSE",
				Description:   "Enable debug logging.",
				Value:         serpent.BoolOf(&cfg.verbose),
			},
			{
				Flag:        "smtp-host",
				Env:         "COMMSD_SMTP_HOST",
				Description: "Hostname of the SMTP smarthost delivering email.",
				Value:       serpent.StringOf(&cfg.smtpHost),
			},
			{
				Flag:        "smtp-port",
				Env:         "COMMSD_SMTP_PORT",
				Default:     "587",
				Description: "Port of the SMTP smarthost.",
				Value:       serpent.StringOf(&cfg.smtpPort),
			},
			{
				Flag:        "smtp-hello",
				Env:         "COMMSD_SMTP_HELLO",
				Default:     "localhost",
				Description: "Hostname to send in the SMTP handshake.",
				Value:       serpent.StringOf(&cfg.smtpHello),
			},
			{
				Flag:        "smtp-from",
				Env:         "COMMSD_SMTP_FROM",
				Description: "Fallback sender address for email without an explicit from.",
				Value:       serpent.StringOf(&cfg.smtpFrom),
			},
			{
				Flag:        "smtp-username",
				Env:         "COMMSD_SMTP_USERNAME",
				Description: "Username for SMTP authentication.",
				Value:       serpent.StringOf(&cfg.smtpUsername),
			},
			{
				Flag:        "smtp-password",
				Env:         "COMMSD_SMTP_PASSWORD",
				Description: "Password for SMTP authentication.",
				Value:       serpent.StringOf(&cfg.smtpPassword),
			},
			{
				Flag:        "webhook-endpoint",
				Env:         "COMMSD_WEBHOOK_ENDPOINT",
				Description: "Endpoint receiving sms and mobile push messages as JSON.",
				Value:       serpent.StringOf(&cfg.webhookEndpoint),
			},
			{
				Flag:        "sms-sender-id",
				Env:         "COMMSD_SMS_SENDER_ID",
				Description: "Sender ID presented to carriers on the sms channel.",
				Value:       serpent.StringOf(&cfg.smsSenderID),
			},
			{
				Flag:        "parallelism",
				Env:         "COMMSD_PARALLELISM",
				Default:     "1",
				Description: "Concurrent (recipient, channel) sends during fan-out.",
				Value:       serpent.Int64Of(&cfg.parallelism),
			},
		},
	}
	return cmd
}

func (cfg *rootConfig) logger(inv *serpent.Invocation) slog.Logger {
	log := slog.Make(sloghuman.Sink(inv.Stderr))
	if cfg.verbose {
		log = log.Leveled(slog.LevelDebug)
	}
	return log
}

func (cfg *rootConfig) connect(ctx context.Context) (*database.DB, error) {
	if cfg.postgresURL == "" {
		return nil, xerrors.New("--postgres-url is required")
	}
	return database.Connect(ctx, cfg.postgresURL)
}

// dispatcher wires the full send pipeline from the shared flags: postgres
// stores, template resolver, render engine, per-channel factories and the
// routing notifier in front of the SMTP and webhook transports.
func (cfg *rootConfig) dispatcher(db *database.DB, log slog.Logger) (*dispatch.Dispatcher, error) {
	templates := template.NewPostgresStore(db, quartz.NewReal())
	resolver := template.NewResolver(templates)
	engine := render.NewEngine(resolver, nil)

	factories := map[string]dispatch.NotificationFactory{
		comms.ChannelEmail:  dispatch.NewEmailFactory(engine, templates),
		comms.ChannelSMS:    dispatch.NewSMSFactory(engine, cfg.smsSenderID),
		comms.ChannelMobile: dispatch.NewMobileFactory(engine),
	}

	routes := map[string]dispatch.Notifier{
		comms.ChannelEmail: dispatch.NewSMTPNotifier(dispatch.SMTPConfig{
			Host:     cfg.smtpHost,
			Port:     cfg.smtpPort,
			Hello:    cfg.smtpHello,
			From:     cfg.smtpFrom,
			Username: cfg.smtpUsername,
			Password: cfg.smtpPassword,
		}, log.Named("smtp")),
	}
	if cfg.webhookEndpoint != "" {
		endpoint, err := url.Parse(cfg.webhookEndpoint)
		if err != nil {
			return nil, xerrors.Errorf("parse webhook endpoint: %w", err)
		}
		webhook := dispatch.NewWebhookNotifier(endpoint, log.Named("webhook"))
		routes[comms.ChannelSMS] = webhook
		routes[comms.ChannelMobile] = webhook
	}

	defs := definition.NewStore(db, log.Named("definitions"))
	return dispatch.New(
		defs,
		factories,
		dispatch.NewRoutingNotifier(routes),
		nil,
		log.Named("dispatch"),
		dispatch.Options{Parallelism: int(cfg.parallelism)},
	), nil
}
