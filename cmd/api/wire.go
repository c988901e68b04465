package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-api-verify/internal/application/auth"
	"github.com/go-api-verify/internal/application/housekeeping"
	"github.com/go-api-verify/internal/application/notification"
	"github.com/go-api-verify/internal/application/verification"
	"github.com/go-api-verify/internal/config"
	"github.com/go-api-verify/internal/infrastructure/console"
	"github.com/go-api-verify/internal/infrastructure/dynamo"
	"github.com/go-api-verify/internal/infrastructure/postgres"
	"github.com/go-api-verify/internal/infrastructure/sendgrid"
	"github.com/go-api-verify/internal/infrastructure/smtp"
	"github.com/go-api-verify/internal/infrastructure/sns"
	"github.com/go-api-verify/internal/infrastructure/twilio"
	"github.com/go-api-verify/internal/pkg/id"
	"github.com/go-api-verify/internal/pkg/logger"
)

// stores is the persistence backend selected by STORE_BACKEND.
type stores struct {
	users   auth.UserStore
	email   verification.Store
	phone   verification.Store
	newID   id.Generator
	migrate func(ctx context.Context) error
	close   func() error
}

func newLogger(cfg *config.Config) *slog.Logger {
	log := logger.New(logger.Options{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		File:       cfg.LogFile,
		MaxSizeMB:  50,
		MaxBackups: 5,
		MaxAgeDays: 28,
	})
	slog.SetDefault(log)
	return log
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.StoreBackend {
	case "dynamo":
		client, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &stores{
			users: dynamo.NewUserRepo(client, cfg.DynamoTables.Users),
			email: dynamo.NewEmailVerificationRepo(client, cfg.DynamoTables.EmailVerifications),
			phone: dynamo.NewPhoneVerificationRepo(client, cfg.DynamoTables.PhoneVerifications),
			newID: id.New,
			migrate: func(ctx context.Context) error {
				return dynamo.Bootstrap(ctx, client, cfg.DynamoTables)
			},
			close: func() error { return nil },
		}, nil
	case "postgres":
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return &stores{
			users: postgres.NewUserRepo(db),
			email: postgres.NewEmailVerificationRepo(db),
			phone: postgres.NewPhoneVerificationRepo(db),
			newID: id.NewUUID,
			migrate: func(ctx context.Context) error {
				return postgres.Migrate(ctx, db)
			},
			close: db.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
}

func newEmailSender(cfg *config.Config, log *slog.Logger) (notification.EmailSender, error) {
	switch cfg.EmailProvider {
	case "console":
		return console.NewMailer(log), nil
	case "smtp":
		return smtp.NewMailer(smtp.Options{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			TLS:      cfg.SMTPTLS,
			From:     cfg.EmailFrom,
			FromName: cfg.EmailFromName,
		})
	case "aws-ses":
		return smtp.NewMailer(smtp.Options{
			Host:     cfg.SESHost(),
			Port:     587,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			TLS:      smtp.TLSMandatory,
			From:     cfg.EmailFrom,
			FromName: cfg.EmailFromName,
		})
	case "sendgrid":
		if cfg.SendGridKey == "" {
			return nil, fmt.Errorf("SENDGRID_API_KEY is required for EMAIL_PROVIDER=sendgrid")
		}
		return sendgrid.NewSender(cfg.SendGridKey, cfg.EmailFrom, cfg.EmailFromName), nil
	default:
		return nil, fmt.Errorf("unknown EMAIL_PROVIDER %q", cfg.EmailProvider)
	}
}

func newSMSSender(ctx context.Context, cfg *config.Config, log *slog.Logger) (notification.SMSSender, error) {
	switch cfg.SMSProvider {
	case "console":
		return console.NewSMSSender(log), nil
	case "sns":
		awsCfg, err := dynamo.LoadAWSConfig(ctx, cfg, cfg.SNSRegion)
		if err != nil {
			return nil, err
		}
		return sns.NewSender(awsCfg), nil
	case "twilio":
		if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" {
			return nil, fmt.Errorf("TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN are required for SMS_PROVIDER=twilio")
		}
		return twilio.NewSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioPhoneNumber), nil
	default:
		return nil, fmt.Errorf("unknown SMS_PROVIDER %q", cfg.SMSProvider)
	}
}

func newManagers(st *stores, log *slog.Logger) (email, phone *verification.Manager) {
	email = verification.NewManager(st.email, verification.EmailToken(),
		verification.WithIDGenerator(st.newID), verification.WithLogger(log))
	phone = verification.NewManager(st.phone, verification.PhoneCode(),
		verification.WithIDGenerator(st.newID), verification.WithLogger(log))
	return email, phone
}

func newHousekeeping(st *stores, log *slog.Logger) *housekeeping.Service {
	email, phone := newManagers(st, log)
	return housekeeping.NewService(email, phone, log)
}
