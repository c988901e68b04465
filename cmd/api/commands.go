package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-api-verify/internal/application/auth"
	"github.com/go-api-verify/internal/application/housekeeping"
	"github.com/go-api-verify/internal/application/notification"
	"github.com/go-api-verify/internal/config"
	transporthttp "github.com/go-api-verify/internal/transport/http"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

// loadConfig reads the dotenv file, if present, then the environment.
// Variables already set in the process win.
func loadConfig(cmd *cli.Command) *config.Config {
	_ = godotenv.Load(cmd.String("env-file"))
	return config.Load()
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg := loadConfig(cmd)
	log := newLogger(cfg)

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	// Create tables / apply migrations if missing.
	if err := st.migrate(ctx); err != nil {
		return err
	}

	emailSender, err := newEmailSender(cfg, log)
	if err != nil {
		return err
	}
	smsSender, err := newSMSSender(ctx, cfg, log)
	if err != nil {
		return err
	}
	dispatcher := notification.NewDispatcher(emailSender, smsSender, notification.Options{
		FrontendURL: cfg.FrontendURL,
		Timeout:     cfg.DeliveryTimeout,
		Logger:      log,
	})

	emailMgr, phoneMgr := newManagers(st, log)
	authSvc := auth.NewService(auth.ServiceDeps{
		Users:         st.users,
		EmailVerifier: emailMgr,
		PhoneVerifier: phoneMgr,
		Notifier:      dispatcher,
		NewID:         st.newID,
		Logger:        log,
	})

	purge, err := housekeeping.NewService(emailMgr, phoneMgr, log).Schedule(cfg.PurgeSchedule)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(ctx, cfg, &transporthttp.Deps{Auth: authSvc, Logger: log}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv, "store", cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	dispatcher.Wait()
	<-purge.Stop().Done()
	log.Info("server stopped")
	return nil
}

func runMigrate(ctx context.Context, cmd *cli.Command) error {
	cfg := loadConfig(cmd)
	log := newLogger(cfg)

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	if err := st.migrate(ctx); err != nil {
		return err
	}
	log.Info("schema up to date", "store", cfg.StoreBackend)
	return nil
}

func runPurge(ctx context.Context, cmd *cli.Command) error {
	cfg := loadConfig(cmd)
	log := newLogger(cfg)

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	_, err = newHousekeeping(st, log).PurgeExpired(ctx)
	return err
}
