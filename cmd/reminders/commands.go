package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clinicflow/reminders/internal/api"
	"github.com/clinicflow/reminders/internal/metrics"
	"github.com/clinicflow/reminders/internal/redis"
	"github.com/clinicflow/reminders/internal/reminder"
	"github.com/clinicflow/reminders/internal/sms"
	"github.com/clinicflow/reminders/internal/worker"
)

const (
	pushJob            = "clinicflow_reminders"
	defaultTestMessage = "Test SMS from ClinicFlow. Si vous recevez ce message, la configuration est correcte."
)

func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send",
		Short: "Run one reminder batch now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.connectDB(ctx); err != nil {
				return err
			}
			a.connectRedis(ctx)

			o, err := a.orchestrator(ctx)
			if err != nil {
				return err
			}

			summary, runErr := o.Run(ctx)
			if summary != nil {
				printSummary(cmd.OutOrStdout(), summary)
			}

			if a.cfg.PushgatewayURL != "" {
				if err := metrics.Push(a.cfg.PushgatewayURL, pushJob); err != nil {
					a.logger.Warn("failed to push metrics", zap.Error(err))
				}
			}

			if errors.Is(runErr, reminder.ErrRunInProgress) {
				fmt.Fprintln(cmd.OutOrStdout(), "another reminder run is in progress, nothing sent")
				return nil
			}
			return runErr
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the admin API and send reminders on an interval",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			if err := a.connectDB(ctx); err != nil {
				return err
			}
			a.connectRedis(ctx)

			o, err := a.orchestrator(ctx)
			if err != nil {
				return err
			}

			var rateLimiter *redis.RateLimiter
			if a.redis != nil {
				rateLimiter = redis.NewRateLimiter(a.redis, a.logger, redis.RateLimitConfig{
					Limit:  60,
					Window: time.Minute,
				})
			}

			handler := api.NewHandler(a.logger, a.repo, o, a.database)
			router := api.NewRouter(api.RouterConfig{
				Handler:     handler,
				JWTSecret:   []byte(a.cfg.AdminJWTSecret),
				RateLimiter: rateLimiter,
				Logger:      a.logger,
			})
			if a.cfg.AdminJWTSecret == "" {
				a.logger.Warn("ADMIN_JWT_SECRET not set, /v1 admin routes are disabled")
			}

			w := worker.New(o, worker.Config{Interval: a.cfg.ReminderInterval}, a.logger)
			workerCtx, workerCancel := context.WithCancel(context.Background())
			defer workerCancel()
			workerDone := make(chan struct{})
			go func() {
				defer close(workerDone)
				w.Start(workerCtx)
			}()

			srv := &http.Server{
				Addr:         fmt.Sprintf(":%d", a.cfg.Port),
				Handler:      router,
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 5*time.Minute + 15*time.Second,
				IdleTimeout:  60 * time.Second,
			}

			serverErrors := make(chan error, 1)
			go func() {
				a.logger.Info("server listening",
					zap.String("addr", srv.Addr),
					zap.String("clinic_timezone", a.cfg.ClinicTimezone),
					zap.Duration("reminder_interval", a.cfg.ReminderInterval),
				)
				serverErrors <- srv.ListenAndServe()
			}()

			shutdown := make(chan os.Signal, 1)
			signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

			select {
			case err := <-serverErrors:
				return fmt.Errorf("server error: %w", err)
			case sig := <-shutdown:
				a.logger.Info("shutdown signal received", zap.String("signal", sig.String()))

				// stop new runs first; an in-flight run finishes its current send
				workerCancel()
				<-workerDone

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := srv.Shutdown(shutdownCtx); err != nil {
					_ = srv.Close()
					return fmt.Errorf("graceful shutdown failed: %w", err)
				}

				a.logger.Info("server stopped gracefully")
			}

			return nil
		},
	}
}

func testSMSCmd() *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "test-sms PHONE",
		Short: "Send one test SMS through the configured provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			gw, err := a.gateway(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to create sms gateway: %w", err)
			}

			result := gw.Send(cmd.Context(), args[0], message)
			out := cmd.OutOrStdout()
			phone := result.NormalizedPhone
			if phone == "" {
				phone = args[0]
			}

			fmt.Fprintf(out, "provider:   %s\n", result.Provider)
			fmt.Fprintf(out, "phone:      %s\n", sms.MaskPhone(phone))
			if !result.OK {
				return fmt.Errorf("test sms failed: %s", result.Error)
			}
			fmt.Fprintf(out, "message id: %s\n", result.MessageID)
			return nil
		},
	}

	cmd.Flags().StringVar(&message, "message", defaultTestMessage, "message body")
	return cmd
}

func resetReminderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-reminder APPOINTMENT_ID",
		Short: "Clear reminder_sent_at so the next run may send again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid appointment id %q: %w", args[0], err)
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.connectDB(cmd.Context()); err != nil {
				return err
			}

			if err := a.repo.ResetReminder(cmd.Context(), id); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "reminder reset for appointment %s\n", id)
			return nil
		},
	}
}

func printSummary(w io.Writer, s *reminder.RunSummary) {
	fmt.Fprintf(w, "run %s\n", s.RunID)
	if s.Aborted {
		fmt.Fprintf(w, "  ABORTED: %d candidates exceed the safety cap of %d, nothing sent\n", s.Candidates, s.Cap)
		return
	}
	fmt.Fprintf(w, "  candidates: %d\n", s.Candidates)
	fmt.Fprintf(w, "  sent:       %d\n", s.Sent)
	fmt.Fprintf(w, "  failed:     %d\n", s.Failed)
	fmt.Fprintf(w, "  skipped:    %d\n", s.Skipped)
	fmt.Fprintf(w, "  duration:   %s\n", s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))
}
