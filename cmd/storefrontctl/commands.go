// cmd/storefrontctl/commands.go
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/your-org/storefront-gateway/internal/config"
	"github.com/your-org/storefront-gateway/internal/domain/checkout"
	"github.com/your-org/storefront-gateway/internal/domain/order"
	"github.com/your-org/storefront-gateway/internal/infrastructure/database/postgres"
	"github.com/your-org/storefront-gateway/internal/pkg/alert"
	"github.com/your-org/storefront-gateway/internal/pkg/commerce"
	"github.com/your-org/storefront-gateway/internal/pkg/logger"
)

// attemptLister is the read side of the checkout ledger used by the attempts command
type attemptLister interface {
	ListAttempts(ctx context.Context, sessionID string, limit int) ([]checkout.CheckoutAttempt, error)
}

// finalizationRunner drains due finalizations once
type finalizationRunner interface {
	RunOnce(ctx context.Context) (int, error)
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "storefrontctl",
		Short:         "Operational commands for the storefront gateway",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(newMigrateCommand(), newRetryCommand(), newAttemptsCommand())
	return root
}

func openLedgerDB() (*config.Config, *postgres.Connection, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	conn, err := postgres.NewConnection(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, conn, nil
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the checkout ledger tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, conn, err := openLedgerDB()
			if err != nil {
				return err
			}
			defer conn.Close()

			migration := postgres.NewMigration(conn.GetDB())
			if err := migration.RunAutoMigrations(); err != nil {
				return err
			}
			if err := migration.CreateIndexes(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ledger schema is up to date")
			return nil
		},
	}
}

func newRetryCommand() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "retry-finalizations",
		Short: "Retry every due pending order finalization once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, conn, err := openLedgerDB()
			if err != nil {
				return err
			}
			defer conn.Close()

			log := logger.New(cfg.Logging)
			api := commerce.NewClient(cfg.Commerce, &http.Client{Timeout: cfg.Commerce.Timeout}, log)
			retrier := checkout.NewFinalizationRetrier(
				checkout.NewGormLedger(conn.GetDB()),
				order.NewService(api, log),
				alert.NewService(cfg.Alert, log),
				cfg.Checkout,
				cfg.Commerce.ServiceToken,
				log,
			)

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return runRetry(ctx, retrier, cmd.OutOrStdout())
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall deadline for the run")
	return cmd
}

func runRetry(ctx context.Context, runner finalizationRunner, out io.Writer) error {
	n, err := runner.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("failed to retry finalizations: %w", err)
	}
	fmt.Fprintf(out, "finalized %d order(s)\n", n)
	return nil
}

func newAttemptsCommand() *cobra.Command {
	var (
		sessionID string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "attempts",
		Short: "List recent checkout attempts for a session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, conn, err := openLedgerDB()
			if err != nil {
				return err
			}
			defer conn.Close()

			return printAttempts(cmd.Context(), checkout.NewGormLedger(conn.GetDB()), sessionID, limit, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "session id to inspect")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of attempts to show")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

func printAttempts(ctx context.Context, ledger attemptLister, sessionID string, limit int, out io.Writer) error {
	attempts, err := ledger.ListAttempts(ctx, sessionID, limit)
	if err != nil {
		return err
	}
	if len(attempts) == 0 {
		fmt.Fprintf(out, "no checkout attempts for session %s\n", sessionID)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ATTEMPT\tORDER\tSTATE\tAMOUNT\tFAILURE\tCREATED")
	for _, a := range attempts {
		failure := "-"
		if a.FailureKind != "" {
			failure = fmt.Sprintf("%s: %s", a.FailureKind, a.FailureReason)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d %s\t%s\t%s\n",
			a.ID, orDash(a.OrderID), a.State, a.AmountMinor, a.Currency, failure, a.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
