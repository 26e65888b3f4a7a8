package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/openbill/arledger/internal/infrastructure/config"
	"github.com/openbill/arledger/internal/infrastructure/logger"
	"github.com/openbill/arledger/internal/infrastructure/postgres"
)

var (
	baseURL string
	timeout time.Duration
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "arledger-cli",
		Short: "Receivables ledger CLI tool",
		Long:  `A command line interface for the receivables ledger API and its database.`,
	}

	rootCmd.PersistentFlags().StringVar(&baseURL, "url", "http://localhost:8080", "Base URL of the ledger API")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(paymentCmd())
	rootCmd.AddCommand(creditCmd())
	rootCmd.AddCommand(consistencyCmd())

	return rootCmd
}

func migrateCmd() *cobra.Command {
	var migrationsPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migrations",
	}
	cmd.PersistentFlags().StringVar(&migrationsPath, "path", "migrations", "Path to migration files")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := logger.New(logger.Config{Level: cfg.LogLevel, Format: "console"})
			return postgres.RunMigrations(cfg.DatabaseURL, migrationsPath, log)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the last migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := logger.New(logger.Config{Level: cfg.LogLevel, Format: "console"})
			return postgres.RunMigrationsDown(cfg.DatabaseURL, migrationsPath, log)
		},
	})

	return cmd
}

func paymentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payment",
		Short: "Payment operations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <payment-id>",
		Short: "Show a payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON("/api/v1/payments/" + args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "void <payment-id>",
		Short: "Void a payment and reverse its splits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return postJSON("/api/v1/payments/"+args[0]+"/void", nil)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "breakdown <payment-id>",
		Short: "Show how a payment distributes across targets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON("/api/v1/payments/" + args[0] + "/breakdown")
		},
	})

	return cmd
}

func creditCmd() *cobra.Command {
	var asOf string

	cmd := &cobra.Command{
		Use:   "credit",
		Short: "Credit balance operations",
	}

	balanceCmd := &cobra.Command{
		Use:   "balance <customer-id>",
		Short: "Show a customer's standing credit balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON(creditBalancePath(args[0], asOf))
		},
	}
	balanceCmd.Flags().StringVar(&asOf, "as-of", "", "Balance at a past instant (RFC3339)")
	cmd.AddCommand(balanceCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "history <customer-id>",
		Short: "Show a customer's credit balance history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON("/api/v1/customers/" + args[0] + "/credit-balance/history")
		},
	})

	return cmd
}

func consistencyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "consistency",
		Short: "Consistency checks",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "report",
		Short: "Sweep every payment and credit ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON("/api/v1/consistency/report")
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "payment <payment-id>",
		Short: "Check one payment's recorded balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON("/api/v1/payments/" + args[0] + "/consistency")
		},
	})

	return cmd
}

// creditBalancePath builds the balance endpoint path, with an optional
// as_of query parameter.
func creditBalancePath(customerID, asOf string) string {
	path := "/api/v1/customers/" + customerID + "/credit-balance"
	if asOf != "" {
		path += "?as_of=" + url.QueryEscape(asOf)
	}
	return path
}

func getJSON(path string) error {
	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(baseURL + path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return printResponse(resp)
}

func postJSON(path string, body io.Reader) error {
	client := &http.Client{Timeout: timeout}
	resp, err := client.Post(baseURL+path, "application/json", body)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return printResponse(resp)
}

func printResponse(resp *http.Response) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("request failed (status %d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		fmt.Println(string(data))
		return nil
	}
	printJSON(v)
	return nil
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("failed to render response: %v\n", err)
		return
	}
	fmt.Println(string(out))
}
