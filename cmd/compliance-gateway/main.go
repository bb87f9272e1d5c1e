// ABOUTME: Entry point for compliance-gateway, the MCP tool server for compliance records
// ABOUTME: Cobra commands for serving over HTTP or stdio plus seeding, token and health utilities

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/uavcrew/compliance-gateway/internal/config"
	"github.com/uavcrew/compliance-gateway/internal/gateway"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
   ___                 _ _
  / __|___ _ __  _ __ | (_)__ _ _ _  __ ___
 | (__/ _ \ '  \| '_ \| | / _' | ' \/ _/ -_)
  \___\___/_|_|_| .__/|_|_\__,_|_||_\__\___|  gateway
                |_|
`

var cfgFile string

func main() {
	// A missing .env is normal outside local development
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: reading .env: %v\n", err)
	}

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "compliance-gateway",
		Short:        "MCP tool server for flight compliance records",
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: $COMPLIANCE_CONFIG or ~/.config/compliance-gateway/config.yaml, else environment)")

	root.AddCommand(serveCmd())
	root.AddCommand(stdioCmd())
	root.AddCommand(seedCmd())
	root.AddCommand(toolsCmd())
	root.AddCommand(tokenCmd())
	root.AddCommand(healthCmd())
	root.AddCommand(initCmd())
	return root
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the MCP endpoint over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			cyan := color.New(color.FgCyan)
			cyan.Print(banner)
			gray := color.New(color.FgHiBlack)
			gray.Printf("    version: %s\n\n", version)

			cfg, configPath, err := config.LoadResolved(cfgFile)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			logger := setupLogger(cfg.Logging)

			green := color.New(color.FgGreen)
			yellow := color.New(color.FgYellow)

			source := configPath
			if source == "" {
				source = "environment"
			}
			green.Print("    ▶ ")
			fmt.Printf("Config:    %s\n", source)
			green.Print("    ▶ ")
			fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
			green.Print("    ▶ ")
			fmt.Printf("Database:  %s\n", describeDatabase(cfg.Database))
			if cfg.Cache.Driver != "none" {
				green.Print("    ▶ ")
				fmt.Printf("Cache:     %s", cfg.Cache.Driver)
				gray.Printf(" (ttl %s)\n", cfg.Cache.TTL)
			}
			if cfg.Files.Root != "" {
				green.Print("    ▶ ")
				fmt.Printf("Files:     %s\n", cfg.Files.Root)
			}
			if cfg.Auth.Disabled {
				yellow.Println("    ! Authentication disabled")
			}
			fmt.Println()

			logger.Info("starting compliance-gateway",
				"config", source,
				"http_addr", cfg.Server.HTTPAddr,
				"database", cfg.Database.Driver,
			)

			gw, err := gateway.New(ctx, cfg, logger, gateway.WithVersion(version))
			if err != nil {
				return fmt.Errorf("creating gateway: %w", err)
			}
			return gw.Run(ctx)
		},
	}
}

func stdioCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stdio",
		Short: "Serve the MCP endpoint over stdin and stdout",
		Long: "Serve JSON-RPC over stdin/stdout for a local MCP client. Stdout carries only\n" +
			"protocol messages; logs go to stderr. HTTP credentials are not required.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			cfg, _, err := config.LoadResolved(cfgFile, config.StreamOnly())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			logger := setupLogger(cfg.Logging)

			gw, err := gateway.New(ctx, cfg, logger,
				gateway.WithVersion(version),
				gateway.WithStreamOnly(),
			)
			if err != nil {
				return fmt.Errorf("creating gateway: %w", err)
			}

			errCh := make(chan error, 1)
			go func() { errCh <- gw.ServeStdio(ctx, cmd.InOrStdin(), cmd.OutOrStdout()) }()
			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				logger.Info("signal received, stopping stream transport")
			}

			// ServeStdio closes the store once it sees ctx between frames.
			// A stdin read blocked past the grace period does not observe
			// ctx, so the store is closed here instead.
			select {
			case err := <-errCh:
				return err
			case <-time.After(cfg.Server.ShutdownTimeout):
				logger.Warn("stream transport still blocked on input, closing store")
				return gw.Close()
			}
		},
	}
}

func describeDatabase(db config.DatabaseConfig) string {
	switch db.Driver {
	case "sqlite":
		return "sqlite " + db.Path
	case "postgres":
		return "postgres"
	}
	return db.Driver
}
