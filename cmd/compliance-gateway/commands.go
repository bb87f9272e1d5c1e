// ABOUTME: Utility subcommands: seed, tools, token, health and init
// ABOUTME: Each loads the resolved config the same way serve does

package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/uavcrew/compliance-gateway/internal/auth"
	"github.com/uavcrew/compliance-gateway/internal/config"
	"github.com/uavcrew/compliance-gateway/internal/gateway"
	"github.com/uavcrew/compliance-gateway/internal/store"
)

// defaultTokenTTL is 30 days.
const defaultTokenTTL = 30 * 24 * time.Hour

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load demo compliance records into the configured database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := config.LoadResolved(cfgFile, config.StreamOnly())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if cfg.Database.Driver == "memory" {
				return fmt.Errorf("seed needs a persistent database, got driver %q", cfg.Database.Driver)
			}
			logger := setupLogger(cfg.Logging)

			dbCfg := cfg.Database
			dbCfg.SeedDemoData = false
			s, err := gateway.OpenStore(cmd.Context(), dbCfg, logger)
			if err != nil {
				return err
			}
			defer s.Close()

			sqlStore, ok := s.(*store.SQLStore)
			if !ok {
				return fmt.Errorf("driver %q does not support seeding", cfg.Database.Driver)
			}
			n, err := sqlStore.Seed(cmd.Context())
			if err != nil {
				return fmt.Errorf("seeding demo data: %w", err)
			}

			green := color.New(color.FgGreen)
			if n == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Demo data already present in %s\n", describeDatabase(cfg.Database))
				return nil
			}
			green.Fprintf(cmd.OutOrStdout(), "  ✓ Seeded %d records into %s\n", n, describeDatabase(cfg.Database))
			return nil
		},
	}
}

// toolSummary is the --json shape of one tool, matching tools/list.
type toolSummary struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

func toolsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools this configuration exposes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := config.LoadResolved(cfgFile, config.StreamOnly())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
			registry, err := gateway.BuildRegistry(cfg, store.DefaultCatalog(), quiet)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				tools := make([]toolSummary, 0, registry.Len())
				for tool := range registry.List() {
					tools = append(tools, toolSummary{
						Name:        tool.Name,
						Description: tool.Description,
						InputSchema: tool.InputSchema(),
					})
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{"tools": tools})
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tPACK\tDESCRIPTION")
			for tool := range registry.List() {
				summary, _, _ := strings.Cut(tool.Description, "\n")
				fmt.Fprintf(tw, "%s\t%s\t%s\n", tool.Name, tool.PackID, summary)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the tools/list payload as JSON")
	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer JWT signed with auth.jwt_secret",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, configPath, err := config.LoadResolved(cfgFile, config.StreamOnly())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if cfg.Auth.JWTSecret == "" {
				if configPath == "" {
					configPath = "environment"
				}
				return fmt.Errorf("jwt_secret not configured in %s (required for tokens)", configPath)
			}
			if ttl <= 0 {
				return fmt.Errorf("--ttl must be positive")
			}

			token, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret)).Generate(subject, ttl)
			if err != nil {
				return fmt.Errorf("generating token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "compliance-client", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", defaultTokenTTL, "token lifetime")
	return cmd
}

func healthCmd() *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check a running gateway's health endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if url == "" {
				cfg, _, err := config.LoadResolved(cfgFile, config.StreamOnly())
				if err != nil {
					return fmt.Errorf("loading config: %w", err)
				}
				url = healthURL(cfg.Server.HTTPAddr)
			}
			return checkHealth(cmd.Context(), cmd.OutOrStdout(), url)
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "health endpoint (default: derived from server.http_addr)")
	return cmd
}

// healthURL targets loopback when the server binds every interface.
func healthURL(httpAddr string) string {
	host, port, err := net.SplitHostPort(httpAddr)
	if err != nil {
		return fmt.Sprintf("http://%s/health", httpAddr)
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s/health", net.JoinHostPort(host, port))
}

func checkHealth(ctx context.Context, out io.Writer, url string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	var body struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decoding health response: %w", err)
	}
	fmt.Fprintf(out, "%s (version %s)\n", body.Status, body.Version)
	return nil
}

func initCmd() *cobra.Command {
	var (
		output string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file with a random API key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output == "" {
				output = cfgFile
			}
			if output == "" {
				output = config.DefaultPath()
			}
			if _, err := os.Stat(output); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", output)
			}

			apiKey, err := randomSecret()
			if err != nil {
				return fmt.Errorf("generating API key: %w", err)
			}
			jwtSecret, err := randomSecret()
			if err != nil {
				return fmt.Errorf("generating JWT secret: %w", err)
			}

			if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
				return fmt.Errorf("creating config directory: %w", err)
			}
			dbPath := filepath.Join(filepath.Dir(output), config.DefaultDatabasePath)
			if err := os.WriteFile(output, []byte(starterConfig(dbPath, apiKey, jwtSecret)), 0600); err != nil {
				return fmt.Errorf("writing config file: %w", err)
			}

			out := cmd.OutOrStdout()
			color.New(color.FgGreen).Fprintf(out, "  ✓ Created config: %s\n", output)
			fmt.Fprintln(out)
			color.New(color.FgYellow).Fprintln(out, "  Ready to go:")
			fmt.Fprintln(out, "    compliance-gateway seed     # load demo records")
			fmt.Fprintln(out, "    compliance-gateway serve    # start the HTTP server")
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "config file to write (default: --config or the XDG path)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func starterConfig(dbPath, apiKey, jwtSecret string) string {
	return fmt.Sprintf(`# compliance-gateway configuration
# Generated by compliance-gateway init

server:
  http_addr: "%s"
  read_header_timeout: "%s"
  shutdown_timeout: "%s"

database:
  driver: "sqlite"
  path: "%s"
  seed_demo_data: false

auth:
  api_key: "%s"
  jwt_secret: "%s"

cache:
  driver: "memory"
  ttl: "%s"

# files:
#   root: "/srv/compliance/documents"

logging:
  level: "info"
  format: "text"
`,
		net.JoinHostPort(config.DefaultHost, config.DefaultPort),
		config.DefaultReadHeaderTimeout,
		config.DefaultShutdownTimeout,
		dbPath, apiKey, jwtSecret,
		config.DefaultCacheTTL,
	)
}
