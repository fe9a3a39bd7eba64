// Package cmd implements the CLI commands for gdocs-mcp.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/thegrumpylion/gdocs-mcp/internal/auth"
	"github.com/thegrumpylion/gdocs-mcp/internal/cache"
	"github.com/thegrumpylion/gdocs-mcp/internal/config"
	"github.com/thegrumpylion/gdocs-mcp/internal/gdocs"
	"github.com/thegrumpylion/gdocs-mcp/internal/logging"
	"github.com/thegrumpylion/gdocs-mcp/internal/metrics"
	"github.com/thegrumpylion/gdocs-mcp/internal/server"
	"github.com/thegrumpylion/gdocs-mcp/internal/tools"
)

const shutdownTimeout = 5 * time.Second

var (
	configPath      string
	credentialsFile string
	tokenFile       string
	logLevel        string
	version         = "dev"
)

// SetVersion sets the version string used in the CLI and MCP server.
func SetVersion(v string) {
	version = v
}

// env bundles what every command needs after flags are parsed.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *auth.Store
}

// loadEnv resolves the configuration and applies flag overrides.
func loadEnv() (*env, error) {
	path := configPath
	if path == "" {
		path = config.Discover()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if credentialsFile != "" {
		if cfg.CredentialsPath, err = filepath.Abs(credentialsFile); err != nil {
			return nil, err
		}
	}
	if tokenFile != "" {
		if cfg.TokenPath, err = filepath.Abs(tokenFile); err != nil {
			return nil, err
		}
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Stdout carries the MCP protocol, so logs always go to stderr.
	logger, err := logging.New(os.Stderr, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	if cfg.Path() != "" {
		logger.Debug("loaded config", logging.Path(cfg.Path()))
	}

	store := auth.NewStore(cfg.TokenPath, cfg.CredentialsPath, cfg.Scopes, auth.WithLogger(logger))
	return &env{cfg: cfg, logger: logger, store: store}, nil
}

func (e *env) newClient(ctx context.Context) (*gdocs.Client, error) {
	client, err := gdocs.New(ctx, e.store, e.logger)
	if err != nil {
		return nil, fmt.Errorf("initializing Google Docs client: %w", err)
	}
	return client, nil
}

// NewRootCmd creates the root cobra command.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gdocs-mcp",
		Short: "MCP server for searching and reading Google Docs",
		Long: `gdocs-mcp exposes Google Docs, Sheets and Slides from your Drive to MCP
clients as read-only tools: gdocs_search, gdocs_read and gdocs_list.

Setup:
  1. Download OAuth credentials from https://console.cloud.google.com/apis/credentials
  2. Place the file at ~/.config/gdocs-mcp/credentials.json (or use --credentials)
  3. Authorize once: gdocs-mcp auth login
  4. Point your MCP client at: gdocs-mcp serve`,
		Version:      version,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "config file, JSON or YAML (default: $GDOCS_MCP_CONFIG, ./config/default.json, ~/.config/gdocs-mcp/config.json)")
	root.PersistentFlags().StringVar(&credentialsFile, "credentials", "", "path to Google OAuth credentials.json")
	root.PersistentFlags().StringVar(&tokenFile, "token", "", "path to the stored OAuth token (default: token.json next to the credentials)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (default: info)")

	root.AddCommand(
		newServeCmd(),
		newAuthCmd(),
		newListCmd(),
		newSaveCmd(),
	)

	return root
}

// --- MCP server ---

// toolFilterFlags holds the CLI flags for tool filtering.
type toolFilterFlags struct {
	enable  []string
	disable []string
}

// addToolFilterFlags adds --enable and --disable flags to a command.
func addToolFilterFlags(cmd *cobra.Command, f *toolFilterFlags) {
	cmd.Flags().StringSliceVar(&f.enable, "enable", nil, "whitelist of tool names to expose (comma-separated)")
	cmd.Flags().StringSliceVar(&f.disable, "disable", nil, "blacklist of tool names to hide (comma-separated)")
	cmd.MarkFlagsMutuallyExclusive("enable", "disable")
}

func (f *toolFilterFlags) toToolFilter() server.ToolFilter {
	return server.ToolFilter{Enable: f.enable, Disable: f.disable}
}

func newServeCmd() *cobra.Command {
	var (
		flags       toolFilterFlags
		cacheDir    string
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server (stdio)",
		Long: `Starts an MCP server over stdio with the tools:
  gdocs_search, gdocs_read, gdocs_list

Use --cache-dir to let gdocs_read save documents locally; this also adds
the gdocs_cache_list tool.
Use --enable or --disable for granular tool control.
Use --metrics-addr to serve Prometheus metrics over HTTP.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client, err := e.newClient(ctx)
			if err != nil {
				return err
			}

			var rec *metrics.Recorder
			if metricsAddr != "" {
				rec = metrics.New()
				ms := metrics.NewServer(metricsAddr, rec, e.logger)
				go func() {
					if err := ms.Start(); err != nil {
						e.logger.Error("metrics server failed", logging.Err(err))
					}
				}()
				defer func() {
					sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
					defer cancel()
					_ = ms.Shutdown(sctx)
				}()
			}

			srv := server.New(&mcp.Implementation{
				Name:    "gdocs-mcp",
				Version: version,
			}, server.Options{Logger: e.logger, Metrics: rec})

			opts := []tools.Option{tools.WithLogger(e.logger)}
			if cacheDir != "" {
				c, err := cache.New(cacheDir)
				if err != nil {
					return err
				}
				defer c.Close()
				e.logger.Info("document saving enabled", logging.Path(c.Dir()))
				opts = append(opts, tools.WithCache(c))
			}
			tools.NewAdapter(client, opts...).Register(srv)

			if err := srv.ApplyFilter(flags.toToolFilter()); err != nil {
				return err
			}

			e.logger.Info("starting MCP server", slog.Int("tools", len(srv.Tools())))
			err = srv.Run(ctx, &mcp.StdioTransport{})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	addToolFilterFlags(cmd, &flags)
	cmd.Flags().StringVar(&cacheDir, "cache-dir", "", "directory where gdocs_read can save documents (disabled when empty)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address for the Prometheus /metrics endpoint, e.g. 127.0.0.1:9464 (disabled when empty)")
	return cmd
}

// --- auth commands ---

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the Google OAuth token",
	}

	cmd.AddCommand(
		newAuthLoginCmd(),
		newAuthStatusCmd(),
		newAuthLogoutCmd(),
	)

	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authorize access via the OAuth browser flow",
		Long: `Runs the OAuth browser flow and stores the token, replacing any existing one.

Requires credentials.json from Google Cloud Console at the default
path (~/.config/gdocs-mcp/credentials.json) or via --credentials.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			if _, err := e.store.Login(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Token saved to %s\n", e.store.TokenPath())
			return nil
		},
	}
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored token without refreshing it",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			cred, err := e.store.Peek()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if cred == nil {
				fmt.Fprintf(out, "No token stored at %s.\n", e.store.TokenPath())
				return nil
			}

			state := "valid"
			switch {
			case cred.Expired() && cred.RefreshToken != "":
				state = "expired (will refresh)"
			case cred.Expired():
				state = "expired"
			}
			fmt.Fprintf(out, "Token:  %s\n", e.store.TokenPath())
			fmt.Fprintf(out, "Status: %s\n", state)
			if !cred.Expiry.IsZero() {
				fmt.Fprintf(out, "Expiry: %s\n", cred.Expiry.Local().Format(time.RFC1123))
			}
			if len(cred.Scopes) > 0 {
				fmt.Fprintf(out, "Scopes: %s\n", strings.Join(cred.Scopes, ", "))
			}
			return nil
		},
	}
}

func newAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Delete the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			if err := e.store.Logout(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Token %s removed.\n", e.store.TokenPath())
			return nil
		},
	}
}

// --- helper commands ---

func newListCmd() *cobra.Command {
	var (
		folder     string
		maxResults int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List Google Docs, Sheets and Slides",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			client, err := e.newClient(cmd.Context())
			if err != nil {
				return err
			}
			docs, err := client.List(cmd.Context(), folder, maxResults)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(docs) == 0 {
				fmt.Fprintln(out, "No documents found.")
				return nil
			}
			for _, d := range docs {
				fmt.Fprintf(out, "%s (ID: %s) [%s] %s\n", d.Name, d.ID, d.Type, d.Modified)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&folder, "folder", "", "only list documents in this folder ID")
	cmd.Flags().IntVar(&maxResults, "max", gdocs.DefaultListResults, "maximum number of documents")
	return cmd
}

func newSaveCmd() *cobra.Command {
	var cacheDir string
	cmd := &cobra.Command{
		Use:   "save <document-name>",
		Short: "Save a Google Doc's text to the local cache directory",
		Long: `Finds a Google Doc by name (exact match first, then partial) and writes
its text, tabs included, to <cache-dir>/<name>.txt.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			if cacheDir == "" {
				cacheDir = e.cfg.CacheDir
			}
			ctx := cmd.Context()

			client, err := e.newClient(ctx)
			if err != nil {
				return err
			}
			doc, err := client.FindByName(ctx, args[0])
			if err != nil {
				return err
			}
			text, err := client.ReadStructured(ctx, doc.ID)
			if err != nil {
				return err
			}

			c, err := cache.New(cacheDir)
			if err != nil {
				return err
			}
			defer c.Close()
			path, err := c.Save(doc.Name, doc.ID, text)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %q to %s\n", doc.Name, path)
			return nil
		},
	}
	cmd.Flags().StringVar(&cacheDir, "cache-dir", "", "output directory (default: cache_dir from the config)")
	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
