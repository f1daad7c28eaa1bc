// ABOUTME: Entry point for the batchtalk server
// ABOUTME: Serves the conversation API for supply-chain participants

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/Shameer2006/batchtalk/internal/api"
	"github.com/Shameer2006/batchtalk/internal/auth"
	"github.com/Shameer2006/batchtalk/internal/chat"
	"github.com/Shameer2006/batchtalk/internal/config"
	"github.com/Shameer2006/batchtalk/internal/identity"
	"github.com/Shameer2006/batchtalk/internal/live"
	"github.com/Shameer2006/batchtalk/internal/presence"
	"github.com/Shameer2006/batchtalk/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
 _           _       _     _        _ _
| |__   __ _| |_ ___| |__ | |_ __ _| | | __
| '_ \ / _' | __/ __| '_ \| __/ _' | | |/ /
| |_) | (_| | || (__| | | | || (_| | |   <
|_.__/ \__,_|\__\___|_| |_|\__\__,_|_|_|\_\
`

// getConfigPath returns the path to the server config file.
// Priority: BATCHTALK_CONFIG env var > XDG_CONFIG_HOME/batchtalk/server.yaml > ~/.config/batchtalk/server.yaml
func getConfigPath() string {
	if envPath := os.Getenv("BATCHTALK_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "server.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "batchtalk", "server.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: batchtalk <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                    Start the server")
		fmt.Println("  health                   Check server health")
		fmt.Println("  token --account ADDR     Mint a bearer token for an account")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "health":
		err = runHealth(ctx)
	case "token":
		err = runToken()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)

	// Startup info
	green := color.New(color.FgGreen)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Path)
	if cfg.NATS.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("NATS:      ")
		cyan.Print(cfg.NATS.URL)
		fmt.Println()
	}
	fmt.Println()

	logger.Info("starting batchtalk",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
	)

	// Storage
	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer db.Close()

	// Live fan-out: local broadcaster, optionally bridged across instances
	broadcaster := live.NewBroadcaster(logger)
	defer broadcaster.Close()

	var bus live.Publisher = broadcaster
	if cfg.NATS.Enabled {
		relay, err := live.NewRelay(cfg.NATS.URL, broadcaster, logger)
		if err != nil {
			return fmt.Errorf("connecting relay: %w", err)
		}
		defer relay.Close()
		bus = relay
	}

	chatSvc := chat.New(db, bus, logger)
	tracker := presence.New(cfg.Presence.TTL)
	resolver := identity.NewCachingResolver(identity.NewStaticResolver(accountProfiles(cfg)))
	verifier := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))

	server := api.New(chatSvc, tracker, broadcaster, resolver, verifier, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Listen(cfg.Server.HTTPAddr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		return server.Shutdown()
	}
}

// accountProfiles converts the configured account list into a resolver table.
func accountProfiles(cfg *config.Config) map[string]identity.Profile {
	profiles := make(map[string]identity.Profile, len(cfg.Identity.Accounts))
	for _, account := range cfg.Identity.Accounts {
		profiles[account.Address] = identity.Profile{
			Name: account.Name,
			Role: account.Role,
		}
	}
	return profiles
}

func runHealth(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/healthz", cfg.Server.HTTPAddr)
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

	fmt.Println("healthy")
	return nil
}

// runToken mints a bearer token for an account, for bootstrapping clients.
func runToken() error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	account := fs.String("account", "", "account address the token authenticates")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(os.Args[2:]); err != nil {
		return err
	}
	if *account == "" {
		return fmt.Errorf("--account is required")
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	verifier := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	token, err := verifier.Generate(*account, *ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	fmt.Println(token)
	return nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}
