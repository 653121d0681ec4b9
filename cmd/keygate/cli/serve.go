package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/keygate/keygate/internal/auditlog"
	"github.com/keygate/keygate/internal/config"
	"github.com/keygate/keygate/internal/geoip"
	"github.com/keygate/keygate/internal/handler"
	"github.com/keygate/keygate/internal/policy"
	"github.com/keygate/keygate/internal/registry"
	"github.com/keygate/keygate/internal/server"
	"github.com/keygate/keygate/internal/telemetry"
)

const banner = `
 _  _________   ______    _  _____ _____
| |/ / ____\ \ / / ___|  / \|_   _| ____|
| ' /|  _|  \ V / |  _  / _ \ | | |  _|
| . \| |___  | || |_| |/ ___ \| | | |___
|_|\_\_____| |_| \____/_/   \_\_| |_____|
`

func newServeCmd() *cobra.Command {
	var (
		port   int
		host   string
		dev    bool
		detach bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Keygate server",
		Long:  "Start the HTTP server that issues invite sessions, gates tool access, and records the audit log.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if detach {
				return spawnDetached(loadConfig())
			}
			return runServe(dev)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (verbose logging)")
	cmd.Flags().BoolVarP(&detach, "detach", "d", false, "Run the server in the background")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

// spawnDetached re-executes the current binary without the detach flag,
// in its own session, with output redirected to the data-dir log file.
func spawnDetached(cfg *config.Config) error {
	if pid, err := readPID(cfg); err == nil && isProcessRunning(pid) {
		return fmt.Errorf("server is already running (PID %d)", pid)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	args := make([]string, 0, len(os.Args)-1)
	for _, a := range os.Args[1:] {
		if a == "--detach" || a == "-d" {
			continue
		}
		args = append(args, a)
	}

	logPath := logFilePath(cfg)
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	out, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer out.Close()

	child := exec.Command(exe, args...)
	child.Stdout = out
	child.Stderr = out
	setSysProcAttr(child)

	if err := child.Start(); err != nil {
		return fmt.Errorf("start background server: %w", err)
	}

	fmt.Printf("Keygate server started in the background (PID %d).\n", child.Process.Pid)
	fmt.Printf("  Logs: %s\n", logPath)
	fmt.Println("  Stop with: keygate stop")
	return nil
}

func runServe(dev bool) error {
	fmt.Print(banner)
	fmt.Println()

	cfg := loadConfig()

	// Set up logger
	logLevel := slog.LevelInfo
	if dev {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	// 1. Invite key registry from INVITE_KEYS
	keys := registry.ParseKeys(cfg.Keys, logger)
	if keys.Len() == 0 {
		logger.Warn("no invite keys configured - every session request will be rejected")
	} else {
		logger.Info("invite keys loaded", "users", keys.Len())
	}

	// 2. Tool policy registry
	policies, err := config.LoadToolPolicies(cfg.ToolsFile)
	if err != nil {
		return fmt.Errorf("load tool policies: %w", err)
	}
	tools := registry.NewTools(policies)
	logger.Info("tool policies loaded", "tools", len(policies), "strict_mode", cfg.StrictMode)

	// 3. Session codec
	codec := newCodec(cfg)
	if cfg.SigningSecret != "" {
		logger.Info("session tokens are HMAC-signed")
	}

	// 4. Audit log store and logger
	store, closeStore, err := newLogStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	auditCfg := auditlog.Config{
		Enabled:          cfg.Log.Enabled,
		ConsoleLog:       cfg.ConsoleLog,
		FileLog:          cfg.FileLog,
		MaxFileSize:      cfg.Log.MaxSize,
		RetentionDays:    cfg.Log.RetentionDays,
		SweepProbability: cfg.Log.SweepProbability,
	}
	audit := auditlog.New(store, auditCfg, logger)
	reader := auditlog.NewReader(store, logger)

	// 5. Access policy evaluator
	eval := policy.New(cfg.StrictMode)
	if cfg.SessionTTL > 0 {
		eval.MaxAge = cfg.SessionTTL
	}

	// 6. Geolocation resolver
	var geo *geoip.Resolver
	if cfg.Geo.Enabled {
		geo = geoip.NewResolver(logger, geoip.WithTimeout(cfg.Geo.Timeout))
	}

	// 7. Handlers and HTTP server
	sessionHandler := handler.NewSessionHandler(keys, tools, codec, eval, audit, geo, cfg.SessionTTL, logger)
	logsHandler := handler.NewLogsHandler(reader, logger)
	srv := server.New(cfg, sessionHandler, logsHandler, codec, store, logger)

	// 8. Telemetry heartbeat
	startedAt := time.Now()
	tracker := telemetry.New(resolveDataDir(cfg), cfg.Telemetry, func() telemetry.Properties {
		entries := 0
		if stats, err := reader.Stats(context.Background(), 7); err == nil {
			entries = stats.TotalAccesses
		}
		return telemetry.Properties{
			Version:    appVersion,
			GoVersion:  runtime.Version(),
			OS:         runtime.GOOS,
			Arch:       runtime.GOARCH,
			Tools:      len(tools.All()),
			Users:      keys.Len(),
			LogEntries: entries,
			StrictMode: cfg.StrictMode,
			UptimeHrs:  time.Since(startedAt).Hours(),
		}
	})
	tracker.Start()
	defer tracker.Shutdown()

	// 9. PID file for status/stop
	if err := writePID(cfg, os.Getpid()); err != nil {
		logger.Warn("failed to write PID file", "error", err)
	}
	defer removePID(cfg)

	host, port := cfg.Server.Host, cfg.Server.Port
	fmt.Printf("→ Keygate %s\n", versionString())
	fmt.Printf("→ Listening on http://%s:%d\n", host, port)
	fmt.Printf("→ OpenAPI:    http://%s:%d/openapi.json\n", host, port)
	fmt.Printf("→ Health:     http://%s:%d/healthz\n", host, port)
	fmt.Printf("→ Known users: %d, tools: %d\n", keys.Len(), len(tools.All()))
	fmt.Println()

	return srv.ListenAndServe()
}
