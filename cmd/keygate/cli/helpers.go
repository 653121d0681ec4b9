package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/keygate/keygate/internal/auditlog"
	"github.com/keygate/keygate/internal/config"
	"github.com/keygate/keygate/internal/token"
)

// dataDir holds the --data-dir persistent flag value (set on root command).
var dataDir string

// resolveDataDir returns the data directory from --data-dir flag, the
// data_dir config key (INVITE_DATA_DIR), or ~/.keygate as fallback.
func resolveDataDir(cfg *config.Config) string {
	if dataDir != "" {
		return dataDir
	}
	if cfg != nil && cfg.DataDir != "" {
		return cfg.DataDir
	}
	home, _ := os.UserHomeDir()
	return home + "/.keygate"
}

// loadConfig materializes the runtime config from viper.
func loadConfig() *config.Config {
	return config.Load(viper.GetViper())
}

// newCodec selects the session token codec. A signing secret upgrades the
// reversible base64 encoding to HMAC-signed tokens.
func newCodec(cfg *config.Config) token.Codec {
	if cfg.SigningSecret != "" {
		return token.NewSignedCodec(cfg.SigningSecret)
	}
	return token.NewBase64Codec()
}

// newLogStore opens the configured audit log store. The returned close
// function is a no-op for the file store.
func newLogStore(cfg *config.Config) (auditlog.LogStore, func(), error) {
	switch cfg.Log.Store {
	case "", "file":
		return auditlog.NewFileStore(cfg.Log.Dir), func() {}, nil
	case "sqlite":
		store, err := auditlog.NewSQLiteStore(resolveDataDir(cfg))
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite audit store: %w", err)
		}
		return store, func() { store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown log store %q (want file or sqlite)", cfg.Log.Store)
	}
}

// newReader builds an audit log reader for the query-side commands.
func newReader(cfg *config.Config, logger *slog.Logger) (*auditlog.Reader, func(), error) {
	store, closeStore, err := newLogStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	return auditlog.NewReader(store, logger), closeStore, nil
}

// cliLogger is the logger for one-shot commands: warnings only, to keep
// command output clean.
func cliLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// --- PID file management ---

func pidFilePath(cfg *config.Config) string {
	return filepath.Join(resolveDataDir(cfg), "keygate.pid")
}

func writePID(cfg *config.Config, pid int) error {
	dir := resolveDataDir(cfg)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(pidFilePath(cfg), []byte(strconv.Itoa(pid)), 0644)
}

func readPID(cfg *config.Config) (int, error) {
	data, err := os.ReadFile(pidFilePath(cfg))
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePID(cfg *config.Config) {
	os.Remove(pidFilePath(cfg))
}

func logFilePath(cfg *config.Config) string {
	return filepath.Join(resolveDataDir(cfg), "keygate.log")
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	if strings.HasPrefix(appVersion, "v") {
		return appVersion
	}
	return "v" + appVersion
}
