// Package telemetry reports anonymous usage heartbeats. Reporting is
// strictly fail-silent and opt-out via INVITE_TELEMETRY=0 or the telemetry
// config key.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	captureEndpoint = "https://telemetry.keygate.dev/capture"
	flushInterval   = 1 * time.Hour
	httpTimeout     = 3 * time.Second
	instanceIDFile  = "instance-id"
)

// Properties holds the heartbeat payload.
type Properties struct {
	Version    string  `json:"version"`
	GoVersion  string  `json:"go_version"`
	OS         string  `json:"os"`
	Arch       string  `json:"arch"`
	Tools      int     `json:"tool_count"`
	Users      int     `json:"user_count"`
	LogEntries int     `json:"log_entry_count"`
	StrictMode bool    `json:"strict_mode"`
	UptimeHrs  float64 `json:"uptime_hours"`
}

// PropertiesFunc is called each flush to gather current state.
type PropertiesFunc func() Properties

// Tracker manages the background heartbeat loop.
type Tracker struct {
	instanceID string
	propsFn    PropertiesFunc
	client     *http.Client
	startedAt  time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Tracker, resolving (or generating) the anonymous instance
// ID from a file in dataDir. Returns nil when telemetry is disabled, which
// every method tolerates.
func New(dataDir string, enabled bool, propsFn PropertiesFunc) *Tracker {
	if !enabled {
		return nil
	}
	if v := os.Getenv("INVITE_TELEMETRY"); v == "0" || v == "false" || v == "off" {
		return nil
	}

	return &Tracker{
		instanceID: resolveInstanceID(dataDir),
		propsFn:    propsFn,
		client:     &http.Client{Timeout: httpTimeout},
		startedAt:  time.Now(),
	}
}

// Start begins the background heartbeat loop. Sends an initial event
// immediately, then repeats hourly. Non-blocking.
func (t *Tracker) Start() {
	if t == nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		t.flush()

		ticker := time.NewTicker(flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				t.flush()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Shutdown stops the loop and sends a final event.
func (t *Tracker) Shutdown() {
	if t == nil {
		return
	}
	if t.cancel != nil {
		t.cancel()
	}
	t.wg.Wait()
	t.flush()
}

func (t *Tracker) flush() {
	props := t.propsFn()
	props.GoVersion = runtime.Version()
	props.OS = runtime.GOOS
	props.Arch = runtime.GOARCH
	props.UptimeHrs = time.Since(t.startedAt).Hours()
	t.capture("server_heartbeat", props)
}

func (t *Tracker) capture(event string, props Properties) {
	payload := map[string]any{
		"event":       event,
		"distinct_id": t.instanceID,
		"properties":  props,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return // fail silently
	}

	req, err := http.NewRequest("POST", captureEndpoint, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return // network issues are expected
	}
	resp.Body.Close()
}

// resolveInstanceID loads or generates a persistent anonymous instance ID.
// An unwritable data dir yields a fresh ID per process, which is fine.
func resolveInstanceID(dataDir string) string {
	if dataDir == "" {
		return uuid.New().String()
	}
	path := filepath.Join(dataDir, instanceIDFile)
	if raw, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(raw)); id != "" {
			return id
		}
	}
	id := uuid.New().String()
	if err := os.MkdirAll(dataDir, 0o755); err == nil {
		_ = os.WriteFile(path, []byte(id+"\n"), 0o644)
	}
	return id
}
