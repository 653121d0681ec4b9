// Package geoip resolves client IPs to coarse locations using free lookup
// services. Lookups are strictly best-effort: every failure mode (timeout,
// network error, provider error payload) degrades to an unknown location so
// session issuance is never blocked on geolocation.
package geoip

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/keygate/keygate/internal/model"
)

const (
	primaryEndpoint  = "http://ip-api.com/json/%s?fields=status,country,city,regionName"
	fallbackEndpoint = "https://ipwho.is/%s"
	defaultTimeout   = 2 * time.Second
)

// Resolver looks up IP geolocation with a bounded per-call budget and a
// second provider as fallback.
type Resolver struct {
	client   *http.Client
	logger   *slog.Logger
	timeout  time.Duration
	primary  string
	fallback string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTimeout overrides the total lookup budget (both providers combined).
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.timeout = d }
}

// WithEndpoints overrides the provider URL templates. Each must contain one
// %s verb for the IP. Used by tests to point at local servers.
func WithEndpoints(primary, fallback string) Option {
	return func(r *Resolver) {
		r.primary = primary
		r.fallback = fallback
	}
}

// NewResolver creates a Resolver.
func NewResolver(logger *slog.Logger, opts ...Option) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{
		logger:   logger,
		timeout:  defaultTimeout,
		primary:  primaryEndpoint,
		fallback: fallbackEndpoint,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.client = &http.Client{Timeout: r.timeout}
	return r
}

// Resolve returns the location for ip, or (zero, false) when it cannot be
// determined. Loopback and private addresses short-circuit without a
// network call.
func (r *Resolver) Resolve(ctx context.Context, ip string) (model.Location, bool) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return model.Location{}, false
	}
	if parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified() {
		return model.Location{Country: "Local", City: "Local", Region: "Local"}, true
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if loc, ok := r.lookupPrimary(ctx, ip); ok {
		return loc, true
	}
	if loc, ok := r.lookupFallback(ctx, ip); ok {
		return loc, true
	}
	r.logger.Warn("geolocation unavailable", "ip", ip)
	return model.Location{}, false
}

func (r *Resolver) lookupPrimary(ctx context.Context, ip string) (model.Location, bool) {
	var payload struct {
		Status  string `json:"status"`
		Country string `json:"country"`
		City    string `json:"city"`
		Region  string `json:"regionName"`
	}
	if !r.fetch(ctx, fmt.Sprintf(r.primary, ip), &payload) {
		return model.Location{}, false
	}
	if payload.Status != "success" {
		return model.Location{}, false
	}
	return model.Location{Country: payload.Country, City: payload.City, Region: payload.Region}, true
}

func (r *Resolver) lookupFallback(ctx context.Context, ip string) (model.Location, bool) {
	var payload struct {
		Success bool   `json:"success"`
		Country string `json:"country"`
		City    string `json:"city"`
		Region  string `json:"region"`
	}
	if !r.fetch(ctx, fmt.Sprintf(r.fallback, ip), &payload) {
		return model.Location{}, false
	}
	if !payload.Success {
		return model.Location{}, false
	}
	return model.Location{Country: payload.Country, City: payload.City, Region: payload.Region}, true
}

// fetch GETs url and decodes the JSON body into v. Any failure returns
// false; geolocation never surfaces errors to callers.
func (r *Resolver) fetch(ctx context.Context, url string, v interface{}) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}
	return json.NewDecoder(resp.Body).Decode(v) == nil
}
