package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateStream(cfg, ve)
	validateReconcile(cfg, ve)
	validateSession(cfg, ve)
	validateAnimation(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateStream(cfg *Config, ve *ValidationError) {
	s := cfg.Stream
	if s.URL == "" {
		ve.Add("stream.url is required")
	} else if u, err := url.Parse(s.URL); err != nil {
		ve.Add("stream.url is not a valid URL: %v", err)
	} else if u.Scheme != "ws" && u.Scheme != "wss" {
		ve.Add("stream.url scheme must be ws or wss, got %q", u.Scheme)
	} else if u.Host == "" {
		ve.Add("stream.url must include a host")
	}
	if s.ConnectTimeout <= 0 {
		ve.Add("stream.connect_timeout must be > 0")
	}
	if s.ReconnectDelay <= 0 {
		ve.Add("stream.reconnect_delay must be > 0")
	}
	if s.SendRate <= 0 {
		ve.Add("stream.send_rate must be > 0")
	}
	if s.SendBurst <= 0 {
		ve.Add("stream.send_burst must be > 0")
	}
	if s.ReadLimit <= 0 {
		ve.Add("stream.read_limit must be > 0")
	}
}

func validateReconcile(cfg *Config, ve *ValidationError) {
	r := cfg.Reconcile
	if r.MinOverlap <= 0 {
		ve.Add("reconcile.min_overlap must be > 0")
	}
	if r.DuplicateWindow <= 0 {
		ve.Add("reconcile.duplicate_window must be > 0")
	}
	if r.BacklogCap <= 0 {
		ve.Add("reconcile.backlog_cap must be > 0")
	}
	if r.BacklogKeep <= 0 || r.BacklogKeep >= r.BacklogCap {
		ve.Add("reconcile.backlog_keep must be > 0 and < backlog_cap (%d)", r.BacklogCap)
	}
}

func validateSession(cfg *Config, ve *ValidationError) {
	if cfg.Session.MinLoading <= 0 {
		ve.Add("session.min_loading must be > 0")
	}
	if cfg.Session.RestartReconnectDelay <= 0 {
		ve.Add("session.restart_reconnect_delay must be > 0")
	}
}

func validateAnimation(cfg *Config, ve *ValidationError) {
	a := cfg.Animation
	if a.MinCharDelay <= 0 {
		ve.Add("animation.min_char_delay must be > 0")
	}
	if a.MaxCharDelay <= 0 {
		ve.Add("animation.max_char_delay must be > 0")
	}
	if a.MinCharDelay > a.MaxCharDelay {
		ve.Add("animation.min_char_delay (%s) must not exceed max_char_delay (%s)", a.MinCharDelay, a.MaxCharDelay)
	}
	if a.SettleDelay <= 0 {
		ve.Add("animation.settle_delay must be > 0")
	}
	if a.CursorBlink <= 0 {
		ve.Add("animation.cursor_blink must be > 0")
	}
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

var validLogFormats = map[string]bool{"text": true, "json": true}

func validateLogger(cfg *Config, ve *ValidationError) {
	if !validLogLevels[strings.ToLower(cfg.Logger.Level)] {
		ve.Add("logger.level %q is invalid (want debug, info, warn or error)", cfg.Logger.Level)
	}
	if !validLogFormats[strings.ToLower(cfg.Logger.Format)] {
		ve.Add("logger.format %q is invalid (want text or json)", cfg.Logger.Format)
	}
}

var validExporters = map[string]bool{"noop": true, "stdout": true}

func validateTracer(cfg *Config, ve *ValidationError) {
	if cfg.Tracer.Exporter == "" {
		return
	}
	if !validExporters[cfg.Tracer.Exporter] {
		ve.Add("tracer.exporter %q is invalid (want noop or stdout)", cfg.Tracer.Exporter)
	}
}
