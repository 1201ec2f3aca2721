package api

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var ErrInvalidServerConfig = errors.New("invalid server configuration")

// HTTPServerConfig configures the provisioning API server and its companion
// metrics listener.
type HTTPServerConfig struct {
	// ListenAddr serves the provisioning, catalog and node-listing routes.
	ListenAddr string

	// MetricsAddr publishes the provisioning, catalog and fleet collectors.
	// Empty disables the metrics listener.
	MetricsAddr string

	EnablePprof bool

	Log *slog.Logger

	// DrainDuration is how long /readyz reports not ready before shutdown
	// starts, so load balancers stop sending provisioning requests first.
	DrainDuration time.Duration

	// GracefulShutdownDuration bounds how long in-flight pushes may finish.
	GracefulShutdownDuration time.Duration

	ReadTimeout time.Duration

	// WriteTimeout must outlast the automation system's timeout, or a slow
	// push is cut off before its answer is written.
	WriteTimeout time.Duration
}

// Validate reports the first setting the server cannot start with.
func (c *HTTPServerConfig) Validate() error {
	switch {
	case c.ListenAddr == "":
		return fmt.Errorf("%w: listen address is required", ErrInvalidServerConfig)
	case c.Log == nil:
		return fmt.Errorf("%w: logger is required", ErrInvalidServerConfig)
	case c.MetricsAddr != "" && c.MetricsAddr == c.ListenAddr:
		return fmt.Errorf("%w: metrics and API cannot share %s", ErrInvalidServerConfig, c.ListenAddr)
	case c.DrainDuration < 0 || c.GracefulShutdownDuration < 0 || c.ReadTimeout < 0 || c.WriteTimeout < 0:
		return fmt.Errorf("%w: durations cannot be negative", ErrInvalidServerConfig)
	}
	return nil
}
