// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package paddock

import (
	"log/slog"
	"time"

	"github.com/blinklabs-io/paddock/infringement"
	"github.com/prometheus/client_golang/prometheus"
)

type Config struct {
	logger          *slog.Logger
	promRegistry    prometheus.Registerer
	dataDir         string
	listenAddress   string
	corsOrigins     []string
	warningExpiry   time.Duration
	shutdownTimeout time.Duration
	tracing         bool
	tracingStdout   bool
}

type ConfigOptionFunc func(*Config)

func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		listenAddress:   ":8080",
		warningExpiry:   infringement.DefaultWarningExpiry,
		shutdownTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithLogger specifies the slog.Logger to use
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithDataDir specifies the directory for the control store and the
// per-session record stores. An empty value selects in-memory storage,
// which is mostly useful for testing
func WithDataDir(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

// WithListenAddress specifies the address for the REST/WebSocket listener
func WithListenAddress(addr string) ConfigOptionFunc {
	return func(c *Config) {
		c.listenAddress = addr
	}
}

// WithCorsOrigins specifies the allowed CORS origins. An empty list (or a
// bare "*") allows any origin
func WithCorsOrigins(origins []string) ConfigOptionFunc {
	return func(c *Config) {
		c.corsOrigins = origins
	}
}

// WithWarningExpiry specifies how long a Warning penalty stays current
// before its displayed status flips to Expired
func WithWarningExpiry(expiry time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.warningExpiry = expiry
	}
}

// WithShutdownTimeout specifies the timeout for graceful shutdown. The default is 30 seconds
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer instance to add metrics to. In most cases, prometheus.DefaultRegistry would be
// a good choice to get metrics working
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithTracing enables tracing. By default, spans are submitted to a HTTP(s) endpoint using OTLP. This can be configured
// using the OTEL_EXPORTER_OTLP_* env vars documented in the README for [go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp]
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout enables tracing output to stdout. This also requires tracing to enabled separately. This is mostly useful for debugging
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}
