package install

import (
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/albertocavalcante/go-depot/publish"
	"github.com/albertocavalcante/go-depot/resolve"
)

const defaultConcurrency = 5

// Option configures an Engine.
type Option func(*engineConfig) error

type engineConfig struct {
	resolver    resolve.Engine
	publisher   *publish.Publisher
	concurrency int
	hook        StateHook
	registerer  prometheus.Registerer

	// logger is nil unless set; log() returns a discarding logger then.
	logger *slog.Logger
}

// WithLogger sets a structured logger for install diagnostics. If not set,
// logging is disabled.
func WithLogger(l *slog.Logger) Option {
	return func(c *engineConfig) error {
		c.logger = l
		return nil
	}
}

// WithResolver replaces the resolution engine. The default is a
// resolve.Resolver using the settings' matchers.
func WithResolver(r resolve.Engine) Option {
	return func(c *engineConfig) error {
		c.resolver = r
		return nil
	}
}

// WithPublisher replaces the publisher used for each installed module.
func WithPublisher(p *publish.Publisher) Option {
	return func(c *engineConfig) error {
		c.publisher = p
		return nil
	}
}

// WithConcurrency bounds parallel downloads and publications.
func WithConcurrency(n int) Option {
	return func(c *engineConfig) error {
		c.concurrency = n
		return nil
	}
}

// WithStateHook registers a function called on every state transition of
// every install. Hooks run synchronously on the installing goroutine.
func WithStateHook(h StateHook) Option {
	return func(c *engineConfig) error {
		c.hook = h
		return nil
	}
}

// WithMetrics registers the install metrics on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *engineConfig) error {
		c.registerer = reg
		return nil
	}
}

func (c *engineConfig) validate() error {
	if c.concurrency <= 0 {
		return errors.New("concurrency must be positive")
	}
	return nil
}

func (c *engineConfig) log() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slog.New(slog.DiscardHandler)
}

func newEngineConfig(opts ...Option) (*engineConfig, error) {
	c := &engineConfig{concurrency: defaultConcurrency}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}
