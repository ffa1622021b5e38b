package catalogfetch

import (
	"log/slog"
	"net/http"

	"github.com/LavishGent/catalogfetch/internal/fetch"
	"github.com/LavishGent/catalogfetch/internal/logging"
)

type clientOptions struct {
	logger     *slog.Logger
	metrics    MetricsRecorder
	publisher  Publisher
	httpClient *http.Client
}

func (o *clientOptions) fetchOptions() fetch.Options {
	return fetch.Options{
		Logger:     o.logger,
		Metrics:    o.metrics,
		Publisher:  o.publisher,
		HTTPClient: o.httpClient,
	}
}

// ClientOption customizes a Client.
type ClientOption func(*clientOptions)

// WithLogger routes log output through a caller-supplied Logger.
func WithLogger(logger Logger) ClientOption {
	return func(o *clientOptions) {
		if logger != nil {
			o.logger = logging.FromLogger(logger)
		}
	}
}

func WithSlogLogger(logger *slog.Logger) ClientOption {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// WithMetrics adds a recorder that receives every cache and upstream event.
func WithMetrics(metrics MetricsRecorder) ClientOption {
	return func(o *clientOptions) {
		o.metrics = metrics
	}
}

// WithPublisher replaces the publisher chosen from the metrics config.
func WithPublisher(p Publisher) ClientOption {
	return func(o *clientOptions) {
		o.publisher = p
	}
}

func WithHTTPClient(c *http.Client) ClientOption {
	return func(o *clientOptions) {
		o.httpClient = c
	}
}
