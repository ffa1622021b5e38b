package datadog

import (
	"time"

	"github.com/LavishGent/catalogfetch/internal/types"
)

// NoOpPublisher is returned when DataDog is disabled.
type NoOpPublisher struct{}

func (NoOpPublisher) Gauge(name string, value float64, tags ...string)        {}
func (NoOpPublisher) Incr(name string, tags ...string)                        {}
func (NoOpPublisher) Count(name string, value int64, tags ...string)          {}
func (NoOpPublisher) Histogram(name string, value float64, tags ...string)    {}
func (NoOpPublisher) Timing(name string, value time.Duration, tags ...string) {}
func (NoOpPublisher) Event(title, text, alertType string, tags ...string)     {}
func (NoOpPublisher) PublishHealthMetrics(m *types.PublisherHealthMetrics)    {}
func (NoOpPublisher) Close() error                                            { return nil }

var _ types.Publisher = NoOpPublisher{}
