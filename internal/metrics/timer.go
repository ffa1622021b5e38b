package metrics

import (
	"time"

	"github.com/LavishGent/catalogfetch/internal/types"
)

// Timer measures an operation and reports it as a publisher timing.
type Timer struct {
	publisher types.Publisher
	name      string
	tags      []string
	start     time.Time
}

func NewTimer(publisher types.Publisher, name string, tags ...string) *Timer {
	return &Timer{
		publisher: publisher,
		name:      name,
		tags:      tags,
		start:     time.Now(),
	}
}

// Stop records the elapsed time and returns it.
func (t *Timer) Stop() time.Duration {
	d := time.Since(t.start)
	t.publisher.Timing(t.name, d, t.tags...)
	return d
}

func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}
