package mmr

import "github.com/datatrails/go-datatrails-common/logger"

// engineConfig holds the optional, constructor-time knobs for an Mmr.
type engineConfig struct {
	log logger.Logger
}

// Option configures an Mmr at construction time.
type Option func(*engineConfig)

// WithLogger attaches log to the Mmr; it emits Debugf at one line per
// get_many/set_many round trip. Omitting this option leaves logging a
// no-op.
func WithLogger(log logger.Logger) Option {
	return func(c *engineConfig) {
		c.log = log
	}
}

func newEngineConfig(opts []Option) engineConfig {
	var c engineConfig
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (m *Mmr) logDebugf(template string, args ...any) {
	if m.log == nil {
		return
	}
	m.log.Debugf(template, args...)
}
