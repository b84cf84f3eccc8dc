// File: channel/options.go
// Author: momentics <momentics@gmail.com>
//
// Channel construction options, including the control.ConfigStore
// binding that supplies the quiesce loop's poll interval and the
// drain-on-close budget handed to each ChannelClient's Stream.

package channel

import (
	"errors"
	"time"

	"github.com/momentics/deskstream-ws/control"
)

var errChannelConnectRefused = errors.New("channel: connect refused by default policy")

const (
	defaultPollInterval = 5 * time.Millisecond
	defaultDrainBudget  = 128
)

// Options bundles the tunables a Channel is constructed with.
type Options struct {
	callbacks      ClientCallbacks
	metrics        *control.MetricsRegistry
	config         *control.ConfigStore
	migrationFlags uint32
	isMain         bool
}

// Option mutates Options during NewChannel construction.
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{}
}

// WithCallbacks overrides the connect/disconnect/migrate callback trio.
func WithCallbacks(cb ClientCallbacks) Option {
	return func(o *Options) { o.callbacks = cb }
}

// WithMetrics attaches a metrics registry for frame/pipe counters.
func WithMetrics(m *control.MetricsRegistry) Option {
	return func(o *Options) { o.metrics = m }
}

// WithConfig attaches a shared, hot-reloadable config store, consulted
// by the quiesce loop for its poll interval and by NewChannelClient for
// the Stream's drain-on-close budget.
func WithConfig(c *control.ConfigStore) Option {
	return func(o *Options) { o.config = c }
}

// AsMainChannel marks the channel as exempt from requiring a custom
// connect callback (spec section 4.5).
func AsMainChannel() Option {
	return func(o *Options) { o.isMain = true }
}

// WithMigrationFlags sets the migration capability bits (spec section 4.7).
func WithMigrationFlags(flags uint32) Option {
	return func(o *Options) { o.migrationFlags = flags }
}

// pollInterval returns the quiesce poll interval configured on the
// backing ConfigStore, falling back to defaultPollInterval when unset.
func (o *Options) pollInterval() time.Duration {
	if o.config == nil {
		return defaultPollInterval
	}
	snap := o.config.GetSnapshot()
	if v, ok := snap["channel.quiesce.poll_interval_ms"].(int); ok && v > 0 {
		return time.Duration(v) * time.Millisecond
	}
	return defaultPollInterval
}

// drainBudget returns the discard-on-close byte budget from the config
// store, falling back to defaultDrainBudget when unset.
func (o *Options) drainBudget() int {
	if o.config == nil {
		return defaultDrainBudget
	}
	snap := o.config.GetSnapshot()
	if v, ok := snap["channel.quiesce.drain_budget"].(int); ok && v > 0 {
		return v
	}
	return defaultDrainBudget
}
