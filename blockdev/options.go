// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package blockdev

import "go.uber.org/zap"

// Options for discovery and initialization.
type Options struct {
	// Logger to use for logging.
	Logger *zap.Logger
	// DevDir is the device-node directory to scan.
	DevDir string
	// SkipLocking skips flock'ing devices while probing/claiming them.
	SkipLocking bool
}

// Option is an option for discovery and initialization.
type Option func(*Options)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithDevDir sets the device-node directory to scan.
func WithDevDir(dir string) Option {
	return func(o *Options) {
		o.DevDir = dir
	}
}

// WithSkipLocking skips flock'ing devices while probing/claiming them.
func WithSkipLocking(skip bool) Option {
	return func(o *Options) {
		o.SkipLocking = skip
	}
}

func applyOptions(opts ...Option) Options {
	o := Options{
		Logger: zap.NewNop(),
		DevDir: "/dev",
	}

	for _, opt := range opts {
		opt(&o)
	}

	return o
}
