package voxroom

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/voxroom/events"
	"github.com/opd-ai/voxroom/layout"
	"github.com/opd-ai/voxroom/license"
)

type options struct {
	logger   *logrus.Logger
	sink     LogSink
	level    LogLevel
	catalog  *layout.Catalog
	listener events.Listener
	clock    TimeProvider

	licensed    bool
	licenseData []byte
	licensePath string
	licenseKey  *license.PublicKey
}

// Option customizes a Library at Initialize.
type Option func(*options) error

// WithLogger logs through logger instead of a private logger writing to
// stderr. The library sets the logger's level.
func WithLogger(logger *logrus.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			return errors.New("nil logger")
		}
		o.logger = logger
		return nil
	}
}

// WithLogSink forwards every emitted log message to sink.
func WithLogSink(sink LogSink) Option {
	return func(o *options) error {
		o.sink = sink
		return nil
	}
}

// WithLogLevel sets the initial log level.
func WithLogLevel(level LogLevel) Option {
	return func(o *options) error {
		if level < LogVerbose || level > LogError {
			return fmt.Errorf("log level %d: %w", int(level), ErrInvalidValue)
		}
		o.level = level
		return nil
	}
}

// WithLayoutCatalog replaces the default layout catalog.
func WithLayoutCatalog(c *layout.Catalog) Option {
	return func(o *options) error {
		if c == nil || c.Len() == 0 {
			return layout.ErrEmptyCatalog
		}
		o.catalog = c
		return nil
	}
}

// WithLayoutFile loads the layout catalog from a JSON file.
func WithLayoutFile(path string) Option {
	return func(o *options) error {
		c, err := layout.LoadFile(path)
		if err != nil {
			return err
		}
		o.catalog = c
		return nil
	}
}

// WithLicense checks the signed license data against key. Without a license
// option every feature is available. With one, an invalid license does not
// fail Initialize; it disables the enhancement chain and 3D rendering.
func WithLicense(data []byte, key *license.PublicKey) Option {
	return func(o *options) error {
		o.licensed = true
		o.licenseData = data
		o.licenseKey = key
		return nil
	}
}

// WithLicenseFile is WithLicense reading the license from path.
func WithLicenseFile(path string, key *license.PublicKey) Option {
	return func(o *options) error {
		o.licensed = true
		o.licensePath = path
		o.licenseKey = key
		return nil
	}
}

// WithEventListener delivers room and participant events to listener.
func WithEventListener(listener events.Listener) Option {
	return func(o *options) error {
		o.listener = listener
		return nil
	}
}

// WithTimeProvider replaces the clock.
func WithTimeProvider(tp TimeProvider) Option {
	return func(o *options) error {
		if tp == nil {
			tp = DefaultTimeProvider{}
		}
		o.clock = tp
		return nil
	}
}
