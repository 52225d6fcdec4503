package hal

import "go.uber.org/zap"

type options struct {
	logger           *zap.Logger
	config           *Config
	globalClass      *Class
	nativeStackDepth int
	engine           engineFactory
}

// Option configures a ContextGroup or a Context.
type Option func(*options)

// WithLogger sets the logger. Contexts add their ID as a field.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithConfig applies the logging and native stack settings of cfg.
// WithLogger and WithNativeStackDepth take precedence.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.config = &cfg
	}
}

// WithGlobalClass seeds the global object of new contexts from class. The
// class's constructor property is not copied.
func WithGlobalClass(class *Class) Option {
	return func(o *options) {
		o.globalClass = class
	}
}

// WithNativeStackDepth sets how many native frames errors can report.
func WithNativeStackDepth(depth int) Option {
	return func(o *options) {
		o.nativeStackDepth = depth
	}
}

func withEngine(factory engineFactory) Option {
	return func(o *options) {
		o.engine = factory
	}
}

func (o options) apply(opts []Option) options {
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// resolve fills unset fields from the config and package defaults.
func (o options) resolve() options {
	if o.logger == nil && o.config != nil {
		if l, err := NewLogger(*o.config); err == nil {
			o.logger = l
		} else {
			Logger().Warn("invalid logging config, using package logger", zap.Error(err))
		}
	}
	if o.logger == nil {
		o.logger = Logger()
	}
	if o.nativeStackDepth <= 0 && o.config != nil {
		o.nativeStackDepth = o.config.NativeStackDepth
	}
	if o.nativeStackDepth <= 0 {
		o.nativeStackDepth = DefaultNativeStackDepth
	}
	if o.engine == nil {
		o.engine = newGojaEngine
	}
	return o
}
