package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger always writes to stderr; stdout is reserved for the rendered profile.
type Logger struct {
	*zap.Logger
	level zapcore.Level
}

type Config struct {
	Level    string
	Encoding string // console or json
	Outputs  []string
}

func DefaultConfig(debug bool) Config {
	level := "info"
	if debug {
		level = "debug"
	}
	return Config{
		Level:    level,
		Encoding: "console",
		Outputs:  []string{"stderr"},
	}
}

func New(cfg Config) (*Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.Encoding = cfg.Encoding
	if zapCfg.Encoding == "" {
		zapCfg.Encoding = "console"
	}
	zapCfg.OutputPaths = cfg.Outputs
	if len(zapCfg.OutputPaths) == 0 {
		zapCfg.OutputPaths = []string{"stderr"}
	}
	zapCfg.ErrorOutputPaths = []string{"stderr"}
	zapCfg.Sampling = nil
	zapCfg.DisableStacktrace = true

	zapCfg.EncoderConfig.TimeKey = "timestamp"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	zapCfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	if level > zapcore.DebugLevel {
		zapCfg.DisableCaller = true
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{Logger: logger, level: level}, nil
}

// NewSimple never fails; an invalid configuration falls back to a no-op logger.
func NewSimple(debug bool) *Logger {
	logger, err := New(DefaultConfig(debug))
	if err != nil {
		return Nop()
	}
	return logger
}

func Nop() *Logger {
	return &Logger{Logger: zap.NewNop(), level: zapcore.FatalLevel}
}

func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger: l.Logger.With(zap.String("component", component)),
		level:  l.level,
	}
}

func (l *Logger) IsDebugEnabled() bool {
	return l.level <= zapcore.DebugLevel
}

// SafeSync ignores the error zap returns when syncing a terminal.
func (l *Logger) SafeSync() {
	if l != nil && l.Logger != nil {
		_ = l.Logger.Sync()
	}
}
