package logger

import (
	"fmt"
	"io"

	"github.com/ccontavalli/webauth/lib/kflags"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Zap adapts a zap.SugaredLogger to the Logger interface.
type Zap struct {
	*zap.SugaredLogger

	level   zap.AtomicLevel
	encoder zapcore.Encoder
}

type ZapFlags struct {
	Format string
	Level  string
}

func DefaultZapFlags() *ZapFlags {
	return &ZapFlags{Format: "console", Level: "info"}
}

func (zf *ZapFlags) Register(set kflags.FlagSet, prefix string) *ZapFlags {
	set.StringVar(&zf.Format, prefix+"log-output", zf.Format, "Format of log lines: console or json")
	set.StringVar(&zf.Level, prefix+"log-level", zf.Level, "Minimum level to log: debug, info, warn, error")
	return zf
}

// NewZap creates a Logger writing to out with the configured format and level.
func NewZap(flags *ZapFlags, out io.Writer) (*Zap, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(flags.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q - %w", flags.Level, err)
	}

	var encoder zapcore.Encoder
	switch flags.Format {
	case "json":
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	case "console", "":
		encoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	default:
		return nil, fmt.Errorf("invalid log format %q - must be console or json", flags.Format)
	}

	atomic := zap.NewAtomicLevelAt(level)
	core := zapcore.NewCore(encoder, zapcore.AddSync(out), atomic)
	return &Zap{
		SugaredLogger: zap.New(core).Sugar(),
		level:         atomic,
		encoder:       encoder,
	}, nil
}

func (z *Zap) SetOutput(writer io.Writer) {
	core := zapcore.NewCore(z.encoder, zapcore.AddSync(writer), z.level)
	z.SugaredLogger = zap.New(core).Sugar()
}
