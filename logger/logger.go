package logger

import (
	"log"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FileName is where InitLogger writes.
const FileName = "resource-downloader.log"

var (
	// Log is a no-op logger until InitLogger runs, so packages and tests can log freely.
	Log       = zap.NewNop().Sugar()
	ZapLogger = zap.NewNop()
)

func InitLogger() {
	encoderCfg := zapcore.EncoderConfig{
		TimeKey:          "T",
		LevelKey:         "L",
		NameKey:          "N",
		CallerKey:        "",
		FunctionKey:      zapcore.OmitKey,
		MessageKey:       "M",
		StacktraceKey:    "S",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeTime:       zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05"),
		EncodeDuration:   zapcore.StringDurationEncoder,
		EncodeCaller:     zapcore.ShortCallerEncoder,
		ConsoleSeparator: "  ",
	}

	logFile, err := os.OpenFile(FileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Fatalf("can't open log file: %v", err)
	}

	level := zap.InfoLevel
	if os.Getenv("RESOURCE_DOWNLOADER_DEBUG") != "" {
		level = zap.DebugLevel
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.AddSync(logFile), level)

	ZapLogger = zap.New(core)
	Log = ZapLogger.Sugar()
	Log.Info("Logger initialized, logging to " + FileName)
}

// Named returns a child logger for a subsystem.
func Named(name string) *zap.SugaredLogger {
	return Log.Named(name)
}

// StdLog adapts the zap logger for libraries that want a *log.Logger, at warn level.
func StdLog() *log.Logger {
	l, err := zap.NewStdLogAt(ZapLogger.Named("db"), zap.WarnLevel)
	if err != nil {
		return zap.NewStdLog(ZapLogger)
	}
	return l
}

func Sync() {
	if ZapLogger != nil {
		_ = ZapLogger.Sync()
	}
}
