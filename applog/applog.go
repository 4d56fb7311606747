package applog

import (
	"fmt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"match-relay/build"
	"os"
	"path/filepath"
	"time"
)

type Logger = zap.Logger

func Info(msg string, fields ...zapcore.Field) {
	globalLogger.WithOptions(zap.AddCallerSkip(1)).Info(msg, fields...)
}

func Warn(msg string, fields ...zapcore.Field) {
	globalLogger.WithOptions(zap.AddCallerSkip(1)).Warn(msg, fields...)
}

func Debug(msg string, fields ...zapcore.Field) {
	globalLogger.WithOptions(zap.AddCallerSkip(1)).Debug(msg, fields...)
}

func Error(msg string, fields ...zapcore.Field) {
	globalLogger.WithOptions(zap.AddCallerSkip(1)).Error(msg, fields...)
}

func Fatal(msg string, fields ...zapcore.Field) {
	globalLogger.WithOptions(zap.AddCallerSkip(1)).Fatal(msg, fields...)
}

func LogStartup(launchArgs interface{}) {
	buildInfo := build.GetBuildInfo()
	buildCommit := "unknown"
	if buildInfo != nil && buildInfo.CommitHash != "" {
		buildCommit = buildInfo.CommitHash
	}

	Info("Relay server started",
		zap.String("buildCommit", buildCommit),
		zap.Any("launchArgs", launchArgs),
	)
}

func GetLogger() *Logger {
	return globalLogger
}

// Initialize sets up the process-wide logger writing to stdout and,
// if logPath is not empty, to a timestamped file below it.
func Initialize(rawLogLevel int, logPath string) error {
	level := zapcore.Level(rawLogLevel)
	if level < zapcore.DebugLevel || level > zapcore.FatalLevel {
		level = zapcore.InfoLevel
	}

	if logPath != "" {
		logFilename := filepath.Join(
			logPath,
			fmt.Sprintf("relay_%s.log", time.Now().UTC().Format("20060102T150405")),
		)

		if err := os.MkdirAll(filepath.Dir(logFilename), os.ModePerm); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}

		f, err := os.OpenFile(logFilename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file '%s': %w", logFilename, err)
		}
		logFile = f
	}

	setLogger(newLogger(level, opts...))
	return nil
}

func Shutdown() {
	_ = globalLogger.Sync()
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}

var (
	opts = []zap.Option{
		zap.AddCaller(),
	}
	globalLogger = newLogger(zapcore.InfoLevel, opts...)
	logFile      *os.File
)

func newLogger(level zapcore.Level, opts ...zap.Option) *Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format(time.RFC3339))
	}

	jsonEncoder := zapcore.NewJSONEncoder(encoderConfig)

	cores := []zapcore.Core{
		zapcore.NewCore(jsonEncoder, zapcore.AddSync(os.Stdout), level),
	}
	if logFile != nil {
		cores = append(cores, zapcore.NewCore(jsonEncoder, zapcore.AddSync(logFile), level))
	}

	return zap.New(zapcore.NewTee(cores...), opts...)
}

func setLogger(l *Logger) {
	globalLogger = l
	zap.ReplaceGlobals(globalLogger)
}
