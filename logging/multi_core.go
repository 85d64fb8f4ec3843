package logging

import (
	"os"

	"go.uber.org/zap/zapcore"
)

// NewMultiCore tees console and rotating-file output at the given level.
// The file is always JSON; the console is colored text in development and
// JSON otherwise. An empty filePath logs to the console only.
func NewMultiCore(level zapcore.Level, filePath string, fileConfig FileWriterConfig, isDev bool) (zapcore.Core, error) {
	consoleCore := zapcore.NewCore(consoleEncoder(isDev), zapcore.Lock(os.Stdout), level)
	if filePath == "" {
		return consoleCore, nil
	}

	fileWriter, err := NewFileWriterWithConfig(filePath, fileConfig)
	if err != nil {
		return nil, err
	}

	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(NewEncoderConfig()), fileWriter, level)
	return zapcore.NewTee(consoleCore, fileCore), nil
}

// NewMultiCoreWithWriters tees the provided writers. Useful for tests that
// capture output in buffers.
func NewMultiCoreWithWriters(level zapcore.Level, consoleWriter, fileWriter zapcore.WriteSyncer, isDev bool) zapcore.Core {
	return zapcore.NewTee(
		zapcore.NewCore(consoleEncoder(isDev), consoleWriter, level),
		zapcore.NewCore(zapcore.NewJSONEncoder(NewEncoderConfig()), fileWriter, level),
	)
}

func consoleEncoder(isDev bool) zapcore.Encoder {
	if isDev {
		return zapcore.NewConsoleEncoder(NewConsoleEncoderConfig())
	}
	return zapcore.NewJSONEncoder(NewEncoderConfig())
}
