// File: internal/logging/logging.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// zap logger construction. Debug mode writes JSON to stdout; otherwise logs
// are split by level into size-rotated files.

package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the sink and identity of the logger.
type Options struct {
	Name  string // log file prefix, e.g. "hioload-echo"
	Dir   string // log directory when Debug is false
	Debug bool   // true: stdout at debug level and above
}

// New builds the process logger.
func New(opts Options) *zap.Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "line",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
	encoder := zapcore.NewJSONEncoder(encoderConfig)

	var cores []zapcore.Core
	if opts.Debug {
		cores = append(cores, zapcore.NewCore(
			encoder,
			zapcore.AddSync(os.Stdout),
			zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
				return lvl >= zapcore.DebugLevel
			}),
		))
	} else {
		infoWriter := fileWriter(opts, "info")
		errorWriter := fileWriter(opts, "error")
		cores = append(cores, zapcore.NewCore(
			encoder,
			zapcore.AddSync(infoWriter),
			zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
				return lvl >= zapcore.InfoLevel && lvl < zapcore.ErrorLevel
			}),
		))
		cores = append(cores, zapcore.NewCore(
			encoder,
			zapcore.AddSync(errorWriter),
			zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
				return lvl >= zapcore.ErrorLevel
			}),
		))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller())
}

func fileWriter(opts Options, level string) *lumberjack.Logger {
	name := opts.Name
	if name == "" {
		name = "hioload-echo"
	}
	dir := opts.Dir
	if dir == "" {
		dir = "./logs"
	}
	return &lumberjack.Logger{
		Filename:   filepath.Join(dir, name+"_"+level+".log"),
		MaxSize:    128, // MiB per file
		MaxBackups: 30,
		MaxAge:     7, // days
		Compress:   true,
	}
}
