// Package logging builds the zap logger used across tasksync.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a logger.
// By default entries are JSON lines at info level appended to logPath.
// With debug set, entries also go to stderr through the console encoder at debug level.
// An empty logPath disables the file output.
func New(logPath string, debug bool) (*zap.Logger, error) {
	var zcfg zap.Config
	if debug {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.OutputPaths = []string{"stderr"}
	} else {
		zcfg = zap.NewProductionConfig()
		zcfg.OutputPaths = nil
		zcfg.Sampling = nil
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	if logPath != "" {
		zcfg.OutputPaths = append(zcfg.OutputPaths, logPath)
	}
	if len(zcfg.OutputPaths) == 0 {
		return zap.NewNop(), nil
	}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	return zcfg.Build()
}
