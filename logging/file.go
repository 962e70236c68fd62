package logging

import (
	"io"

	"gopkg.in/natefinch/lumberjack.v2"
)

// RotationConfig describes a size-rotated log file.
type RotationConfig struct {
	Filename   string `yaml:"filename"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	Compress   bool   `yaml:"compress"`
}

// NewRotatingWriter returns a writer that rotates Filename once it reaches
// MaxSizeMB. Zero limits fall back to 10 MB, 1 backup and 7 days.
func NewRotatingWriter(cfg RotationConfig) io.WriteCloser {
	return &lumberjack.Logger{
		Filename:   cfg.Filename,
		MaxSize:    max(cfg.MaxSizeMB, 10),
		MaxBackups: max(cfg.MaxBackups, 1),
		MaxAge:     max(cfg.MaxAgeDays, 7),
		Compress:   cfg.Compress,
	}
}
