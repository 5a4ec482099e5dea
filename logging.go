package main

import (
	"io"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// newLogger logs to stderr, or to a rotated JSON file when file is set.
func newLogger(stderr io.Writer, level, file string) (*logrus.Logger, io.Closer, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, nil, err
	}

	logger := logrus.New()
	logger.SetLevel(lvl)
	if file == "" {
		logger.SetOutput(stderr)
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		return logger, nopCloser{}, nil
	}

	rotated := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    50,
		MaxBackups: 5,
		Compress:   true,
	}
	logger.SetOutput(rotated)
	logger.SetFormatter(&logrus.JSONFormatter{})
	return logger, rotated, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
