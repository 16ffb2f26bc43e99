package storage

import (
    "fmt"

    "github.com/dgraph-io/badger/v4"
    "go.uber.org/zap"
)

// Options configures the metadata database
type Options struct {
    Dir      string
    InMemory bool
    Logger   *zap.Logger
}

// Open opens the badger database that holds repository metadata
func Open(opts Options) (*badger.DB, error) {
    var bopts badger.Options
    if opts.InMemory {
        bopts = badger.DefaultOptions("").WithInMemory(true)
    } else {
        if opts.Dir == "" {
            return nil, fmt.Errorf("database directory is required")
        }
        bopts = badger.DefaultOptions(opts.Dir).
            WithLoggingLevel(badger.WARNING)
    }
    bopts = bopts.WithNumVersionsToKeep(1)

    if opts.Logger != nil {
        bopts.Logger = &badgerLogger{sugar: opts.Logger.Named("badger").Sugar()}
    } else {
        bopts.Logger = nil
    }

    db, err := badger.Open(bopts)
    if err != nil {
        return nil, fmt.Errorf("opening database: %w", err)
    }
    return db, nil
}

// badgerLogger routes badger's own messages through zap. Badger is chatty at
// info level, so everything below warnings goes to debug.
type badgerLogger struct {
    sugar *zap.SugaredLogger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
    l.sugar.Errorf(format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
    l.sugar.Warnf(format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
    l.sugar.Debugf(format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
    l.sugar.Debugf(format, args...)
}
