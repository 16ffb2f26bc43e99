// Package repository ties the object store, commit graph, staging area and
// branch table together behind the operations the CLI exposes.
package repository

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"minigit/internal/commit"
	"minigit/internal/config"
	apperrors "minigit/internal/errors"
	"minigit/internal/object"
	"minigit/internal/refs"
	"minigit/internal/staging"
	"minigit/internal/storage"
	"minigit/internal/workspace"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

const (
	objectsDir = "objects"
	dbDir      = "db"
	configFile = "config.json"
)

// Option customizes Init and Open.
type Option func(*settings)

type settings struct {
	logger *zap.Logger
	now    func() time.Time
}

// WithLogger routes repository logs to logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithClock sets the time source for commits and merge records.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// Repository is an open minigit repository.
type Repository struct {
	Root   string
	Config *config.Config

	db        *badger.DB
	objects   *object.FileStore
	commits   *commit.Graph
	index     *staging.Index
	refs      *refs.Table
	merges    *storage.BadgerStore
	workspace *workspace.Local
	now       func() time.Time
	logger    *zap.Logger
}

func metaPath(root string, elem ...string) string {
	return filepath.Join(append([]string{root, workspace.MetaDir}, elem...)...)
}

// Init creates a repository at root with an unborn default branch. author,
// when set, is written to the repository config.
func Init(root, author string, opts ...Option) (*Repository, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	if _, err := os.Stat(metaPath(abs)); err == nil {
		return nil, apperrors.ValidationError(fmt.Sprintf("repository already exists at %s", abs), abs)
	}

	// The user-level config seeds new repositories.
	cfg, err := config.LoadLayered(os.Getenv(config.EnvUserConfig))
	if err != nil {
		return nil, err
	}
	if author != "" {
		cfg.Author = author
	}
	if err := refs.ValidateName(cfg.DefaultBranch); err != nil {
		return nil, err
	}

	repo, err := create(abs, cfg, opts...)
	if err != nil {
		if rmErr := os.RemoveAll(metaPath(abs)); rmErr != nil {
			return nil, fmt.Errorf("%w (cleanup failed: %v)", err, rmErr)
		}
		return nil, err
	}

	repo.logger.Info("initialized repository", zap.String("root", abs), zap.String("branch", cfg.DefaultBranch))
	return repo, nil
}

// create lays out the metadata directory and the unborn default branch.
func create(abs string, cfg *config.Config, opts ...Option) (*Repository, error) {
	for _, dir := range []string{metaPath(abs, objectsDir), metaPath(abs, dbDir)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	if err := config.Save(metaPath(abs, configFile), cfg); err != nil {
		return nil, err
	}

	repo, err := Open(abs, opts...)
	if err != nil {
		return nil, err
	}
	if _, err := repo.refs.Create(cfg.DefaultBranch, ""); err != nil {
		repo.Close()
		return nil, err
	}
	if err := repo.refs.Switch(cfg.DefaultBranch); err != nil {
		repo.Close()
		return nil, err
	}
	return repo, nil
}

// Open opens the repository whose root is root.
func Open(root string, opts ...Option) (*Repository, error) {
	s := settings{now: time.Now}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	if info, err := os.Stat(metaPath(abs)); err != nil || !info.IsDir() {
		return nil, apperrors.NotRepository(abs)
	}

	cfg, err := loadConfig(abs)
	if err != nil {
		return nil, err
	}

	objects, err := object.NewFileStore(object.Options{
		Root:      metaPath(abs, objectsDir),
		CacheSize: cfg.Objects.CacheSize,
		Compression: object.CompressionOptions{
			Enabled: cfg.Objects.Compression.Enabled,
			Level:   cfg.Objects.Compression.Level,
			MinSize: cfg.Objects.Compression.MinSize,
		},
		Logger: s.logger.Named("objects"),
	})
	if err != nil {
		return nil, err
	}

	ws, err := workspace.NewLocal(abs, cfg.Ignore, s.logger.Named("workspace"))
	if err != nil {
		return nil, err
	}

	db, err := storage.Open(storage.Options{Dir: metaPath(abs, dbDir), Logger: s.logger})
	if err != nil {
		return nil, err
	}

	return &Repository{
		Root:      abs,
		Config:    cfg,
		db:        db,
		objects:   objects,
		commits:   commit.NewGraph(objects, commit.WithClock(s.now), commit.WithLogger(s.logger.Named("commit"))),
		index:     staging.NewIndex(db),
		refs:      refs.NewTable(db, s.logger.Named("refs")),
		merges:    storage.NewBadgerStore(db, "merge"),
		workspace: ws,
		now:       s.now,
		logger:    s.logger,
	}, nil
}

// Discover opens the repository containing dir.
func Discover(dir string, opts ...Option) (*Repository, error) {
	root, err := workspace.FindRoot(dir)
	if err != nil {
		return nil, err
	}
	return Open(root, opts...)
}

func loadConfig(root string) (*config.Config, error) {
	return config.LoadLayered(os.Getenv(config.EnvUserConfig), metaPath(root, configFile))
}

// LoadConfig returns the effective configuration of the repository containing
// dir without opening its database.
func LoadConfig(dir string) (*config.Config, error) {
	root, err := workspace.FindRoot(dir)
	if err != nil {
		return nil, err
	}
	return loadConfig(root)
}

// OpenWorkspace returns the working directory view of the repository
// containing dir. It does not hold the database lock, so long-running
// watchers can use it while other commands open the repository.
func OpenWorkspace(dir string, logger *zap.Logger) (*workspace.Local, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	root, err := workspace.FindRoot(dir)
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfig(root)
	if err != nil {
		return nil, err
	}
	return workspace.NewLocal(root, cfg.Ignore, logger.Named("workspace"))
}

// Close releases the metadata database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Workspace returns the working directory view.
func (r *Repository) Workspace() *workspace.Local {
	return r.workspace
}

// Objects returns the object store.
func (r *Repository) Objects() *object.FileStore {
	return r.objects
}

// Commits returns the commit graph.
func (r *Repository) Commits() *commit.Graph {
	return r.commits
}
