package consent

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/bnema/embed-consent/internal/models"
)

// DefaultFilePath is used by the file driver when no path is configured
const DefaultFilePath = "./.embed-consent/consent.json"

// DefaultSQLitePath is used by the sqlite driver when no path is configured
const DefaultSQLitePath = "./.embed-consent/consent.db"

// Open builds the backend selected by cfg. The returned closer is never nil.
func Open(cfg models.StorageConfig, fsys afero.Fs) (Backend, io.Closer, error) {
	switch cfg.Driver {
	case "", models.DriverFile:
		path := cfg.Path
		if path == "" {
			path = DefaultFilePath
		}
		return NewFile(fsys, path), nopCloser{}, nil
	case models.DriverSQLite:
		path := cfg.Path
		if path == "" {
			path = DefaultSQLitePath
		}
		if err := fsys.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, nopCloser{}, fmt.Errorf("failed to create database dir: %w", err)
		}
		db, err := OpenSQLite(path)
		if err != nil {
			return nil, nopCloser{}, err
		}
		return db, db, nil
	case models.DriverMemory:
		return NewMemory(), nopCloser{}, nil
	case models.DriverNone:
		return Unavailable{}, nopCloser{}, nil
	default:
		return nil, nopCloser{}, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

