package store

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/RyanBlaney/sonido-mixgraph/fingerprint"
)

// DefaultDBFile is the sqlite file used when no path is given
const DefaultDBFile = "fingerprints.sqlite3"

// cachedFingerprint is the sqlite row for one cache entry
type cachedFingerprint struct {
	Key        string `gorm:"primaryKey;type:varchar(96)"`
	ID         string `gorm:"type:varchar(36)"`
	SourcePath string
	SampleRate int
	HopLength  int
	Features   []byte // gzip-compressed JSON [12][frames]
	CreatedAt  time.Time
}

// SQLiteStore caches fingerprints in a sqlite database
type SQLiteStore struct {
	db *gorm.DB
}

// NewSQLiteStore opens (or creates) the sqlite-backed fingerprint store
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: creating db dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: opening sqlite db: %w", err)
	}

	if err := db.AutoMigrate(&cachedFingerprint{}); err != nil {
		return nil, fmt.Errorf("store: auto migrate: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Load reads a cached fingerprint. A missing entry is (nil, false, nil).
func (s *SQLiteStore) Load(key string) (*fingerprint.Fingerprint, bool, error) {
	var row cachedFingerprint
	err := s.db.Where("key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: querying cache entry: %w", err)
	}

	features, err := decompressFeatures(row.Features)
	if err != nil {
		return nil, false, fmt.Errorf("store: decoding cache entry %s: %w", key, err)
	}

	return &fingerprint.Fingerprint{
		ID:         row.ID,
		SourcePath: row.SourcePath,
		Features:   features,
		SampleRate: row.SampleRate,
		HopLength:  row.HopLength,
		CreatedAt:  row.CreatedAt,
	}, true, nil
}

// Save writes a fingerprint to the cache, replacing any existing entry for
// the same key
func (s *SQLiteStore) Save(key string, fp *fingerprint.Fingerprint) error {
	features, err := compressFeatures(fp.Features)
	if err != nil {
		return fmt.Errorf("store: encoding fingerprint: %w", err)
	}

	row := cachedFingerprint{
		Key:        key,
		ID:         fp.ID,
		SourcePath: fp.SourcePath,
		SampleRate: fp.SampleRate,
		HopLength:  fp.HopLength,
		Features:   features,
		CreatedAt:  fp.CreatedAt,
	}

	err = s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("store: writing cache entry: %w", err)
	}

	return nil
}

// Close closes the underlying database connection
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func compressFeatures(features [][]float64) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if err := json.NewEncoder(gz).Encode(features); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressFeatures(blob []byte) ([][]float64, error) {
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	raw, err := io.ReadAll(gz)
	if err != nil {
		return nil, err
	}

	var features [][]float64
	if err := json.Unmarshal(raw, &features); err != nil {
		return nil, err
	}
	return features, nil
}
