package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/buntdb"

	"github.com/raykavin/martinrun/pkg/core"
)

// BuntStorage implements core.CandleStorage using BuntDB. Each key holds one
// JSON encoded candle window.
type BuntStorage struct {
	db  *buntdb.DB
	ttl time.Duration
}

// Option configures a BuntStorage
type Option func(*BuntStorage)

// WithTTL expires cached windows after ttl. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(b *BuntStorage) {
		b.ttl = ttl
	}
}

// FromMemory creates an in-memory storage
func FromMemory(options ...Option) (*BuntStorage, error) {
	return NewBuntStorage(":memory:", options...)
}

// FromFile creates a file-based storage
func FromFile(file string, options ...Option) (*BuntStorage, error) {
	return NewBuntStorage(file, options...)
}

// NewBuntStorage opens a BuntDB database at sourceFile
func NewBuntStorage(sourceFile string, options ...Option) (*BuntStorage, error) {
	db, err := buntdb.Open(sourceFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open buntdb: %w", err)
	}

	storage := &BuntStorage{db: db}
	for _, option := range options {
		option(storage)
	}

	return storage, nil
}

// CandleKey identifies a candle window of pair
func CandleKey(pair, timeframe string, start, end time.Time) string {
	return strings.Join([]string{
		pair,
		timeframe,
		start.UTC().Format(time.RFC3339Nano),
		end.UTC().Format(time.RFC3339Nano),
	}, "--")
}

// SaveCandles stores candles under key, replacing any previous window
func (b *BuntStorage) SaveCandles(key string, candles []core.Candle) error {
	content, err := json.Marshal(candles)
	if err != nil {
		return fmt.Errorf("failed to marshal candles: %w", err)
	}

	var opts *buntdb.SetOptions
	if b.ttl > 0 {
		opts = &buntdb.SetOptions{Expires: true, TTL: b.ttl}
	}

	return b.db.Update(func(tx *buntdb.Tx) error {
		if _, _, err := tx.Set(key, string(content), opts); err != nil {
			return fmt.Errorf("failed to store candles: %w", err)
		}
		return nil
	})
}

// Candles loads the window stored under key. The boolean is false when the
// key is missing or expired.
func (b *BuntStorage) Candles(key string) ([]core.Candle, bool, error) {
	var content string
	err := b.db.View(func(tx *buntdb.Tx) (err error) {
		content, err = tx.Get(key)
		return err
	})

	if errors.Is(err, buntdb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read candles: %w", err)
	}

	var candles []core.Candle
	if err := json.Unmarshal([]byte(content), &candles); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal candles: %w", err)
	}

	return candles, true, nil
}

// Keys lists every stored window key in ascending order
func (b *BuntStorage) Keys() ([]string, error) {
	keys := make([]string, 0)
	err := b.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys("*", func(key, _ string) bool {
			keys = append(keys, key)
			return true
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate over keys: %w", err)
	}
	return keys, nil
}

// Close closes the database connection
func (b *BuntStorage) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}
