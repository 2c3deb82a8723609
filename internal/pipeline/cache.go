package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"

	"github.com/robert-at-pretension-io/vlog-dataflow/internal/facts"
)

const (
	cacheVersion  = 2
	cacheFileName = "resolutions.db"
)

var (
	filesBucket  = []byte("files")
	tablesBucket = []byte("tables")
	mergedKey    = []byte("merged")
)

// cacheEntry is one resolved snapshot. It is valid while the content
// hash and the config fingerprint match.
type cacheEntry struct {
	Version     int          `json:"version"`
	ContentHash string       `json:"content_hash"`
	Fingerprint string       `json:"fingerprint"`
	Report      FileReport   `json:"report"`
	Tables      facts.Tables `json:"tables"`

	// Resolved is the encoded resolved snapshot.
	Resolved json.RawMessage `json:"resolved,omitempty"`
}

// resolutionCache stores resolved snapshots in a bolt file keyed by
// snapshot path, plus the merged fact tables of the last run.
type resolutionCache struct {
	db          *bolt.DB
	fingerprint string
}

func openCache(dir, fingerprint string) (*resolutionCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "cache mkdir")
	}
	db, err := bolt.Open(filepath.Join(dir, cacheFileName), 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "open cache")
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(filesBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(tablesBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create cache buckets")
	}
	return &resolutionCache{db: db, fingerprint: fingerprint}, nil
}

func (c *resolutionCache) Close() error {
	return c.db.Close()
}

func (c *resolutionCache) Get(filePath, contentHash string) (*cacheEntry, bool, error) {
	var data []byte
	err := c.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(filesBucket).Get([]byte(filePath)); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil || data == nil {
		return nil, false, err
	}

	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, errors.Wrap(err, "parse cached resolution")
	}
	if entry.Version != cacheVersion || entry.ContentHash != contentHash || entry.Fingerprint != c.fingerprint {
		return nil, false, nil
	}
	return &entry, true, nil
}

func (c *resolutionCache) Put(filePath, contentHash string, report FileReport, tables facts.Tables, resolved []byte) error {
	data, err := json.Marshal(cacheEntry{
		Version:     cacheVersion,
		ContentHash: contentHash,
		Fingerprint: c.fingerprint,
		Report:      report,
		Tables:      tables,
		Resolved:    resolved,
	})
	if err != nil {
		return errors.Wrap(err, "marshal cache entry")
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(filesBucket).Put([]byte(filePath), data)
	})
}

// LoadTables returns the merged tables saved by the previous run.
func (c *resolutionCache) LoadTables() (facts.Tables, bool, error) {
	var data []byte
	err := c.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(tablesBucket).Get(mergedKey); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil || data == nil {
		return facts.Tables{}, false, err
	}
	var tables facts.Tables
	if err := json.Unmarshal(data, &tables); err != nil {
		return facts.Tables{}, false, errors.Wrap(err, "parse cached fact tables")
	}
	return tables, true, nil
}

func (c *resolutionCache) SaveTables(tables facts.Tables) error {
	data, err := json.Marshal(tables)
	if err != nil {
		return errors.Wrap(err, "marshal fact tables")
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(tablesBucket).Put(mergedKey, data)
	})
}

func hashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func resolveCacheDir(rootPath, dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	if info, err := os.Stat(rootPath); err == nil && !info.IsDir() {
		rootPath = filepath.Dir(rootPath)
	}
	return filepath.Join(rootPath, dir)
}
