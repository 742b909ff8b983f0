package netdb

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-i2p/logger"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/go-i2p/go-router-embed/lib/config"
)

var log = logger.GetGoI2PLogger()

const dbFileName = "netdb.yaml"

// PeerRecord is one network database entry: a peer the router knows
// about and how to reach it.
type PeerRecord struct {
	Hash     string    `yaml:"hash"`
	Address  string    `yaml:"address"`
	LastSeen time.Time `yaml:"last_seen"`
}

// StdNetDB is the network database subsystem. Records live in memory
// while the router runs; a graceful stop persists them to the
// configured storage directory, a forced stop abandons them. An empty
// configured path selects an ephemeral per-instance directory that is
// removed on shutdown.
type StdNetDB struct {
	cfg *config.NetDbConfig

	mu        sync.RWMutex
	path      string
	ephemeral bool
	records   map[string]PeerRecord

	ready atomic.Bool
}

// NewStdNetDB creates a stopped network database subsystem.
func NewStdNetDB(cfg *config.NetDbConfig) *StdNetDB {
	return &StdNetDB{
		cfg:     cfg,
		records: make(map[string]PeerRecord),
	}
}

func (db *StdNetDB) Name() string { return "netdb" }

// StartAsync resolves the storage directory and loads any previously
// persisted records.
func (db *StdNetDB) StartAsync(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.ready.Load() {
		return oops.Errorf("netdb already started")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if db.cfg.Path == "" {
		dir, err := os.MkdirTemp("", "go-router-embed-netdb-")
		if err != nil {
			return oops.Wrapf(err, "netdb ephemeral storage")
		}
		db.path = dir
		db.ephemeral = true
	} else {
		if err := os.MkdirAll(db.cfg.Path, 0o700); err != nil {
			return oops.Wrapf(err, "netdb storage %s", db.cfg.Path)
		}
		db.path = db.cfg.Path
		db.ephemeral = false
	}

	db.records = make(map[string]PeerRecord)
	if err := db.loadLocked(); err != nil {
		log.WithError(err).WithFields(logger.Fields{
			"at":   "(StdNetDB) StartAsync",
			"path": db.path,
		}).Warn("could not load persisted netdb, starting empty")
	}

	log.WithFields(logger.Fields{
		"at":        "(StdNetDB) StartAsync",
		"path":      db.path,
		"ephemeral": db.ephemeral,
		"size":      len(db.records),
	}).Info("netdb ready")

	db.ready.Store(true)
	return nil
}

// StopGraceful persists records to the storage directory, then
// releases it. Ephemeral directories are removed instead of kept.
func (db *StdNetDB) StopGraceful() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.ready.Store(false)

	if db.path == "" {
		return
	}

	if db.ephemeral {
		os.RemoveAll(db.path)
	} else if err := db.persistLocked(); err != nil {
		log.WithError(err).WithFields(logger.Fields{
			"at":   "(StdNetDB) StopGraceful",
			"path": db.path,
		}).Error("netdb persistence failed")
	}

	db.records = make(map[string]PeerRecord)
	db.path = ""
}

// StopForced abandons persistence and releases the storage directory.
func (db *StdNetDB) StopForced() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.ready.Store(false)

	if db.ephemeral && db.path != "" {
		os.RemoveAll(db.path)
	}
	db.records = make(map[string]PeerRecord)
	db.path = ""
}

// IsReady reports whether the database is loaded and serving.
func (db *StdNetDB) IsReady() bool {
	return db.ready.Load()
}

// Store adds or refreshes a peer record.
func (db *StdNetDB) Store(rec PeerRecord) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.records[rec.Hash] = rec
}

// Lookup returns the record for a peer hash.
func (db *StdNetDB) Lookup(hash string) (PeerRecord, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	rec, ok := db.records[hash]
	return rec, ok
}

// Size returns the number of known peers.
func (db *StdNetDB) Size() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.records)
}

// Path returns the resolved storage directory, empty when stopped.
func (db *StdNetDB) Path() string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.path
}

func (db *StdNetDB) loadLocked() error {
	data, err := os.ReadFile(filepath.Join(db.path, dbFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return oops.Wrapf(err, "read netdb file")
	}

	var records []PeerRecord
	if err := yaml.Unmarshal(data, &records); err != nil {
		return oops.Wrapf(err, "decode netdb file")
	}
	for _, rec := range records {
		db.records[rec.Hash] = rec
	}
	return nil
}

func (db *StdNetDB) persistLocked() error {
	records := make([]PeerRecord, 0, len(db.records))
	for _, rec := range db.records {
		records = append(records, rec)
	}

	data, err := yaml.Marshal(records)
	if err != nil {
		return oops.Wrapf(err, "encode netdb")
	}
	file := filepath.Join(db.path, dbFileName)
	if err := os.WriteFile(file, data, 0o600); err != nil {
		return oops.Wrapf(err, "write netdb file")
	}

	log.WithFields(logger.Fields{
		"at":   "(StdNetDB) persist",
		"file": file,
		"size": len(records),
	}).Debug("netdb persisted")
	return nil
}
