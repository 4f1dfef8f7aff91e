// Package storage — bolt.go
//
// BoltDB-backed ports.StateStorePort for the sync engine.
//
// Schema (BoltDB bucket layout):
//
//	/snapshots
//	    key:   deviceId
//	    value: JSON-encoded SyncSnapshot
//
//	/meta
//	    key:   "schema_version"
//	    value: "1"
//
// Consistency model:
//   - Single-process, single-writer (BoltDB does not support concurrent writers).
//   - All writes use ACID transactions (bbolt Tx.Commit()).
//   - Reads use read-only transactions (bbolt.View()).
//   - Per spec §6.1, a corrupted or unparseable record is treated as
//     absent rather than surfaced as an error — the actor re-bootstraps
//     that device from a fresh aggregate.
//
// Failure modes:
//   - BoltDB file corruption: bbolt detects via CRC and returns an error
//     on Open(). The caller should refuse to start rather than run with
//     an unreadable store.
//   - Disk full: Write returns an error; the actor emits sync_failed
//     telemetry and continues without persisting (in-memory aggregate preserved, next ack will
//     retry the write).
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/octorelay/blesync-engine/internal/domain"
)

const (
	// DefaultDBPath is the default BoltDB file location.
	DefaultDBPath = "/var/lib/blesync-engine/blesync.db"

	// SchemaVersion is the current database schema version.
	SchemaVersion = "1"

	bucketSnapshots = "snapshots"
	bucketMeta      = "meta"
)

// snapshotRecord is the JSON-on-disk form of domain.SyncSnapshot.
type snapshotRecord struct {
	DeviceId           string `json:"device_id"`
	LastAckedExclusive uint64 `json:"last_acked_exclusive"`
	PageSize           uint32 `json:"page_size"`
	SagaCursor         string `json:"saga_cursor"`
}

// DB is a ports.StateStorePort backed by a single BoltDB file, keyed by
// deviceId.
type DB struct {
	db *bolt.DB
}

// Open opens (or creates) the BoltDB database at the given path,
// initialising buckets and verifying the schema version.
func Open(path string) (*DB, error) {
	bdb, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout:      5 * time.Second,
		FreelistType: bolt.FreelistArrayType,
	})
	if err != nil {
		return nil, fmt.Errorf("bolt.Open(%q): %w", path, err)
	}

	d := &DB{db: bdb}

	if err := d.db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{bucketSnapshots, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("CreateBucketIfNotExists(%q): %w", name, err)
			}
		}
		meta := tx.Bucket([]byte(bucketMeta))
		if meta.Get([]byte("schema_version")) == nil {
			if err := meta.Put([]byte("schema_version"), []byte(SchemaVersion)); err != nil {
				return fmt.Errorf("write schema_version: %w", err)
			}
		}
		return nil
	}); err != nil {
		_ = bdb.Close()
		return nil, fmt.Errorf("database initialisation failed: %w", err)
	}

	if err := d.checkSchemaVersion(); err != nil {
		_ = bdb.Close()
		return nil, err
	}

	return d, nil
}

func (d *DB) checkSchemaVersion() error {
	return d.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket([]byte(bucketMeta))
		v := meta.Get([]byte("schema_version"))
		if string(v) != SchemaVersion {
			return fmt.Errorf(
				"schema version mismatch: database has %q, engine requires %q. "+
					"Run migration or restore from backup.",
				string(v), SchemaVersion,
			)
		}
		return nil
	})
}

// Close closes the underlying BoltDB file.
func (d *DB) Close() error {
	return d.db.Close()
}

// Read implements ports.StateStorePort. A corrupted record is treated
// as absent per spec §6.1, not returned as an error.
func (d *DB) Read(ctx context.Context, dev domain.DeviceId) (domain.SyncSnapshot, bool, error) {
	var rec snapshotRecord
	found := false

	err := d.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketSnapshots))
		data := b.Get([]byte(dev))
		if data == nil {
			return nil
		}
		if jsonErr := json.Unmarshal(data, &rec); jsonErr != nil {
			return nil // corrupted read treated as absent
		}
		found = true
		return nil
	})
	if err != nil {
		return domain.SyncSnapshot{}, false, fmt.Errorf("Read(%q): %w", dev, err)
	}
	if !found {
		return domain.SyncSnapshot{}, false, nil
	}
	return domain.SyncSnapshot{
		DeviceId:           domain.DeviceId(rec.DeviceId),
		LastAckedExclusive: domain.EventOffset(rec.LastAckedExclusive),
		PageSize:           domain.PageSize(rec.PageSize),
		SagaCursor:         rec.SagaCursor,
	}, true, nil
}

// Write implements ports.StateStorePort with a single ACID transaction.
func (d *DB) Write(ctx context.Context, dev domain.DeviceId, snap domain.SyncSnapshot) error {
	rec := snapshotRecord{
		DeviceId:           string(snap.DeviceId),
		LastAckedExclusive: uint64(snap.LastAckedExclusive),
		PageSize:           uint32(snap.PageSize),
		SagaCursor:         snap.SagaCursor,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("Write(%q) marshal: %w", dev, err)
	}

	return d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketSnapshots))
		if err := b.Put([]byte(dev), data); err != nil {
			return fmt.Errorf("Write(%q) bolt.Put: %w", dev, err)
		}
		return nil
	})
}
