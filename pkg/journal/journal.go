// Package journal persists queued activities to a local badger database so
// an updater can replay work that was in flight when the process died.
// Replay gives at-least-once handoff; idempotent upserts downstream make
// the occasional duplicate harmless.
package journal

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/soundprediction/agentgraph/pkg/types"
)

// Entry is one journaled activity with the key that deletes it.
type Entry struct {
	Key      string
	Activity *types.Activity
}

// Journal is an append-mark log keyed <simulationID>/<sequence>.
type Journal struct {
	db     *badger.DB
	seq    *badger.Sequence
	logger *slog.Logger
}

// Open opens (or creates) the journal directory.
func Open(dir string, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := badger.DefaultOptions(dir).WithLogger(&badgerLogger{logger: logger})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal at %s: %w", dir, err)
	}
	seq, err := db.GetSequence([]byte("!journal_seq"), 64)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open journal sequence: %w", err)
	}
	return &Journal{db: db, seq: seq, logger: logger}, nil
}

// Append journals one activity and returns its key.
func (j *Journal) Append(simulationID string, activity *types.Activity) (string, error) {
	n, err := j.seq.Next()
	if err != nil {
		return "", fmt.Errorf("journal sequence failed: %w", err)
	}
	key := fmt.Sprintf("%s/%016x", simulationID, n)
	value, err := json.Marshal(activity)
	if err != nil {
		return "", fmt.Errorf("failed to encode activity: %w", err)
	}
	err = j.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return "", fmt.Errorf("journal append failed: %w", err)
	}
	return key, nil
}

// Pending returns the un-marked entries of one simulation in append order.
func (j *Journal) Pending(simulationID string) ([]Entry, error) {
	prefix := []byte(simulationID + "/")
	var entries []Entry
	err := j.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := string(item.KeyCopy(nil))
			err := item.Value(func(val []byte) error {
				var activity types.Activity
				if err := json.Unmarshal(val, &activity); err != nil {
					return fmt.Errorf("corrupt journal entry %s: %w", key, err)
				}
				entries = append(entries, Entry{Key: key, Activity: &activity})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Mark deletes processed entries.
func (j *Journal) Mark(keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	return j.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete([]byte(key)); err != nil {
				return fmt.Errorf("journal mark failed for %s: %w", key, err)
			}
		}
		return nil
	})
}

// Close releases the sequence lease and the database.
func (j *Journal) Close() error {
	if err := j.seq.Release(); err != nil {
		j.logger.Warn("journal sequence release failed", "error", err)
	}
	return j.db.Close()
}

// badgerLogger adapts badger's logger to slog, demoting badger's chatty
// info output to debug.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}
