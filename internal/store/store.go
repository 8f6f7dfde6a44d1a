// ThreatStream - Real-Time Security Event Analytics and Risk Index
// Copyright 2026 ThreatStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatstream/threatstream

// Package store persists threats, alerts, and playbook executions in
// BadgerDB. It is a simple keyed store: append and read operations only,
// no transactional requirements across objects.
//
// Key layout:
//
//	threat:<padded-unix-nanos>:<id>  -> Threat JSON (newest-first reverse scan)
//	threat_id:<id>                   -> primary threat key (point lookups)
//	alert:<id>                       -> Alert JSON
//	execution:<id>                   -> PlaybookExecution JSON
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/threatstream/threatstream/internal/logging"
	"github.com/threatstream/threatstream/internal/models"
)

// Key prefixes for BadgerDB storage.
const (
	threatKeyPrefix    = "threat:"
	threatIDKeyPrefix  = "threat_id:"
	alertKeyPrefix     = "alert:"
	executionKeyPrefix = "execution:"
)

// ErrNotFound is returned when the requested object does not exist.
var ErrNotFound = errors.New("store: not found")

// Config holds storage settings.
type Config struct {
	// Path is the BadgerDB directory. Ignored when InMemory is set.
	Path string `koanf:"path"`

	// InMemory runs the store without disk persistence (tests, demos).
	InMemory bool `koanf:"in_memory"`

	// ThreatTTL expires stored threats; zero keeps them forever.
	ThreatTTL time.Duration `koanf:"threat_ttl"`

	// GCInterval is how often the value-log garbage collector runs.
	GCInterval time.Duration `koanf:"gc_interval"`
}

// DefaultConfig returns the standard storage settings.
func DefaultConfig() Config {
	return Config{
		Path:       "./data/threatstream",
		ThreatTTL:  24 * time.Hour,
		GCInterval: 10 * time.Minute,
	}
}

// Store is a BadgerDB-backed persistence collaborator. Safe for
// concurrent use.
type Store struct {
	db     *badger.DB
	cfg    Config
	logger zerolog.Logger
}

// Open opens (or creates) the store.
func Open(cfg Config) (*Store, error) {
	if cfg.GCInterval == 0 {
		cfg.GCInterval = DefaultConfig().GCInterval
	}

	opts := badger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithLogger(nil)
	if cfg.InMemory {
		opts = opts.WithDir("").WithValueDir("")
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", cfg.Path, err)
	}

	return &Store{
		db:     db,
		cfg:    cfg,
		logger: logging.WithComponent("store"),
	}, nil
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RunGC runs Badger value-log garbage collection until ctx is cancelled.
// Intended to run under the supervision tree.
func (s *Store) RunGC(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			// ErrNoRewrite just means nothing needed collecting.
			if err := s.db.RunValueLogGC(0.5); err != nil &&
				!errors.Is(err, badger.ErrNoRewrite) {
				s.logger.Warn().Err(err).Msg("Badger value log GC failed")
			}
		}
	}
}

// threatKey builds the time-ordered primary key for a threat.
func threatKey(ts time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", threatKeyPrefix, ts.UnixNano(), id))
}

// SaveThreat persists one threat under its time-ordered key plus an ID
// index for point lookups.
func (s *Store) SaveThreat(_ context.Context, threat *models.Threat) error {
	data, err := json.Marshal(threat)
	if err != nil {
		return fmt.Errorf("marshal threat: %w", err)
	}

	primary := threatKey(threat.ProcessedAt, threat.ID)

	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(primary, data)
		index := badger.NewEntry([]byte(threatIDKeyPrefix+threat.ID), primary)
		if s.cfg.ThreatTTL > 0 {
			entry = entry.WithTTL(s.cfg.ThreatTTL)
			index = index.WithTTL(s.cfg.ThreatTTL)
		}

		if err := txn.SetEntry(entry); err != nil {
			return fmt.Errorf("set threat: %w", err)
		}
		if err := txn.SetEntry(index); err != nil {
			return fmt.Errorf("set threat index: %w", err)
		}
		return nil
	})
}

// GetThreat retrieves one threat by ID.
func (s *Store) GetThreat(_ context.Context, id string) (*models.Threat, error) {
	var threat models.Threat

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(threatIDKeyPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get threat index: %w", err)
		}

		var primary []byte
		if err := item.Value(func(val []byte) error {
			primary = append(primary, val...)
			return nil
		}); err != nil {
			return err
		}

		item, err = txn.Get(primary)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get threat: %w", err)
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &threat)
		})
	})
	if err != nil {
		return nil, err
	}

	return &threat, nil
}

// RecentThreats returns up to limit threats, newest first, optionally
// filtered by severity.
func (s *Store) RecentThreats(_ context.Context, limit int, severity models.Severity) ([]models.Threat, error) {
	if limit <= 0 {
		limit = 50
	}

	threats := make([]models.Threat, 0, limit)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(threatKeyPrefix)
		// Seek just past the prefix range so the reverse scan starts at
		// the newest key.
		seek := append(append([]byte{}, prefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix) && len(threats) < limit; it.Next() {
			var threat models.Threat
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &threat)
			}); err != nil {
				return err
			}
			if severity != "" && threat.Analysis.Severity != severity {
				continue
			}
			threats = append(threats, threat)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan threats: %w", err)
	}

	return threats, nil
}

// ThreatStats aggregates severity/type counts over stored threats.
func (s *Store) ThreatStats(_ context.Context) (*models.ThreatStatsSummary, error) {
	summary := &models.ThreatStatsSummary{
		BySeverity:   make(map[models.Severity]int64),
		ByThreatType: make(map[models.ThreatType]int64),
	}
	var scoreSum int64

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(threatKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var threat models.Threat
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &threat)
			}); err != nil {
				return err
			}

			summary.Total++
			summary.BySeverity[threat.Analysis.Severity]++
			summary.ByThreatType[threat.Analysis.ThreatType]++
			scoreSum += int64(threat.Score)
			if threat.Score > summary.MaxScore {
				summary.MaxScore = threat.Score
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan threat stats: %w", err)
	}

	if summary.Total > 0 {
		summary.AverageScore = float64(scoreSum) / float64(summary.Total)
	}
	return summary, nil
}

// TopSourceCountries returns the most frequent threat origin countries.
func (s *Store) TopSourceCountries(ctx context.Context, n int) ([]models.CountryCount, error) {
	if n <= 0 {
		n = 5
	}

	type entry struct {
		country string
		count   int64
	}
	counts := make(map[string]*entry)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(threatKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var threat models.Threat
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &threat)
			}); err != nil {
				return err
			}
			e, ok := counts[threat.Geo.CountryCode]
			if !ok {
				e = &entry{country: threat.Geo.Country}
				counts[threat.Geo.CountryCode] = e
			}
			e.count++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan threat origins: %w", err)
	}

	out := make([]models.CountryCount, 0, len(counts))
	for code, e := range counts {
		out = append(out, models.CountryCount{
			CountryCode: code,
			Country:     e.country,
			Count:       e.count,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].CountryCode < out[j].CountryCode
	})
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// SaveAlert persists one alert keyed by ID.
func (s *Store) SaveAlert(_ context.Context, alert *models.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(alertKeyPrefix+alert.ID), data)
	})
}

// GetAlert retrieves one alert by ID.
func (s *Store) GetAlert(_ context.Context, id string) (*models.Alert, error) {
	var alert models.Alert

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(alertKeyPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get alert: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &alert)
		})
	})
	if err != nil {
		return nil, err
	}

	return &alert, nil
}

// ListAlerts returns alerts newest first, optionally only those still
// needing attention.
func (s *Store) ListAlerts(_ context.Context, onlyOpen bool) ([]models.Alert, error) {
	var alerts []models.Alert

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(alertKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var alert models.Alert
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &alert)
			}); err != nil {
				return err
			}
			if onlyOpen && !alert.Status.Open() {
				continue
			}
			alerts = append(alerts, alert)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan alerts: %w", err)
	}

	sort.Slice(alerts, func(i, j int) bool {
		return alerts[i].CreatedAt.After(alerts[j].CreatedAt)
	})
	return alerts, nil
}

// SaveExecution persists one playbook execution record.
func (s *Store) SaveExecution(_ context.Context, exec *models.PlaybookExecution) error {
	data, err := json.Marshal(exec)
	if err != nil {
		return fmt.Errorf("marshal execution: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(executionKeyPrefix+exec.ID), data)
	})
}

// ListExecutions returns playbook executions newest first.
func (s *Store) ListExecutions(_ context.Context) ([]models.PlaybookExecution, error) {
	var execs []models.PlaybookExecution

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(executionKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var exec models.PlaybookExecution
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &exec)
			}); err != nil {
				return err
			}
			execs = append(execs, exec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan executions: %w", err)
	}

	sort.Slice(execs, func(i, j int) bool {
		return execs[i].StartedAt.After(execs[j].StartedAt)
	})
	return execs, nil
}
