package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vlaradar/vlaradar/internal/logging"
	"github.com/vlaradar/vlaradar/internal/models"
)

// ErrNotFound is returned when no readable snapshot exists for a run date.
var ErrNotFound = errors.New("snapshot not found")

// Store persists one JSON snapshot file per run date. Records are
// independent: a corrupt file degrades that date to ErrNotFound without
// affecting any other date.
type Store struct {
	dir    string
	logger *logging.Logger
}

// NewStore opens (creating if needed) the snapshot directory. A path that
// cannot be created or written is a configuration error.
func NewStore(dir string, logger *logging.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("snapshot store: empty data dir")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot store: create data dir: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

func (s *Store) path(runDate string) string {
	return filepath.Join(s.dir, runDate+".json")
}

func validRunDate(runDate string) bool {
	_, err := time.Parse(models.RunDateLayout, runDate)
	return err == nil
}

// Save writes a snapshot, replacing any prior snapshot for the same run
// date wholesale. The write is atomic (temp file + rename) so a killed run
// never leaves a half-written record behind.
func (s *Store) Save(ctx context.Context, snap models.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !validRunDate(snap.RunDate) {
		return fmt.Errorf("save snapshot: invalid run date %q", snap.RunDate)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot %s: %w", snap.RunDate, err)
	}

	tmp, err := os.CreateTemp(s.dir, snap.RunDate+".*.tmp")
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", snap.RunDate, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("save snapshot %s: %w", snap.RunDate, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save snapshot %s: %w", snap.RunDate, err)
	}
	if err := os.Rename(tmpName, s.path(snap.RunDate)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save snapshot %s: %w", snap.RunDate, err)
	}

	return nil
}

// Load reads the snapshot for one run date. Missing and unreadable records
// both yield ErrNotFound; corruption is logged but isolated to the record.
func (s *Store) Load(ctx context.Context, runDate string) (models.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return models.Snapshot{}, err
	}
	if !validRunDate(runDate) {
		return models.Snapshot{}, ErrNotFound
	}

	data, err := os.ReadFile(s.path(runDate))
	if err != nil {
		if os.IsNotExist(err) {
			return models.Snapshot{}, ErrNotFound
		}
		return models.Snapshot{}, fmt.Errorf("load snapshot %s: %w", runDate, err)
	}

	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.logger.Warn("Skipping corrupt snapshot record", logging.WithFields(map[string]interface{}{
			"runDate": runDate,
			"error":   err.Error(),
		}))
		return models.Snapshot{}, ErrNotFound
	}

	return snap, nil
}

// LoadRange returns the snapshots between two run dates inclusive, in
// ascending date order, skipping dates with no readable record.
func (s *Store) LoadRange(ctx context.Context, from, to string) ([]models.Snapshot, error) {
	dates, err := s.ListDates(ctx)
	if err != nil {
		return nil, err
	}

	snapshots := make([]models.Snapshot, 0, len(dates))
	// ListDates is newest-first; walk it backwards for ascending order.
	for i := len(dates) - 1; i >= 0; i-- {
		d := dates[i]
		if from != "" && d < from {
			continue
		}
		if to != "" && d > to {
			continue
		}

		snap, err := s.Load(ctx, d)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}

	return snapshots, nil
}

// ListDates returns all stored run dates, newest first.
func (s *Store) ListDates(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	dates := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		date := strings.TrimSuffix(name, ".json")
		if !validRunDate(date) {
			continue
		}
		dates = append(dates, date)
	}

	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	return dates, nil
}
