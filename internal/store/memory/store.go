// Package memory is an in-process record store used for local runs and tests.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/helioscope/solar-anomaly/internal/models"
	"github.com/helioscope/solar-anomaly/internal/utils"
)

// Store keeps units, readings and findings in memory. It is safe for
// concurrent use.
type Store struct {
	mu       sync.RWMutex
	units    map[string]models.Unit
	readings map[string][]models.Reading
	findings []models.Finding
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		units:    make(map[string]models.Unit),
		readings: make(map[string][]models.Reading),
	}
}

// PutUnit inserts or replaces a unit.
func (s *Store) PutUnit(u models.Unit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.units[u.ID] = u
}

// AddReadings appends readings, keeping each unit's slice in timestamp order.
func (s *Store) AddReadings(readings ...models.Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	touched := make(map[string]struct{})
	for _, r := range readings {
		s.readings[r.UnitID] = append(s.readings[r.UnitID], r)
		touched[r.UnitID] = struct{}{}
	}
	for id := range touched {
		slices.SortStableFunc(s.readings[id], func(a, b models.Reading) int {
			return a.Timestamp.Compare(b.Timestamp)
		})
	}
}

// FindActiveUnits returns active units ordered by ID.
func (s *Store) FindActiveUnits(ctx context.Context) ([]models.Unit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Unit
	for _, u := range s.units {
		if u.Status == models.UnitActive {
			out = append(out, u)
		}
	}
	slices.SortFunc(out, func(a, b models.Unit) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// FindUnit returns the unit or an error wrapping utils.ErrNotFound.
func (s *Store) FindUnit(ctx context.Context, id string) (models.Unit, error) {
	if err := ctx.Err(); err != nil {
		return models.Unit{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.units[id]
	if !ok {
		return models.Unit{}, utils.NotFoundf("unit %s", id)
	}
	return u, nil
}

// FindReadings returns the unit's readings at or after since, oldest-first.
func (s *Store) FindReadings(ctx context.Context, unitID string, since time.Time) ([]models.Reading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.readings[unitID]
	i, _ := slices.BinarySearchFunc(all, since, func(r models.Reading, t time.Time) int {
		return r.Timestamp.Compare(t)
	})
	return slices.Clone(all[i:]), nil
}

// CountReadings returns the number of stored readings.
func (s *Store) CountReadings(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, rs := range s.readings {
		n += int64(len(rs))
	}
	return n, nil
}

// FindOpenOrAcknowledged looks up an active finding by its dedup key.
func (s *Store) FindOpenOrAcknowledged(ctx context.Context, unitID string, typ models.FindingType, periodStart time.Time) (models.Finding, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.Finding{}, false, err
	}
	key := models.DedupKey{UnitID: unitID, Type: typ, PeriodStart: periodStart.UTC().Round(0)}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.findings {
		if f.Status.Active() && f.Key() == key {
			return f, true, nil
		}
	}
	return models.Finding{}, false, nil
}

// Insert stores a finding and returns it.
func (s *Store) Insert(ctx context.Context, f models.Finding) (models.Finding, error) {
	if err := ctx.Err(); err != nil {
		return models.Finding{}, err
	}
	if f.ID == "" {
		return models.Finding{}, fmt.Errorf("insert finding: id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.findings {
		if existing.ID == f.ID {
			return models.Finding{}, fmt.Errorf("insert finding: duplicate id %s", f.ID)
		}
		if f.Status.Active() && existing.Status.Active() && existing.UnitID == f.UnitID &&
			existing.Type == f.Type && existing.PeriodStart.Equal(f.PeriodStart) {
			return models.Finding{}, fmt.Errorf("insert finding %s: %w", f.ID, utils.ErrConflict)
		}
	}
	f.ReadingIDs = slices.Clone(f.ReadingIDs)
	s.findings = append(s.findings, f)
	return f, nil
}

// UpdateStatus moves a finding through its review lifecycle.
func (s *Store) UpdateStatus(ctx context.Context, id string, status models.FindingStatus, resolution *models.Resolution) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !status.Valid() {
		return utils.NewValidationError("status", status, "unknown status")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.findings {
		if s.findings[i].ID == id {
			s.findings[i].Status = status
			s.findings[i].Resolution = resolution
			return nil
		}
	}
	return utils.NotFoundf("finding %s", id)
}

// Find returns findings matching q, newest detection first.
func (s *Store) Find(ctx context.Context, q models.FindingQuery) ([]models.Finding, error) {
	if err := q.Validate(); err != nil {
		return nil, utils.NewValidationError("query", q, err.Error())
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	var out []models.Finding
	for _, f := range s.findings {
		if q.Matches(f) {
			out = append(out, f)
		}
	}
	s.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b models.Finding) int {
		return b.DetectedAt.Compare(a.DetectedAt)
	})
	if q.Offset >= len(out) {
		return nil, nil
	}
	out = out[q.Offset:]
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// CountByGroup counts findings matching q per value of field. Paging is ignored.
func (s *Store) CountByGroup(ctx context.Context, q models.FindingQuery, field models.GroupField) (map[string]int, error) {
	if !field.Valid() {
		return nil, utils.NewValidationError("group", field, "unknown group field")
	}
	q.Limit, q.Offset = 0, 0
	if err := q.Validate(); err != nil {
		return nil, utils.NewValidationError("query", q, err.Error())
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int)
	for _, f := range s.findings {
		if q.Matches(f) {
			counts[field.Value(f)]++
		}
	}
	return counts, nil
}
