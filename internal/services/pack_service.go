package services

import (
	"context"
	"sync"
	"time"

	"EstudaquiPay/internal/db"
)

// PackSource loads the current active packs from the backing store.
type PackSource interface {
	ActivePacks(ctx context.Context) ([]db.Pack, error)
}

// PackService is the read-only pack catalog with an in-memory TTL cache.
// Constructed explicitly so tests can substitute a fake source; there is no
// process-wide instance.
type PackService struct {
	source PackSource
	ttl    time.Duration
	now    func() time.Time

	mu       sync.RWMutex
	cache    []db.Pack
	loadedAt time.Time
}

func NewPackService(source PackSource, ttl time.Duration) *PackService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PackService{source: source, ttl: ttl, now: time.Now}
}

// ActivePacks returns the cached catalog, reloading it when the TTL lapsed.
func (s *PackService) ActivePacks(ctx context.Context) ([]db.Pack, error) {
	s.mu.RLock()
	if s.cache != nil && s.now().Sub(s.loadedAt) < s.ttl {
		packs := s.cache
		s.mu.RUnlock()
		return packs, nil
	}
	s.mu.RUnlock()
	return s.Refresh(ctx)
}

// Refresh reloads the catalog from the source unconditionally.
func (s *PackService) Refresh(ctx context.Context) ([]db.Pack, error) {
	packs, err := s.source.ActivePacks(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.cache = packs
	s.loadedAt = s.now()
	s.mu.Unlock()
	return packs, nil
}

// GetPackInfoByID looks a pack up by its public id. Returns nil when the
// pack does not exist or is not on sale.
func (s *PackService) GetPackInfoByID(ctx context.Context, packID string) (*db.Pack, error) {
	packs, err := s.ActivePacks(ctx)
	if err != nil {
		return nil, err
	}
	for i := range packs {
		if packs[i].PackID == packID {
			return &packs[i], nil
		}
	}
	return nil, nil
}
