// Package memory implements the link store in process memory. It follows the same
// optimistic concurrency contract as the PostgreSQL store and is used for local runs
// and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/vadimbarashkov/linkpulse/internal/entity"
)

type LinkRepository struct {
	mu       sync.RWMutex
	nextID   int64
	links    map[string]*entity.ShortLink
	visitors map[int64]map[string]struct{}
}

func NewLinkRepository() *LinkRepository {
	return &LinkRepository{
		links:    make(map[string]*entity.ShortLink),
		visitors: make(map[int64]map[string]struct{}),
	}
}

func (r *LinkRepository) Save(_ context.Context, link *entity.ShortLink) (*entity.ShortLink, error) {
	const op = "adapter.repository.memory.LinkRepository.Save"

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.links[link.Alias]; ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrAliasExists)
	}

	r.nextID++

	stored := link.Clone()
	stored.ID = r.nextID
	stored.Version = 0
	r.links[stored.Alias] = stored

	return stored.Clone(), nil
}

func (r *LinkRepository) RetrieveByAlias(_ context.Context, alias string) (*entity.ShortLink, error) {
	const op = "adapter.repository.memory.LinkRepository.RetrieveByAlias"

	r.mu.RLock()
	defer r.mu.RUnlock()

	link, ok := r.links[alias]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
	}

	return link.Clone(), nil
}

func (r *LinkRepository) AliasExists(_ context.Context, alias string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.links[alias]
	return ok, nil
}

func (r *LinkRepository) ListByOwner(_ context.Context, ownerID string) ([]*entity.ShortLink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	links := make([]*entity.ShortLink, 0)
	for _, link := range r.links {
		if link.OwnedBy(ownerID) {
			links = append(links, link.Clone())
		}
	}

	sort.Slice(links, func(i, j int) bool {
		if links[i].CreatedAt.Equal(links[j].CreatedAt) {
			return links[i].ID > links[j].ID
		}
		return links[i].CreatedAt.After(links[j].CreatedAt)
	})

	return links, nil
}

func (r *LinkRepository) HasVisitor(_ context.Context, linkID int64, ip string) (bool, error) {
	if ip == "" {
		return false, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.visitors[linkID][ip]
	return ok, nil
}

// SaveVisit stores link when its version still matches the stored one and records
// visitorIP in the visitor set. It returns entity.ErrVersionConflict when either the
// link or the visitor set changed since link was loaded.
func (r *LinkRepository) SaveVisit(_ context.Context, link *entity.ShortLink, visitorIP string) error {
	const op = "adapter.repository.memory.LinkRepository.SaveVisit"

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.links[link.Alias]
	if !ok || stored.ID != link.ID {
		return fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
	}

	if stored.Version != link.Version {
		return fmt.Errorf("%s: %w", op, entity.ErrVersionConflict)
	}

	if visitorIP != "" {
		set, ok := r.visitors[link.ID]
		if !ok {
			set = make(map[string]struct{})
			r.visitors[link.ID] = set
		}

		if _, seen := set[visitorIP]; seen {
			return fmt.Errorf("%s: %w", op, entity.ErrVersionConflict)
		}
		set[visitorIP] = struct{}{}
	}

	link.Version++
	r.links[link.Alias] = link.Clone()

	return nil
}
