// Package memory implements supplychain.Store in process memory.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/meikuraledutech/supplychain"
)

// MemStore keeps product systems in a map. It is safe for concurrent use.
// Systems are copied on the way in and out.
type MemStore struct {
	mu      sync.RWMutex
	systems map[string]*supplychain.ProductSystem
}

// New returns an empty MemStore.
func New() *MemStore {
	return &MemStore{systems: make(map[string]*supplychain.ProductSystem)}
}

// CreateSchema is a no-op.
func (s *MemStore) CreateSchema(ctx context.Context) error { return nil }

// DropSchema forgets every stored system.
func (s *MemStore) DropSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.systems)
	return nil
}

// CreateSystem stores a full product system, replacing any system with the
// same ID. An empty ID gets a generated UUID.
func (s *MemStore) CreateSystem(ctx context.Context, ps *supplychain.ProductSystem) (*supplychain.ProductSystem, error) {
	if err := ps.Validate(); err != nil {
		return nil, err
	}
	if ps.ID == "" {
		ps.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.systems[ps.ID] = ps.Clone()
	return ps, nil
}

// GetSystem returns nil, nil if no system has the ID.
func (s *MemStore) GetSystem(ctx context.Context, systemID string) (*supplychain.ProductSystem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ps, ok := s.systems[systemID]
	if !ok {
		return nil, nil
	}
	return ps.Clone(), nil
}

// SaveSystem replaces an existing system.
func (s *MemStore) SaveSystem(ctx context.Context, ps *supplychain.ProductSystem) error {
	if err := ps.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.systems[ps.ID]; !ok {
		return supplychain.ErrSystemNotFound
	}
	s.systems[ps.ID] = ps.Clone()
	return nil
}

// DeleteSystem removes a system. No error if it doesn't exist.
func (s *MemStore) DeleteSystem(ctx context.Context, systemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.systems, systemID)
	return nil
}

// AddProcess adds a process to a system.
func (s *MemStore) AddProcess(ctx context.Context, systemID string, id supplychain.ProcessID) error {
	return s.update(systemID, func(ps *supplychain.ProductSystem) error {
		ps.AddProcess(id)
		return nil
	})
}

// RemoveProcess removes a process and every link touching it.
func (s *MemStore) RemoveProcess(ctx context.Context, systemID string, id supplychain.ProcessID) error {
	return s.update(systemID, func(ps *supplychain.ProductSystem) error {
		ps.RemoveProcess(id)
		ps.Links = slices.DeleteFunc(ps.Links, func(l supplychain.ProcessLink) bool {
			return l.ProviderID == id || l.ProcessID == id
		})
		return nil
	})
}

// ListProcesses returns an empty slice (not nil) if the system has none.
func (s *MemStore) ListProcesses(ctx context.Context, systemID string) ([]supplychain.ProcessID, error) {
	ps, err := s.GetSystem(ctx, systemID)
	if err != nil || ps == nil {
		return []supplychain.ProcessID{}, err
	}
	return ps.Processes, nil
}

// AddLink adds a link whose endpoints are members of the system.
func (s *MemStore) AddLink(ctx context.Context, systemID string, link supplychain.ProcessLink) error {
	return s.update(systemID, func(ps *supplychain.ProductSystem) error {
		for _, id := range []supplychain.ProcessID{link.ProviderID, link.ProcessID} {
			if !ps.HasProcess(id) {
				return fmt.Errorf("%w: %d", supplychain.ErrUnknownProcess, id)
			}
		}
		ps.AddLink(link)
		return nil
	})
}

// RemoveLink removes a link. No error if it doesn't exist.
func (s *MemStore) RemoveLink(ctx context.Context, systemID string, link supplychain.ProcessLink) error {
	return s.update(systemID, func(ps *supplychain.ProductSystem) error {
		ps.RemoveLink(link)
		return nil
	})
}

// ListLinks returns an empty slice (not nil) if the system has none.
func (s *MemStore) ListLinks(ctx context.Context, systemID string) ([]supplychain.ProcessLink, error) {
	ps, err := s.GetSystem(ctx, systemID)
	if err != nil || ps == nil {
		return []supplychain.ProcessLink{}, err
	}
	return ps.Links, nil
}

func (s *MemStore) update(systemID string, fn func(*supplychain.ProductSystem) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps, ok := s.systems[systemID]
	if !ok {
		return supplychain.ErrSystemNotFound
	}
	return fn(ps)
}
