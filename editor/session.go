// Package editor keeps an open product system, its link index and its
// rendered graph in sync while the system is being edited.
package editor

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/meikuraledutech/supplychain"
	"github.com/meikuraledutech/supplychain/view"
	"go.uber.org/zap"
)

var (
	ErrNothingToUndo = errors.New("editor: nothing to undo")
	ErrNothingToRedo = errors.New("editor: nothing to redo")
)

type dirtyFlag bool

func (d *dirtyFlag) SetDirty() { *d = true }

// Option configures a Session.
type Option func(*Session)

// WithView renders the system into a view.Graph that follows every edit.
func WithView() Option {
	return func(s *Session) { s.graph = view.Build(s.system) }
}

// WithLogger sets the session logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.log = l }
}

// Session is an open product system. Every edit updates the system, the
// link index and the view together. Edits are serialized by a mutex, so a
// Session may be shared between goroutines.
type Session struct {
	mu     sync.Mutex
	system *supplychain.ProductSystem
	index  *supplychain.LinkIndex
	graph  *view.Graph
	stack  CommandStack
	dirty  dirtyFlag
	log    *zap.Logger
}

// Open starts editing a copy of system.
func Open(system *supplychain.ProductSystem, opts ...Option) *Session {
	s := &Session{
		system: system.Clone(),
		log:    zap.NewNop(),
	}
	s.index = supplychain.NewLinkIndex(s.system.Links)
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(zap.String("system", s.system.ID))
	return s
}

// ID returns the id of the edited system.
func (s *Session) ID() string {
	return s.system.ID
}

// System returns a copy of the current state of the system.
func (s *Session) System() *supplychain.ProductSystem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.system.Clone()
}

// Dirty reports whether the system changed since it was opened or saved.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bool(s.dirty)
}

// View returns a copy of the rendered graph, or nil for a headless session.
func (s *Session) View() *view.Graph {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.graph == nil {
		return nil
	}
	return s.graph.Clone()
}

// Links returns every link touching id.
func (s *Session) Links(id supplychain.ProcessID) []supplychain.ProcessLink {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.LinksTouching(id)
}

// LinksOf returns every link touching one of ids.
func (s *Session) LinksOf(ids ...supplychain.ProcessID) []supplychain.ProcessLink {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.LinksTouchingAny(ids...)
}

// ConsumerLinks returns the links through which id receives from providers.
func (s *Session) ConsumerLinks(id supplychain.ProcessID) []supplychain.ProcessLink {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.ConsumerLinks(id)
}

// ProviderLinks returns the links through which id provides to others.
func (s *Session) ProviderLinks(id supplychain.ProcessID) []supplychain.ProcessLink {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.ProviderLinks(id)
}

// HasProcess reports whether id is a process of the system.
func (s *Session) HasProcess(id supplychain.ProcessID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.system.HasProcess(id)
}

// AddProcess adds a process to the system.
func (s *Session) AddProcess(id supplychain.ProcessID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addProcess(id)
	s.edited()
}

func (s *Session) addProcess(id supplychain.ProcessID) {
	s.system.AddProcess(id)
	if s.graph != nil {
		s.graph.AddNode(id)
	}
}

// AddLink adds link, adding its endpoints to the system when needed.
func (s *Session) AddLink(link supplychain.ProcessLink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addProcess(link.ProviderID)
	s.addProcess(link.ProcessID)
	s.system.AddLink(link)
	s.index.Insert(link)
	if s.graph != nil {
		s.graph.Connect(link)
	}
	s.edited()
}

// RemoveLink removes link and reports whether it was part of the system.
func (s *Session) RemoveLink(link supplychain.ProcessLink) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.removeLink(link) {
		return false
	}
	s.edited()
	return true
}

func (s *Session) removeLink(link supplychain.ProcessLink) bool {
	if _, ok := s.index.Remove(link); !ok {
		return false
	}
	s.system.RemoveLink(link)
	if s.graph != nil {
		if e := s.graph.Edge(link); e != nil {
			e.Disconnect()
		}
	}
	return true
}

// RemoveProcess removes a process with every link touching it. The reference
// process cannot be removed.
func (s *Session) RemoveProcess(id supplychain.ProcessID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == s.system.ReferenceProcess {
		return supplychain.ErrReferenceProcess
	}
	if !s.system.HasProcess(id) {
		return fmt.Errorf("editor: remove process %d: %w", id, supplychain.ErrProcessNotFound)
	}
	for _, l := range s.index.LinksTouching(id) {
		s.index.Remove(l)
		s.system.RemoveLink(l)
	}
	s.system.RemoveProcess(id)
	if s.graph != nil {
		s.graph.Disconnect(id)
		if n := s.graph.Node(id); n != nil {
			s.graph.RemoveChild(n)
		}
	}
	s.edited()
	return nil
}

// edited records a change that bypassed the command stack.
func (s *Session) edited() {
	s.stack.Flush()
	s.dirty.SetDirty()
}

// CanRemoveSupplyChain reports whether the supply chain of host may be
// removed without cutting the supply of the reference process.
func (s *Session) CanRemoveSupplyChain(host supplychain.ProcessID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.remover(host, nil)
	if err != nil {
		return false, err
	}
	if r == nil {
		return true, nil
	}
	return r.CanExecute(), nil
}

// RemoveSupplyChain removes the processes and links that only serve host.
// Without seed links every input link of host is cut, self-loops excepted.
func (s *Session) RemoveSupplyChain(host supplychain.ProcessID, seed ...supplychain.ProcessLink) (supplychain.Removal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.remover(host, seed)
	if err != nil {
		return supplychain.Removal{}, err
	}
	if r == nil {
		// host has no links: nothing to remove.
		return supplychain.Removal{
			Host:      host,
			Reference: s.system.ReferenceProcess,
			Processes: []supplychain.ProcessID{},
			Links:     []supplychain.ProcessLink{},
		}, nil
	}
	if !s.stack.Execute(r) {
		s.log.Warn("supply chain removal rejected",
			zap.Int64("host", int64(host)),
			zap.Int64("reference", int64(s.system.ReferenceProcess)),
		)
		return supplychain.Removal{}, supplychain.ErrUnsafeRemoval
	}
	return r.Removal(), nil
}

// remover builds the removal command for host. It returns nil, nil when host
// is a process without links.
func (s *Session) remover(host supplychain.ProcessID, seed []supplychain.ProcessLink) (*supplychain.ChainRemover, error) {
	if !s.system.HasProcess(host) {
		return nil, fmt.Errorf("editor: supply chain of %d: %w", host, supplychain.ErrProcessNotFound)
	}
	if !s.index.Contains(host) {
		return nil, nil
	}
	if len(seed) == 0 {
		seed = slices.DeleteFunc(s.index.ConsumerLinks(host), supplychain.ProcessLink.IsSelfLoop)
	}
	opts := []supplychain.RemoverOption{
		supplychain.WithDirtyMarker(&s.dirty),
		supplychain.WithLogger(s.log),
	}
	if s.graph != nil {
		opts = append(opts, supplychain.WithVisualGraph(s.graph))
	}
	return supplychain.NewChainRemover(s.index, s.system, host, s.system.ReferenceProcess, seed, opts...)
}

// Undo reverts the most recent supply chain removal.
func (s *Session) Undo() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stack.Undo() {
		return ErrNothingToUndo
	}
	return nil
}

// Redo re-applies the most recently undone removal.
func (s *Session) Redo() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stack.Redo() {
		return ErrNothingToRedo
	}
	return nil
}

// Save writes the system to store and clears the dirty flag.
func (s *Session) Save(ctx context.Context, store supplychain.Store) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := store.SaveSystem(ctx, s.system.Clone()); err != nil {
		return fmt.Errorf("editor: save %s: %w", s.system.ID, err)
	}
	s.dirty = false
	s.log.Info("saved product system",
		zap.Int("processes", len(s.system.Processes)),
		zap.Int("links", len(s.system.Links)),
	)
	return nil
}
