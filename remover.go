package supplychain

import (
	"fmt"
	"slices"

	"go.uber.org/zap"
)

type removerState int

const (
	stateCreated removerState = iota
	stateExecuted
	stateUndone
)

func (s removerState) String() string {
	switch s {
	case stateCreated:
		return "created"
	case stateExecuted:
		return "executed"
	default:
		return "undone"
	}
}

// Removal describes what one ChainRemover took out of the product system.
type Removal struct {
	Host      ProcessID     `json:"host"`
	Reference ProcessID     `json:"reference"`
	Processes []ProcessID   `json:"processes"`
	Links     []ProcessLink `json:"links"`
}

// Empty reports whether nothing was removed.
func (r Removal) Empty() bool {
	return len(r.Processes) == 0 && len(r.Links) == 0
}

// RemoverOption configures a ChainRemover.
type RemoverOption func(*ChainRemover)

// WithVisualGraph makes the remover disconnect and reconnect rendered edges
// and nodes alongside the model.
func WithVisualGraph(g VisualGraph) RemoverOption {
	return func(r *ChainRemover) { r.visual = g }
}

// WithDirtyMarker sets the receiver of the unsaved-changes signal.
func WithDirtyMarker(d DirtyMarker) RemoverOption {
	return func(r *ChainRemover) { r.dirty = d }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) RemoverOption {
	return func(r *ChainRemover) { r.log = l }
}

// ChainRemover removes the supply chain feeding a host process through a set
// of seed links, without touching processes the reference process still
// depends on.
//
// A ChainRemover is one-shot: Execute once, then alternate Undo and Redo.
// Every process, link and edge it takes out is recorded, and Undo and Redo
// replay those records rather than searching the graph again. The index and
// the model must not be modified by anyone else while a call is running.
type ChainRemover struct {
	index    *LinkIndex
	analyzer *ChainAnalyzer
	model    Model
	visual   VisualGraph
	dirty    DirtyMarker
	log      *zap.Logger

	host      ProcessID
	reference ProcessID
	seed      []ProcessLink
	state     removerState

	processes  []ProcessID
	processSet map[ProcessID]struct{}
	links      []ProcessLink
	linkSet    map[ProcessLink]struct{}
	nodes      []VisualNode
	edges      []VisualEdge

	// removing guards removeChain against cycles; it is empty between calls.
	removing map[ProcessID]struct{}
}

// NewChainRemover prepares the removal of the chains behind seed, typically
// the input links of host. host must be linked in index.
func NewChainRemover(index *LinkIndex, model Model, host, reference ProcessID, seed []ProcessLink, opts ...RemoverOption) (*ChainRemover, error) {
	if !index.Contains(host) {
		return nil, fmt.Errorf("supplychain: chain remover host %d: %w", host, ErrProcessNotFound)
	}
	r := &ChainRemover{
		index:      index,
		analyzer:   NewChainAnalyzer(index),
		model:      model,
		log:        zap.NewNop(),
		host:       host,
		reference:  reference,
		seed:       slices.Clone(seed),
		processSet: make(map[ProcessID]struct{}),
		linkSet:    make(map[ProcessLink]struct{}),
		removing:   make(map[ProcessID]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// CanExecute is false when the host is the only path by which its inputs
// reach the reference process.
func (r *ChainRemover) CanExecute() bool {
	return !r.analyzer.IsOnlyChainingReferenceNode(r.host, Input, r.reference)
}

// CanUndo is always false: the remover does not support a generic re-diff.
// Undo is only the replay of what Execute recorded.
func (r *ChainRemover) CanUndo() bool {
	return false
}

// Execute computes and applies the removal.
func (r *ChainRemover) Execute() {
	r.expect(stateCreated, "execute")
	for _, link := range r.seed {
		if link.IsSelfLoop() || !r.index.Has(link) || r.isRemoved(link.ProviderID) {
			continue
		}
		// The provider goes with its whole upstream when this link is the
		// only thing it provides to.
		others := slices.DeleteFunc(r.index.ChainLinks(link.ProviderID, Output), func(l ProcessLink) bool {
			return l == link
		})
		if len(others) == 0 && link.ProviderID != r.reference {
			r.removeChain(link.ProviderID, Input)
			r.removeProcess(link.ProviderID)
		}
		r.removeLink(link)
	}
	r.state = stateExecuted
	r.log.Info("removed supply chain",
		zap.Int64("host", int64(r.host)),
		zap.Int64("reference", int64(r.reference)),
		zap.Int("processes", len(r.processes)),
		zap.Int("links", len(r.links)),
	)
	r.markDirty()
}

// Undo puts back everything Execute removed. Processes and nodes come back
// before links and edges so that every edge finds both of its endpoints.
func (r *ChainRemover) Undo() {
	r.expect(stateExecuted, "undo")
	for _, p := range r.processes {
		r.model.AddProcess(p)
	}
	if r.visual != nil && len(r.nodes) > 0 {
		r.visual.AddChildren(r.nodes...)
	}
	for _, e := range r.edges {
		e.Reconnect()
	}
	for _, l := range r.links {
		r.model.AddLink(l)
		r.index.Insert(l)
	}
	r.state = stateUndone
	r.markDirty()
}

// Redo removes the recorded processes, links and edges again.
func (r *ChainRemover) Redo() {
	r.expect(stateUndone, "redo")
	for _, l := range r.links {
		r.model.RemoveLink(l)
		r.index.Remove(l)
	}
	for _, e := range r.edges {
		e.Disconnect()
	}
	for _, p := range r.processes {
		r.model.RemoveProcess(p)
	}
	for _, n := range r.nodes {
		r.visual.RemoveChild(n)
	}
	r.state = stateExecuted
	r.markDirty()
}

// Removal returns a copy of what has been recorded so far. The slices are
// never nil.
func (r *ChainRemover) Removal() Removal {
	return Removal{
		Host:      r.host,
		Reference: r.reference,
		Processes: append([]ProcessID{}, r.processes...),
		Links:     append([]ProcessLink{}, r.links...),
	}
}

func (r *ChainRemover) expect(s removerState, op string) {
	if r.state != s {
		panic(fmt.Errorf("%w: cannot %s a chain removal in state %s", ErrIllegalState, op, r.state))
	}
}

func (r *ChainRemover) isRemoved(id ProcessID) bool {
	_, ok := r.processSet[id]
	return ok
}

func (r *ChainRemover) markDirty() {
	if r.dirty != nil && (len(r.processes) > 0 || len(r.links) > 0) {
		r.dirty.SetDirty()
	}
}

// removeChain walks the given side of process depth first and removes every
// link and process that is not needed by the reference. It never removes the
// host, the reference, or a process that chains to the reference on side.
func (r *ChainRemover) removeChain(process ProcessID, side Side) {
	if _, ok := r.removing[process]; ok {
		return
	}
	r.removing[process] = struct{}{}
	defer delete(r.removing, process)

	for _, link := range r.index.ChainLinks(process, side) {
		// Links removed further down the recursion are stale here.
		if !r.index.Has(link) {
			continue
		}
		other := side.far(link)
		if side.near(link) != process || other == r.host {
			continue
		}
		if r.host != r.reference &&
			(other == r.reference || r.analyzer.IsChainingReference(other, side, r.reference)) {
			continue
		}

		r.removeLink(link)
		r.removeChain(other, Input)
		r.removeChain(other, Output)
		if r.isLinked(other) {
			continue
		}
		r.removeProcess(other)
	}
}

// isLinked reports whether id has a link other than a self-loop.
func (r *ChainRemover) isLinked(id ProcessID) bool {
	return slices.ContainsFunc(r.index.LinksTouching(id), func(l ProcessLink) bool {
		return !l.IsSelfLoop()
	})
}

func (r *ChainRemover) removeLink(link ProcessLink) {
	if _, ok := r.linkSet[link]; ok {
		return
	}
	r.linkSet[link] = struct{}{}
	r.links = append(r.links, link)
	r.model.RemoveLink(link)
	r.index.Remove(link)
	if r.visual != nil {
		if edge := r.visual.Edge(link); edge != nil {
			r.edges = append(r.edges, edge)
			edge.Disconnect()
		}
	}
	r.log.Debug("removed link",
		zap.Int64("provider", int64(link.ProviderID)),
		zap.Int64("process", int64(link.ProcessID)),
		zap.Int64("flow", link.FlowID),
	)
}

// removeProcess takes id out together with every link still touching it,
// such as self-loops or an input from the reference that removeChain kept.
// The reference process is never removed.
func (r *ChainRemover) removeProcess(id ProcessID) {
	if id == r.reference || r.isRemoved(id) {
		return
	}
	for _, l := range r.index.LinksTouching(id) {
		r.removeLink(l)
	}
	r.processSet[id] = struct{}{}
	r.processes = append(r.processes, id)
	r.model.RemoveProcess(id)
	if r.visual != nil {
		if node := r.visual.Node(id); node != nil {
			r.nodes = append(r.nodes, node)
			r.visual.RemoveChild(node)
		}
	}
	r.log.Debug("removed process", zap.Int64("process", int64(id)))
}
