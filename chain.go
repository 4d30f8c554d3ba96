package supplychain

// ChainAnalyzer answers read-only reachability questions over a LinkIndex.
//
// Both predicates keep a set of the processes currently being explored. A
// process met again while it is still on that path counts as "no chain through
// here": closed loops are not considered. Entries are dropped on the way back
// up, so every query starts from a clean state.
type ChainAnalyzer struct {
	index *LinkIndex
}

// NewChainAnalyzer returns an analyzer reading from index.
func NewChainAnalyzer(index *LinkIndex) *ChainAnalyzer {
	return &ChainAnalyzer{index: index}
}

// IsChainingReference reports whether some path from process, walking only
// links of the given side, reaches ref. Self-loops are never walked. A process
// does not chain to itself, so process == ref is false.
func (a *ChainAnalyzer) IsChainingReference(process ProcessID, side Side, ref ProcessID) bool {
	return a.isChaining(process, side, ref, make(map[ProcessID]struct{}))
}

func (a *ChainAnalyzer) isChaining(process ProcessID, side Side, ref ProcessID, exploring map[ProcessID]struct{}) bool {
	if _, ok := exploring[process]; ok {
		return false
	}
	// The reference is only ever explored as the starting node; the loop
	// below stops before stepping onto it.
	if process == ref {
		return false
	}
	exploring[process] = struct{}{}
	defer delete(exploring, process)

	for _, link := range a.index.ChainLinks(process, side) {
		other := side.far(link)
		if other == ref || a.isChaining(other, side, ref, exploring) {
			return true
		}
	}
	return false
}

// IsOnlyChainingReferenceNode reports whether every path leaving process on
// the given side ends at ref, i.e. process serves nothing but the reference.
// A process without links on that side is false: a dead end does not serve
// anything. A process whose only links on that side are self-loops is true.
// process == ref is false.
func (a *ChainAnalyzer) IsOnlyChainingReferenceNode(process ProcessID, side Side, ref ProcessID) bool {
	return a.isOnlyChaining(process, side, ref, make(map[ProcessID]struct{}))
}

func (a *ChainAnalyzer) isOnlyChaining(process ProcessID, side Side, ref ProcessID, exploring map[ProcessID]struct{}) bool {
	if _, ok := exploring[process]; ok {
		return false
	}
	if process == ref {
		return false
	}

	var links []ProcessLink
	if side == Input {
		links = a.index.ConsumerLinks(process)
	} else {
		links = a.index.ProviderLinks(process)
	}
	if len(links) == 0 {
		return false
	}
	exploring[process] = struct{}{}
	defer delete(exploring, process)

	for _, link := range links {
		if link.IsSelfLoop() {
			continue
		}
		other := side.far(link)
		if other != ref && !a.isOnlyChaining(other, side, ref, exploring) {
			return false
		}
	}
	return true
}
