package supplychain

// Model is the canonical process and link collection a ChainRemover mutates in
// lockstep with the LinkIndex. *ProductSystem implements it.
type Model interface {
	AddProcess(id ProcessID)
	RemoveProcess(id ProcessID)
	AddLink(link ProcessLink)
	RemoveLink(link ProcessLink)
}

// VisualGraph is the rendered view of a product system. Lookups return nil
// when nothing is rendered for the id or link.
type VisualGraph interface {
	Node(id ProcessID) VisualNode
	Edge(link ProcessLink) VisualEdge
	AddChildren(nodes ...VisualNode)
	RemoveChild(node VisualNode)
}

// VisualNode is the rendered counterpart of a process.
type VisualNode interface {
	ProcessID() ProcessID
}

// VisualEdge is the rendered counterpart of a process link.
type VisualEdge interface {
	Link() ProcessLink
	Disconnect()
	Reconnect()
}

// DirtyMarker receives the "unsaved changes" signal.
type DirtyMarker interface {
	SetDirty()
}
