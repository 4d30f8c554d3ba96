package supplychain

import (
	"maps"
	"slices"
)

// LinkIndex searches a set of links by provider and consumer process.
//
// Links live in a single growable slot store. Each live slot is registered
// under its provider id and under its consumer id. Removing a link leaves an
// empty slot behind which the next insert reuses, so slot positions held by a
// caller stay valid while the index is mutated.
//
// A LinkIndex is not safe for concurrent use.
type LinkIndex struct {
	slots []slot

	// providers maps a process id to the slots of links it provides to.
	providers map[ProcessID][]int
	// consumers maps a process id to the slots of links it consumes from.
	consumers map[ProcessID][]int

	// position of every live link, for lookup by value.
	position map[ProcessLink]int
	// free holds tombstoned slot positions in ascending order.
	free []int
}

type slot struct {
	link ProcessLink
	live bool
}

// NewLinkIndex builds an index over links. Equal links occupy one slot.
func NewLinkIndex(links []ProcessLink) *LinkIndex {
	idx := &LinkIndex{
		slots:     make([]slot, 0, len(links)),
		providers: make(map[ProcessID][]int),
		consumers: make(map[ProcessID][]int),
		position:  make(map[ProcessLink]int, len(links)),
	}
	for _, l := range links {
		idx.Insert(l)
	}
	return idx
}

// LinksTouching returns every live link where id is the provider or the
// consumer. Each link appears once, self-loops included.
func (x *LinkIndex) LinksTouching(id ProcessID) []ProcessLink {
	return x.LinksTouchingAny(id)
}

// LinksTouchingAny returns the union of LinksTouching over ids.
func (x *LinkIndex) LinksTouchingAny(ids ...ProcessID) []ProcessLink {
	// Collect positions rather than links so that processes with a large
	// fan-out do not materialize duplicates.
	set := make(map[int]struct{})
	for _, id := range ids {
		for _, i := range x.providers[id] {
			set[i] = struct{}{}
		}
		for _, i := range x.consumers[id] {
			set[i] = struct{}{}
		}
	}
	return x.resolve(slices.Sorted(maps.Keys(set)))
}

// ConsumerLinks returns the links where id is on the consumer side.
func (x *LinkIndex) ConsumerLinks(id ProcessID) []ProcessLink {
	return x.resolve(x.consumers[id])
}

// ProviderLinks returns the links where id is on the provider side.
func (x *LinkIndex) ProviderLinks(id ProcessID) []ProcessLink {
	return x.resolve(x.providers[id])
}

// ChainLinks returns the links of id on the given side without self-loops.
// Chain traversal only ever walks these.
func (x *LinkIndex) ChainLinks(id ProcessID, side Side) []ProcessLink {
	var links []ProcessLink
	if side == Input {
		links = x.ConsumerLinks(id)
	} else {
		links = x.ProviderLinks(id)
	}
	return slices.DeleteFunc(links, ProcessLink.IsSelfLoop)
}

func (x *LinkIndex) resolve(positions []int) []ProcessLink {
	links := make([]ProcessLink, 0, len(positions))
	for _, i := range positions {
		if s := x.slots[i]; s.live {
			links = append(links, s.link)
		}
	}
	return links
}

// Insert adds link and returns its slot. An equal link already in the index
// is re-registered in its own slot; otherwise the lowest free slot is taken,
// or the store grows by one.
func (x *LinkIndex) Insert(link ProcessLink) int {
	i, ok := x.unlink(link)
	if !ok {
		i = x.takeFree()
	}
	if i == len(x.slots) {
		x.slots = append(x.slots, slot{})
	}
	x.slots[i] = slot{link: link, live: true}
	x.position[link] = i
	register(x.providers, link.ProviderID, i)
	register(x.consumers, link.ProcessID, i)
	return i
}

// takeFree pops the lowest tombstoned slot, or returns len(slots).
func (x *LinkIndex) takeFree() int {
	if len(x.free) == 0 {
		return len(x.slots)
	}
	i := x.free[0]
	x.free = x.free[1:]
	return i
}

// Remove tombstones the slot of link and reports the freed slot. It returns
// false when no equal link is in the index.
func (x *LinkIndex) Remove(link ProcessLink) (int, bool) {
	i, ok := x.unlink(link)
	if !ok {
		return -1, false
	}
	at, _ := slices.BinarySearch(x.free, i)
	x.free = slices.Insert(x.free, at, i)
	return i, true
}

// unlink empties the slot of link without releasing it.
func (x *LinkIndex) unlink(link ProcessLink) (int, bool) {
	i, ok := x.position[link]
	if !ok {
		return -1, false
	}
	delete(x.position, link)
	x.slots[i] = slot{}
	unregister(x.providers, link.ProviderID, i)
	unregister(x.consumers, link.ProcessID, i)
	return i, true
}

// RemoveAll removes each of links.
func (x *LinkIndex) RemoveAll(links []ProcessLink) {
	for _, l := range links {
		x.Remove(l)
	}
}

// Has reports whether an equal link is live in the index.
func (x *LinkIndex) Has(link ProcessLink) bool {
	_, ok := x.position[link]
	return ok
}

// Contains reports whether any live link touches id.
func (x *LinkIndex) Contains(id ProcessID) bool {
	return len(x.providers[id]) > 0 || len(x.consumers[id]) > 0
}

// Links returns all live links in slot order.
func (x *LinkIndex) Links() []ProcessLink {
	links := make([]ProcessLink, 0, len(x.position))
	for _, s := range x.slots {
		if s.live {
			links = append(links, s.link)
		}
	}
	return links
}

// Len returns the number of live links.
func (x *LinkIndex) Len() int { return len(x.position) }

// Slots returns the size of the slot store, tombstones included.
func (x *LinkIndex) Slots() int { return len(x.slots) }

func register(m map[ProcessID][]int, id ProcessID, i int) {
	if slices.Contains(m[id], i) {
		return
	}
	m[id] = append(m[id], i)
}

func unregister(m map[ProcessID][]int, id ProcessID, i int) {
	list, ok := m[id]
	if !ok {
		return
	}
	list = slices.DeleteFunc(list, func(v int) bool { return v == i })
	if len(list) == 0 {
		delete(m, id)
		return
	}
	m[id] = list
}
