package supplychain

import "slices"

// ProcessID identifies a process of a product system.
type ProcessID int64

// ProcessLink is a directed edge saying that ProviderID supplies a flow to ProcessID.
// Two links are equal when all fields are equal.
type ProcessLink struct {
	ProviderID ProcessID `json:"provider_id"`
	ProcessID  ProcessID `json:"process_id"`
	FlowID     int64     `json:"flow_id"`
	ExchangeID int64     `json:"exchange_id,omitempty"`
}

// IsSelfLoop reports whether the link provides to its own provider.
// Self-loops are circular accounting within one process and are never chain edges.
func (l ProcessLink) IsSelfLoop() bool {
	return l.ProviderID == l.ProcessID
}

// Side selects which role of a process a traversal looks at.
type Side int

const (
	// Input selects links where the process is the consumer; traversal walks
	// toward providers (the supply chain).
	Input Side = iota
	// Output selects links where the process is the provider; traversal walks
	// toward consumers (the demand chain).
	Output
)

func (s Side) String() string {
	if s == Input {
		return "input"
	}
	return "output"
}

// near returns the endpoint of l that plays the role selected by s.
func (s Side) near(l ProcessLink) ProcessID {
	if s == Input {
		return l.ProcessID
	}
	return l.ProviderID
}

// far returns the opposite endpoint of l.
func (s Side) far(l ProcessLink) ProcessID {
	if s == Input {
		return l.ProviderID
	}
	return l.ProcessID
}

// ProductSystem is the canonical collection of processes and links.
// ReferenceProcess is the protected node whose supply must never be severed.
type ProductSystem struct {
	ID               string        `json:"id"`
	Name             string        `json:"name,omitempty"`
	ReferenceProcess ProcessID     `json:"reference_process"`
	Processes        []ProcessID   `json:"processes"`
	Links            []ProcessLink `json:"links"`
}

// HasProcess reports whether id is a member of the system.
func (s *ProductSystem) HasProcess(id ProcessID) bool {
	return slices.Contains(s.Processes, id)
}

// AddProcess adds id if it is not yet a member.
func (s *ProductSystem) AddProcess(id ProcessID) {
	if !s.HasProcess(id) {
		s.Processes = append(s.Processes, id)
	}
}

// RemoveProcess removes id. Absent ids are ignored.
func (s *ProductSystem) RemoveProcess(id ProcessID) {
	if i := slices.Index(s.Processes, id); i >= 0 {
		s.Processes = slices.Delete(s.Processes, i, i+1)
	}
}

// HasLink reports whether an equal link is a member of the system.
func (s *ProductSystem) HasLink(link ProcessLink) bool {
	return slices.Contains(s.Links, link)
}

// AddLink adds link if no equal link is a member yet.
func (s *ProductSystem) AddLink(link ProcessLink) {
	if !s.HasLink(link) {
		s.Links = append(s.Links, link)
	}
}

// RemoveLink removes link. Absent links are ignored.
func (s *ProductSystem) RemoveLink(link ProcessLink) {
	if i := slices.Index(s.Links, link); i >= 0 {
		s.Links = slices.Delete(s.Links, i, i+1)
	}
}

// Clone returns a deep copy of s.
func (s *ProductSystem) Clone() *ProductSystem {
	c := *s
	c.Processes = slices.Clone(s.Processes)
	c.Links = slices.Clone(s.Links)
	if c.Processes == nil {
		c.Processes = []ProcessID{}
	}
	if c.Links == nil {
		c.Links = []ProcessLink{}
	}
	return &c
}

// Validate checks that the reference process and every link endpoint are
// members of the system.
func (s *ProductSystem) Validate() error {
	members := make(map[ProcessID]struct{}, len(s.Processes))
	for _, p := range s.Processes {
		members[p] = struct{}{}
	}
	if _, ok := members[s.ReferenceProcess]; !ok {
		return unknownProcess(s.ReferenceProcess)
	}
	for _, l := range s.Links {
		if _, ok := members[l.ProviderID]; !ok {
			return unknownProcess(l.ProviderID)
		}
		if _, ok := members[l.ProcessID]; !ok {
			return unknownProcess(l.ProcessID)
		}
	}
	return nil
}
