package supplychain

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrSystemNotFound   = errors.New("supplychain: product system not found")
	ErrProcessNotFound  = errors.New("supplychain: process not found")
	ErrUnknownProcess   = errors.New("supplychain: link or reference points to a process outside the system")
	ErrUnsafeRemoval    = errors.New("supplychain: removal would cut the supply of the reference process")
	ErrIllegalState     = errors.New("supplychain: illegal command state")
	ErrReferenceProcess = errors.New("supplychain: the reference process cannot be removed")
)

func unknownProcess(id ProcessID) error {
	return fmt.Errorf("%w: %d", ErrUnknownProcess, id)
}

// Store defines the contract for persisting and retrieving product systems.
type Store interface {
	// Schema
	CreateSchema(ctx context.Context) error
	DropSchema(ctx context.Context) error

	// Product systems (bulk operations)
	CreateSystem(ctx context.Context, s *ProductSystem) (*ProductSystem, error)
	GetSystem(ctx context.Context, systemID string) (*ProductSystem, error)
	SaveSystem(ctx context.Context, s *ProductSystem) error
	DeleteSystem(ctx context.Context, systemID string) error

	// Processes
	AddProcess(ctx context.Context, systemID string, id ProcessID) error
	RemoveProcess(ctx context.Context, systemID string, id ProcessID) error
	ListProcesses(ctx context.Context, systemID string) ([]ProcessID, error)

	// Links
	AddLink(ctx context.Context, systemID string, link ProcessLink) error
	RemoveLink(ctx context.Context, systemID string, link ProcessLink) error
	ListLinks(ctx context.Context, systemID string) ([]ProcessLink, error)
}
