// Copyright 2016 Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Amazon Software License (the "License"). You may not
// use this file except in compliance with the License. A copy of the
// License is located at
//
// http://aws.amazon.com/asl/
//
// or in the "license" file accompanying this file. This file is distributed
// on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND,
// express or implied. See the License for the specific language governing
// permissions and limitations under the License.

// Package provider declares the interfaces the transport controller
// consumes from components spec.md section 1 explicitly places out of
// scope: the Transfer Provider Registry, per-transport Memory Region
// Services, and the narrow slice of a circuit's own behaviour (readiness
// check, queued-transfer pump, input update) that the controller invokes
// without owning circuit internals.
//
// A real deployment satisfies these with a PIO shared-memory transport or a
// network-mapped-memory transport; this module also ships an in-memory
// reference implementation (loopback.go) so the controller and mailbox
// protocol engine can be exercised end-to-end in tests without either.
package provider

import "context"

// OrderHint is the ordering hint a copy within a TransferRequest carries
// (spec.md section 3): First/Middle/Last bracket a multi-copy transfer so a
// peer never observes a half-written record; None means no ordering is
// required relative to other copies in the same request.
type OrderHint int

const (
	OrderNone OrderHint = iota
	OrderFirst
	OrderMiddle
	OrderLast
)

// MemoryRegion is the per-transport Memory Region Services collaborator:
// map, unmap, and allocate an offset of a given size (spec.md section 1).
type MemoryRegion interface {
	// Allocate reserves size bytes (with optional alignment) and returns
	// their offset within the region.
	Allocate(size int, align int) (offset uint64, err error)

	// Free releases a previously allocated offset.
	Free(offset uint64) error

	// Map returns a byte slice viewing size bytes at offset, valid until
	// the matching Unmap.
	Map(offset uint64, size int) ([]byte, error)

	// Unmap releases the view obtained from the most recent Map.
	Unmap() error
}

// TransferRequest is a provider-produced, descriptor-driven copy operation
// (spec.md section 3 and section 6): built from a TransferTemplate,
// extended with one or more Copy calls, then Posted and polled via Status.
type TransferRequest interface {
	// Copy schedules one memory-to-memory copy within this request.
	Copy(srcOffset, dstOffset uint64, length int, hint OrderHint)

	// Post submits every copy scheduled so far.
	Post() error

	// Status returns 0 once every copy in this request has completed.
	Status() int
}

// TransferTemplate is obtained from a Registry for a fixed (source, dest)
// endpoint pair and manufactures TransferRequests between them (spec.md
// section 3).
type TransferTemplate interface {
	NewTransferRequest() (TransferRequest, error)
}

// Resources is what a remote endpoint owns: an identity plus a lookup
// handle for addressing outbound transfers (spec.md section 3).
type Resources interface {
	Endpoint() string
}

// LocalResources is what a local endpoint additionally owns: a memory
// region and (conceptually) the mailbox area carved out of it (spec.md
// section 3).
type LocalResources interface {
	Resources
	MemoryRegion() MemoryRegion
}

// Factory finalises endpoints for one transport protocol (spec.md section
// 6): assigning a mailbox number and maxMailboxes, or deriving a new
// endpoint compatible with a remote one.
type Factory interface {
	// Protocol is the transport protocol this factory serves.
	Protocol() string

	// GetEndpoint finalises endpointString (assigning mailbox/maxMailboxes
	// where absent) and, if allocate is true, reserves its backing
	// resources immediately.
	GetEndpoint(ctx context.Context, endpointString string, allocate bool) (string, error)

	// NewCompatibleEndpoint derives a fresh local endpoint string that
	// CanSupport(parsed(result), remoteString) (spec.md section 4.1).
	NewCompatibleEndpoint(ctx context.Context, remoteString string) (string, error)
}

// Registry is the Transfer Provider Registry (spec.md section 1 and
// section 6): it enumerates supported transports and, given two endpoints,
// yields transfer services and memory-region allocators.
type Registry interface {
	// ListSupportedEndpoints enumerates endpoint string templates for
	// every registered protocol, one per protocol.
	ListSupportedEndpoints() []string

	// FactoryFor returns the Factory registered for protocol, or
	// terrors.ErrUnsupportedEndpoint.
	FactoryFor(protocol string) (Factory, error)

	// Find returns a TransferTemplate capable of copying from source to
	// dest, or terrors.ErrUnsupportedEndpoint if no provider matches.
	Find(source, dest string) (TransferTemplate, error)

	// CreateSMBResources finalises local backing resources (memory region,
	// mailbox area) for a local endpoint string.
	CreateSMBResources(endpointString string) (LocalResources, error)

	// GetSMBResources returns the resources already registered for a
	// local or remote endpoint string.
	GetSMBResources(endpointString string) (Resources, error)
}

// Dataflow is the narrow slice of circuit behaviour the controller and
// mailbox protocol engine invoke without owning circuit internals (spec.md
// section 1, "Circuit internals... out of scope"; section 6, "Circuit
// interface (consumed)").
type Dataflow interface {
	// Ready reports whether this circuit's queued-transfer pump has work.
	Ready() bool

	// CheckQueuedTransfers pumps one round of queued transfers.
	CheckQueuedTransfers()

	// UpdateInputs applies an inbound ReqUpdateCircuit payload.
	UpdateInputs(payload []byte) error
}
