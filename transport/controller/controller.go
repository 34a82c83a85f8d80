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

// Package controller implements the Transport Controller facade (spec.md
// section 4.7): the single entry point that wires the Endpoint Table,
// Circuit Registry, Transfer Cache, Mailbox Lock Registry and one Mailbox
// Protocol Engine per local endpoint together under a single lock.
//
// None of Table, circuit.Registry, transfercache.Cache or mailboxlock.
// Registry synchronize themselves (spec.md section 5): this package is
// where that single recursive lock lives. Go's sync.Mutex has no recursion
// support, so rather than hand-roll a reentrant mutex, every method that
// needs to call back into the controller while already holding the lock
// does so through a private *Locked helper that assumes the lock is held;
// only the small set of exported entry points acquire it. mailbox.Engine's
// dispatchHook is wired to dispatchLocked, not Dispatch, for the same
// reason: requestNewConnection's cooperative wait runs while Controller's
// own exported caller already holds the lock.
package controller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opencpi/transport/transport/circuit"
	"github.com/opencpi/transport/transport/config"
	"github.com/opencpi/transport/transport/endpoint"
	"github.com/opencpi/transport/transport/endpointtable"
	"github.com/opencpi/transport/transport/log"
	"github.com/opencpi/transport/transport/mailbox"
	"github.com/opencpi/transport/transport/mailboxlock"
	"github.com/opencpi/transport/transport/provider"
	"github.com/opencpi/transport/transport/terrors"
	"github.com/opencpi/transport/transport/transfercache"
)

// PortParams selects or creates the local endpoint a createInputPort or
// createOutputPort call binds to (spec.md section 4.7).
type PortParams struct {
	// Endpoint, if set, is a full or bare-protocol endpoint string passed
	// straight to the Endpoint Table.
	Endpoint string
	// Protocol, if Endpoint is empty, names a transport protocol to bind a
	// (possibly reused) local endpoint of.
	Protocol string
}

// Controller is the Transport Controller.
type Controller struct {
	mu sync.Mutex

	registry provider.Registry
	table    *endpointtable.Table
	circuits *circuit.Registry
	cache    *transfercache.Cache
	locks    *mailboxlock.Registry
	logger   log.T
	cfg      config.TransportConfig

	engines  map[string]*mailbox.Engine
	listener mailbox.Listener
}

// New constructs a Transport Controller over registry, using defaultProtocol
// as the Endpoint Table's ambient default (spec.md section 4.2) and cfg for
// timeouts and retry bounds (spec.md section 6).
func New(registry provider.Registry, defaultProtocol string, cfg config.TransportConfig, logger log.T) *Controller {
	c := &Controller{
		registry: registry,
		table:    endpointtable.New(registry, defaultProtocol),
		cache:    transfercache.New(registry, cfg.Mailbox.CacheRepostMaxRetries),
		locks:    mailboxlock.New(),
		logger:   logger,
		cfg:      cfg,
		engines:  make(map[string]*mailbox.Engine),
	}
	c.circuits = circuit.NewRegistry(c.cache.Purge)
	return c
}

// SetNewCircuitRequestListener installs the inbound new-circuit callback
// (spec.md section 4.7) on every mailbox engine this controller owns, and on
// any engine it creates afterwards.
func (c *Controller) SetNewCircuitRequestListener(l mailbox.Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listener = l
	for _, e := range c.engines {
		e.SetNewCircuitRequestListener(l)
	}
}

// GetLocalCompatibleEndpoint implements spec.md section 4.7's
// getLocalCompatibleEndpoint: resolve remoteOrProtocol to a finalised local
// endpoint identity, reusing one when the Endpoint Table already has a
// compatible entry.
func (c *Controller) GetLocalCompatibleEndpoint(ctx context.Context, remoteOrProtocol *string) (endpoint.Identity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.table.GetCompatibleEndpoint(ctx, remoteOrProtocol)
}

// CreateInputPort implements spec.md section 4.7's createInputPort: resolve
// a local endpoint for params, then either add an input port to an existing
// circuit or create a new one carrying a single input port set.
func (c *Controller) CreateInputPort(ctx context.Context, existing *circuit.Circuit, desc circuit.ConnectionDescriptor, params PortParams) (*circuit.Circuit, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	local, err := c.resolveLocalLocked(ctx, params)
	if err != nil {
		return nil, err
	}

	port := circuit.Port{Endpoint: local.Endpoint(), BufferCount: desc.BufferCount, BufferSize: desc.BufferSize}

	if existing != nil {
		existing.AddInputPort(0, port)
		return existing, nil
	}

	desc.Inputs = []circuit.PortSet{{Ports: []circuit.Port{port}}}
	return c.circuits.CreateCircuit(nil, desc, circuit.Flags{}, nil)
}

// CreateOutputPort implements spec.md section 4.7's createOutputPort:
// choose or create a local endpoint compatible with inputEndpoint, narrow
// the negotiated buffer size to the smaller of the two sides, build the
// circuit from outDesc, attach the caller's input port, and — since this is
// the sending side of a brand new connection — drive outbound mailbox
// negotiation against inputEndpoint before returning.
func (c *Controller) CreateOutputPort(ctx context.Context, outDesc circuit.ConnectionDescriptor, inputEndpoint string, inputBufferSize int, protocolInfo []byte, timer mailbox.Timer) (*circuit.Circuit, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	local, err := c.table.AddLocal(ctx, &inputEndpoint, false)
	if err != nil {
		return nil, err
	}
	if _, err := c.table.AddRemote(inputEndpoint); err != nil {
		return nil, err
	}

	bufSize := outDesc.BufferSize
	if inputBufferSize > 0 && inputBufferSize < bufSize {
		bufSize = inputBufferSize
	}
	outDesc.BufferSize = bufSize
	outDesc.Output = circuit.PortSet{Ports: []circuit.Port{{
		Endpoint:    local.Endpoint(),
		BufferCount: outDesc.BufferCount,
		BufferSize:  bufSize,
	}}}

	negotiate := c.negotiateLocked(local.Endpoint(), inputEndpoint, true, protocolInfo, timer)
	created, err := c.circuits.CreateCircuit(nil, outDesc, circuit.Flags{NewConnection: true, Send: true}, negotiate)
	if err != nil {
		return nil, err
	}

	created.AddInputPort(0, circuit.Port{Endpoint: inputEndpoint, BufferCount: outDesc.BufferCount, BufferSize: bufSize})
	return created, nil
}

// DeleteCircuit removes a circuit by id (spec.md section 4.7).
func (c *Controller) DeleteCircuit(id uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.circuits.DeleteCircuit(id)
}

// GetCircuit returns the circuit with the given id.
func (c *Controller) GetCircuit(id uint32) (*circuit.Circuit, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.circuits.GetCircuit(id)
}

// GetCircuitCount returns the number of live circuits.
func (c *Controller) GetCircuitCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.circuits.GetCircuitCount()
}

// Dispatch implements spec.md section 4.7's dispatch(): pump every ready
// circuit's queued transfers, then run one mailbox check per local endpoint
// this controller has negotiated or listened through.
func (c *Controller) Dispatch() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dispatchLocked()
}

func (c *Controller) dispatchLocked() error {
	for _, circ := range c.circuits.All() {
		if circ.Ready() {
			circ.CheckQueuedTransfers()
		}
	}
	for endpointString, e := range c.engines {
		if err := e.CheckMailboxes(); err != nil {
			return fmt.Errorf("controller: mailbox check on %q: %w", endpointString, err)
		}
	}
	return nil
}

// resolveLocalLocked picks the local endpoint a port-creation call binds
// to: an explicit endpoint/protocol string from params, or the Endpoint
// Table's ambient default.
func (c *Controller) resolveLocalLocked(ctx context.Context, params PortParams) (provider.LocalResources, error) {
	switch {
	case params.Endpoint != "":
		return c.table.AddLocal(ctx, &params.Endpoint, false)
	case params.Protocol != "":
		return c.table.AddLocalFromProtocol(ctx, params.Protocol)
	default:
		return c.table.AddLocal(ctx, nil, false)
	}
}

// negotiateLocked returns a circuit.Negotiate that drives outbound mailbox
// negotiation for a circuit whose sending side is bound to localEndpoint,
// against serverEndpoint, using this controller's mailbox engine for
// localEndpoint.
func (c *Controller) negotiateLocked(localEndpoint, serverEndpoint string, send bool, protocolInfo []byte, timer mailbox.Timer) circuit.Negotiate {
	return func(circ *circuit.Circuit) error {
		e, err := c.engineForLocked(localEndpoint)
		if err != nil {
			return err
		}
		if timer == nil {
			timer = mailbox.NewDeadline(time.Duration(c.cfg.Mailbox.RequestTimeoutMillis) * time.Millisecond)
		}
		return e.RequestNewConnection(circ, serverEndpoint, send, protocolInfo, timer)
	}
}

// engineForLocked returns the mailbox engine bound to localEndpoint,
// creating it on first use.
func (c *Controller) engineForLocked(localEndpoint string) (*mailbox.Engine, error) {
	if e, ok := c.engines[localEndpoint]; ok {
		return e, nil
	}

	if !c.table.IsLocal(localEndpoint) {
		return nil, fmt.Errorf("%w: %q is not a registered local endpoint", terrors.ErrInvariantViolation, localEndpoint)
	}
	id, err := endpoint.Parse(localEndpoint)
	if err != nil {
		return nil, err
	}

	e, err := mailbox.New(localEndpoint, id.Mailbox, id.MaxMailboxes, c.registry, c.table, c.circuits, c.cache, c.locks, c.logger)
	if err != nil {
		return nil, err
	}
	e.SetNewCircuitRequestListener(c.listener)
	e.SetDispatchHook(func() { _ = c.dispatchLocked() })
	c.engines[localEndpoint] = e
	return e, nil
}

// EnsureMailboxEngine finalises localEndpoint's mailbox engine without
// waiting for an outbound negotiation to need one: the inbound side of a
// connection (spec.md section 4.6's dispatch loop) must be polling before a
// peer's ReqNewConnection can ever be observed.
func (c *Controller) EnsureMailboxEngine(localEndpoint string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.engineForLocked(localEndpoint)
	return err
}
