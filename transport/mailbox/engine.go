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

package mailbox

import (
	"fmt"
	"sync"
	"time"

	"github.com/twinj/uuid"

	"github.com/opencpi/transport/transport/backoffconfig"
	"github.com/opencpi/transport/transport/circuit"
	"github.com/opencpi/transport/transport/endpointtable"
	"github.com/opencpi/transport/transport/log"
	"github.com/opencpi/transport/transport/mailboxlock"
	"github.com/opencpi/transport/transport/provider"
	"github.com/opencpi/transport/transport/terrors"
	"github.com/opencpi/transport/transport/transfercache"
)

// Listener is the inbound new-circuit announcement callback (spec.md
// section 4.7, setNewCircuitRequestListener). It is invoked after a circuit
// created from a ReqNewConnection has been fully set up.
type Listener func(c *circuit.Circuit)

// Timer drives cooperative cancellation of outbound negotiation (spec.md
// section 5). A nil Timer never expires.
type Timer interface {
	Expired() bool
}

// Deadline is a Timer bound to a wall-clock deadline.
type Deadline struct {
	at time.Time
}

// NewDeadline returns a Timer that expires after d.
func NewDeadline(d time.Duration) *Deadline {
	return &Deadline{at: time.Now().Add(d)}
}

// Expired reports whether the deadline has passed.
func (d *Deadline) Expired() bool { return !time.Now().Before(d.at) }

// Engine is the Mailbox Protocol Engine (spec.md section 4.6). Apart from
// the mutex guarding its nesting counter it owns no lock: spec.md section 5
// places it under the Transport Controller's single recursive lock for
// every call.
type Engine struct {
	localEndpoint string
	ownMailbox    int
	maxMailboxes  int

	registry provider.Registry
	table    *endpointtable.Table
	circuits *circuit.Registry
	cache    *transfercache.Cache
	locks    *mailboxlock.Registry
	logger   log.T

	// outboundOffset is a scratch slot-sized staging area in the local
	// memory region used to build outbound requests before they are
	// transferred into a peer's region.
	outboundOffset uint64
	// zeroOffset is a process-local, never-written zero-filled scratch
	// area: the copy source for every mailbox clear (SPEC_FULL.md section
	// 9, supplemented from the original's static zero-fill buffer).
	zeroOffset uint64

	listener Listener

	// dispatchHook, if set, is invoked once per cooperative poll iteration
	// inside requestNewConnection's wait loops (spec.md section 4.6, step
	// 3 and step 6: "yield cooperatively by running one dispatch tick").
	// The controller wires this to its own dispatchLocked (not Dispatch,
	// whose lock the waiting caller already holds); a hook is used to avoid
	// an import cycle back from this package.
	dispatchHook func()

	nestingMu sync.Mutex
	nesting   int
}

// New constructs a Mailbox Protocol Engine for the local endpoint already
// registered in table at ownMailbox. It reserves the header-and-slots area
// at the head of the endpoint's memory region, stamps it with the
// up-and-running marker so peers can tell it apart from a freshly-mapped
// (zeroed) region (SPEC_FULL.md section 9), then allocates its outbound
// staging and zero-fill scratch areas from the remainder.
func New(localEndpoint string, ownMailbox, maxMailboxes int, registry provider.Registry, table *endpointtable.Table, circuits *circuit.Registry, cache *transfercache.Cache, locks *mailboxlock.Registry, logger log.T) (*Engine, error) {
	e := &Engine{
		localEndpoint: localEndpoint,
		ownMailbox:    ownMailbox,
		maxMailboxes:  maxMailboxes,
		registry:      registry,
		table:         table,
		circuits:      circuits,
		cache:         cache,
		locks:         locks,
		logger:        logger,
	}

	lr, err := e.localResources()
	if err != nil {
		return nil, err
	}
	region := lr.MemoryRegion()

	slotsAreaSize := int(slotOffset(maxMailboxes))
	if _, err := region.Allocate(slotsAreaSize, 1); err != nil {
		return nil, fmt.Errorf("mailbox: reserving header and slots area: %w", err)
	}
	if err := stampUpAndRunning(region); err != nil {
		return nil, err
	}

	outbound, err := region.Allocate(SlotSize, 4)
	if err != nil {
		return nil, err
	}
	zeroArea, err := region.Allocate(SlotSize, 4)
	if err != nil {
		return nil, err
	}
	e.outboundOffset, e.zeroOffset = outbound, zeroArea
	return e, nil
}

// SetNewCircuitRequestListener installs or clears the inbound-negotiation
// callback (spec.md section 4.7).
func (e *Engine) SetNewCircuitRequestListener(l Listener) { e.listener = l }

// SetDispatchHook wires the cooperative-wait dispatch tick.
func (e *Engine) SetDispatchHook(fn func()) { e.dispatchHook = fn }

func slotOffset(index int) uint64 { return uint64(UpAndRunningSize) + uint64(index)*SlotSize }

// stampUpAndRunning writes the up-and-running marker at the head of
// region.
func stampUpAndRunning(region provider.MemoryRegion) error {
	buf, err := region.Map(0, UpAndRunningSize)
	if err != nil {
		return err
	}
	defer region.Unmap()
	copy(buf, EncodeUpAndRunning(UpAndRunning{Generation: 1}))
	return nil
}

// regionUpAndRunning reports whether region's head carries a valid
// up-and-running marker, distinguishing a region some engine has actually
// initialised from a freshly-mapped (zeroed) one. Only the magic word is
// checked; the generation is not compared, so a stale region that still
// carries a marker reads as up.
func regionUpAndRunning(region provider.MemoryRegion) bool {
	buf, err := region.Map(0, UpAndRunningSize)
	if err != nil {
		return false
	}
	defer region.Unmap()
	_, ok := DecodeUpAndRunning(buf)
	return ok
}

func (e *Engine) localResources() (provider.LocalResources, error) {
	res, err := e.table.GetResources(e.localEndpoint)
	if err != nil {
		return nil, err
	}
	lr, ok := res.(provider.LocalResources)
	if !ok {
		return nil, terrors.ErrInvariantViolation
	}
	return lr, nil
}

// peerRegion registers peerEndpoint as remote if unknown and returns its
// memory region. The reference provider models a single shared address
// space, so a peer's region can be read directly for polling; a real PIO or
// network-mapped transport would instead maintain a locally mirrored shadow
// slot updated by the peer's explicit posts — that substitution is a
// Factory-level concern (see DESIGN.md).
func (e *Engine) peerRegion(peerEndpoint string) (provider.MemoryRegion, error) {
	res, err := e.table.AddRemote(peerEndpoint)
	if err != nil {
		return nil, err
	}
	lr, ok := res.(provider.LocalResources)
	if !ok {
		return nil, terrors.ErrInvariantViolation
	}
	return lr.MemoryRegion(), nil
}

func (e *Engine) readSlot(region provider.MemoryRegion, index int) (Slot, error) {
	buf, err := region.Map(slotOffset(index), SlotSize)
	if err != nil {
		return Slot{}, err
	}
	defer region.Unmap()
	return DecodeSlot(buf)
}

func (e *Engine) writeErrorCode(region provider.MemoryRegion, index int, code int32) error {
	buf, err := region.Map(slotOffset(index)+RequestSize, trailerSize)
	if err != nil {
		return err
	}
	defer region.Unmap()
	h := DecodeHeader(buf)
	h.ErrorCode = code
	copy(buf, EncodeHeader(h))
	return nil
}

// clearLocalSlot zeroes the tag and payload of slot index in the local
// mailbox area, leaving its trailer untouched.
func (e *Engine) clearLocalSlot(index int) error {
	lr, err := e.localResources()
	if err != nil {
		return err
	}
	buf, err := lr.MemoryRegion().Map(slotOffset(index), RequestSize)
	if err != nil {
		return err
	}
	defer lr.MemoryRegion().Unmap()
	for i := range buf {
		buf[i] = 0
	}
	return nil
}

// clearAndAck clears our local copy of slotIndex and, if the owning peer is
// known, posts a mailbox clear to its mirrored copy of our own slot.
func (e *Engine) clearAndAck(slotIndex int) error {
	if err := e.clearLocalSlot(slotIndex); err != nil {
		return err
	}

	peerEndpoint, ok := e.table.FindRemoteByMailbox(slotIndex)
	if !ok {
		return nil
	}
	return e.cache.ClearRemoteMailbox(e.localEndpoint, peerEndpoint, e.zeroOffset, slotOffset(e.ownMailbox), RequestSize)
}

// postSlot stages s in our outbound scratch area and transfers it into
// peerEndpoint's region at peerSlotIndex.
func (e *Engine) postSlot(peerEndpoint string, peerSlotIndex int, s Slot) error {
	lr, err := e.localResources()
	if err != nil {
		return err
	}
	buf, err := lr.MemoryRegion().Map(e.outboundOffset, SlotSize)
	if err != nil {
		return err
	}
	copy(buf, s.Encode())
	lr.MemoryRegion().Unmap()

	tmpl, err := e.registry.Find(e.localEndpoint, peerEndpoint)
	if err != nil {
		return err
	}
	req, err := tmpl.NewTransferRequest()
	if err != nil {
		return err
	}
	req.Copy(e.outboundOffset, slotOffset(peerSlotIndex), SlotSize, provider.OrderNone)
	return req.Post()
}

// awaitIdle polls region's slot index until its tag reads NoRequest,
// yielding cooperatively (one dispatch tick, bounded backoff sleep) between
// attempts, until timer expires.
func (e *Engine) awaitIdle(region provider.MemoryRegion, index int, timer Timer) error {
	b := backoffconfig.PollBackoff()
	for {
		if !regionUpAndRunning(region) {
			// Peer hasn't constructed its engine yet: its region reads as
			// zeroed, not idle (SPEC_FULL.md section 9). Keep waiting
			// rather than mistaking that for a drained slot.
			if timer != nil && timer.Expired() {
				return terrors.ErrServerNotResponding
			}
			if e.dispatchHook != nil {
				e.dispatchHook()
			}
			time.Sleep(b.NextBackOff())
			continue
		}

		s, err := e.readSlot(region, index)
		if err != nil {
			return err
		}
		if s.RequestType == NoRequest {
			return nil
		}
		if timer != nil && timer.Expired() {
			return terrors.ErrServerNotResponding
		}
		if e.dispatchHook != nil {
			e.dispatchHook()
		}
		time.Sleep(b.NextBackOff())
	}
}

// enter/exit maintain the re-entrancy nesting counter (spec.md section
// 4.6): nested dispatches are permitted but logged. The counter belongs to
// this Engine; nesting across different engines is not counted.
func (e *Engine) enter() {
	e.nestingMu.Lock()
	e.nesting++
	n := e.nesting
	e.nestingMu.Unlock()
	if n > 1 && e.logger != nil {
		e.logger.Debugf("mailbox: re-entrant dispatch, depth=%d", n)
	}
}

func (e *Engine) exit() {
	e.nestingMu.Lock()
	e.nesting--
	e.nestingMu.Unlock()
}

func correlationID() string {
	return uuid.NewV4().String()
}
