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

	"github.com/opencpi/transport/transport/circuit"
	"github.com/opencpi/transport/transport/terrors"
	"github.com/opencpi/transport/transport/transfercache"
)

// CheckMailboxes implements spec.md section 4.6's inbound dispatch: iterate
// slots other than our own, and for each pending one, branch on its request
// tag.
func (e *Engine) CheckMailboxes() error {
	e.enter()
	defer e.exit()

	lr, err := e.localResources()
	if err != nil {
		return err
	}
	region := lr.MemoryRegion()
	if !regionUpAndRunning(region) {
		return fmt.Errorf("%w: local mailbox region missing its up-and-running marker", terrors.ErrInvariantViolation)
	}

	for i := 0; i < e.maxMailboxes; i++ {
		if i == e.ownMailbox {
			continue
		}
		slot, err := region.Map(slotOffset(i), SlotSize)
		if err != nil {
			if e.logger != nil {
				e.logger.Warnf("mailbox: map slot %d: %v", i, err)
			}
			continue
		}
		decoded, err := DecodeSlot(slot)
		region.Unmap()
		if err != nil {
			if e.logger != nil {
				e.logger.Warnf("mailbox: decode slot %d: %v", i, err)
			}
			continue
		}
		if decoded.RequestType == NoRequest {
			continue
		}

		if err := e.dispatchOne(i, decoded); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) dispatchOne(slotIndex int, slot Slot) error {
	switch slot.RequestType {
	case ReqUpdateCircuit:
		return e.handleUpdateCircuit(slotIndex, slot)
	case ReqNewConnection:
		return e.handleNewConnection(slotIndex, slot)
	case ReqOutputControlOffset:
		return e.handleOutputControlOffset(slotIndex, slot)
	case ReqShadowRstateOffset:
		return e.handleShadowRstateOffset(slotIndex, slot)
	case ReqInputOffsets:
		return e.handleInputOffsets(slotIndex, slot)
	default:
		if e.logger != nil {
			e.logger.Debugf("mailbox: ignoring request tag %s in slot %d", slot.RequestType, slotIndex)
		}
		return nil
	}
}

func (e *Engine) handleUpdateCircuit(slotIndex int, slot Slot) error {
	p := UnmarshalUpdateCircuitPayload(slot.Payload)

	c, ok := e.circuits.GetCircuit(p.CircuitID)
	if !ok {
		return fmt.Errorf("%w: ReqUpdateCircuit for unknown circuit %d", terrors.ErrInvariantViolation, p.CircuitID)
	}
	if err := c.UpdateInputs(p.Data); err != nil {
		return err
	}
	return e.clearAndAck(slotIndex)
}

// handleNewConnection implements spec.md section 4.6's ReqNewConnection
// row: if no listener is installed the slot is left pending (intentional
// back-pressure, resolving the open question in spec.md section 9 — see
// DESIGN.md). Otherwise a circuit is built from the peer-supplied
// descriptor and announced through the listener.
func (e *Engine) handleNewConnection(slotIndex int, slot Slot) error {
	if e.listener == nil {
		return nil
	}

	p := UnmarshalNewConnectionPayload(slot.Payload)

	fail := func(origErr error) error {
		lr, err := e.localResources()
		if err == nil {
			_ = e.writeErrorCode(lr.MemoryRegion(), slotIndex, -1)
		}
		if err := e.clearAndAck(slotIndex); err != nil {
			return err
		}
		return origErr
	}

	if _, err := e.table.AddRemote(p.ControlEndpoint); err != nil {
		return fail(err)
	}

	desc := circuit.ConnectionDescriptor{BufferCount: 1, BufferSize: int(p.BufferSize)}
	port := circuit.Port{Endpoint: p.ControlEndpoint, BufferSize: int(p.BufferSize), BufferCount: 1}
	if p.Send {
		desc.Inputs = []circuit.PortSet{{Ports: []circuit.Port{port}}}
	} else {
		desc.Output = circuit.PortSet{Ports: []circuit.Port{port}}
	}

	id := p.CircuitID
	c, err := e.circuits.CreateCircuit(&id, desc, circuit.Flags{}, nil)
	if err != nil {
		return fail(err)
	}

	if p.ProtocolSize > 0 {
		lr, err := e.localResources()
		if err != nil {
			return fail(err)
		}
		offset, err := lr.MemoryRegion().Allocate(int(p.ProtocolSize)+1, 4)
		if err != nil {
			return fail(fmt.Errorf("%w: %v", terrors.ErrNoBufferAvailable, err))
		}
		c.SetProtocolInfo(int(p.ProtocolSize), offset)
	}

	if err := e.clearAndAck(slotIndex); err != nil {
		return err
	}
	e.listener(c)
	return nil
}

// handleOutputControlOffset implements spec.md section 4.6's
// ReqOutputControlOffset row.
func (e *Engine) handleOutputControlOffset(slotIndex int, slot Slot) error {
	p := UnmarshalOutputControlOffsetPayload(slot.Payload)

	if _, err := e.table.AddRemote(p.ShadowEndpoint); err != nil {
		return err
	}
	c, ok := e.circuits.GetCircuit(p.CircuitID)
	if !ok {
		return fmt.Errorf("%w: ReqOutputControlOffset for unknown circuit %d", terrors.ErrInvariantViolation, p.CircuitID)
	}

	port, err := c.GetOutputPort()
	if err != nil {
		return err
	}
	offsets := offsetList(*port)

	var extraSize int
	var extraFrom uint64
	if p.ProtocolOffset != 0 {
		extraSize, extraFrom = c.GetProtocolInfo()
	}

	if err := e.cache.SendOffsets(e.localEndpoint, p.ShadowEndpoint, offsets, extraSize, extraFrom, p.ProtocolOffset); err != nil {
		return err
	}

	if extraSize > 0 {
		if lr, lrErr := e.localResources(); lrErr == nil {
			_ = lr.MemoryRegion().Free(extraFrom)
		}
	}

	return e.clearAndAck(slotIndex)
}

// handleShadowRstateOffset implements spec.md section 4.6's
// ReqShadowRstateOffset row: find the port in the circuit's input sets
// (first match across all sets), assemble offsets, sendOffsets, clear.
func (e *Engine) handleShadowRstateOffset(slotIndex int, slot Slot) error {
	p := UnmarshalShadowEndpointPayload(slot.Payload)

	c, ok := e.circuits.GetCircuit(p.CircuitID)
	if !ok {
		return fmt.Errorf("%w: ReqShadowRstateOffset for unknown circuit %d", terrors.ErrInvariantViolation, p.CircuitID)
	}

	port, err := findInputPort(c, p.ShadowEndpoint)
	if err != nil {
		return err
	}

	if err := e.cache.SendOffsets(e.localEndpoint, p.ShadowEndpoint, offsetList(*port), 0, 0, 0); err != nil {
		return err
	}
	return e.clearAndAck(slotIndex)
}

// handleInputOffsets implements spec.md section 4.6's ReqInputOffsets row:
// identical shape to ReqShadowRstateOffset, covering input-specific offsets.
func (e *Engine) handleInputOffsets(slotIndex int, slot Slot) error {
	return e.handleShadowRstateOffset(slotIndex, slot)
}

// findInputPort returns the first port across all of c's input port sets
// whose endpoint matches shadowEndpoint.
func findInputPort(c *circuit.Circuit, shadowEndpoint string) (*circuit.Port, error) {
	for i := 0; i < c.GetInputPortSetCount(); i++ {
		set, err := c.GetInputPortSet(i)
		if err != nil {
			return nil, err
		}
		for pi := range set.Ports {
			if set.Ports[pi].Endpoint == shadowEndpoint {
				return &set.Ports[pi], nil
			}
		}
	}
	return nil, fmt.Errorf("%w: no input port for shadow endpoint %q", terrors.ErrInvariantViolation, shadowEndpoint)
}

// offsetList builds the per-buffer offset pairs sendOffsets broadcasts for
// port: one 32-bit offset per buffer, mirrored at the same offset in the
// peer's region.
func offsetList(port circuit.Port) []transfercache.OffsetPair {
	pairs := make([]transfercache.OffsetPair, 0, port.BufferCount)
	for i := 0; i < port.BufferCount; i++ {
		off := port.BaseOffset + uint64(i)*uint64(port.BufferSize)
		pairs = append(pairs, transfercache.OffsetPair{From: off, To: off})
	}
	return pairs
}
