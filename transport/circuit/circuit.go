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

// Package circuit implements the Circuit data model and Circuit Registry
// (spec.md sections 3 and 4.5): a negotiated, directed data flow between one
// output port set and one or more input port sets, plus the insertion-
// ordered collection that owns every live circuit in a controller.
package circuit

import (
	"fmt"

	"github.com/opencpi/transport/transport/terrors"
)

// Port is one endpoint-addressed leg of a circuit's port set (spec.md
// section 6, getOutputPort/getInputPortSet).
type Port struct {
	Endpoint    string
	BufferCount int
	BufferSize  int
	// BaseOffset is the offset of this port's first buffer within its
	// owning endpoint's memory region; offset lists sent during mailbox
	// negotiation (spec.md section 4.6) are computed from it.
	BaseOffset uint64
}

// PortSet is a group of ports sharing a distribution discipline (GLOSSARY).
type PortSet struct {
	Ports []Port
}

// ConnectionDescriptor names the endpoints and buffering of a circuit
// (spec.md section 3): one output port set and one or more input port sets.
type ConnectionDescriptor struct {
	Output      PortSet
	Inputs      []PortSet
	BufferCount int
	BufferSize  int
}

// Flags carries the negotiation direction of a new circuit.
type Flags struct {
	// NewConnection requests that createCircuit drive outbound negotiation
	// (spec.md section 4.5) before the circuit is considered live.
	NewConnection bool
	// Send is true for the client (sending) side of a negotiated circuit,
	// mirrored into ReqNewConnection (spec.md section 4.6).
	Send bool
}

// Dataflow is the narrow circuit behaviour the controller and mailbox
// protocol engine invoke without reaching into circuit internals (spec.md
// section 6, "Circuit interface (consumed)").
type Dataflow interface {
	Ready() bool
	CheckQueuedTransfers()
	UpdateInputs(payload []byte) error
}

// Circuit is a negotiated flow owned by a Registry.
type Circuit struct {
	id    uint32
	desc  ConnectionDescriptor
	flags Flags

	controlEndpoint string

	protocolInfoSize   int
	protocolInfoOffset uint64

	dataflow Dataflow
}

// ID returns the circuit's 32-bit identifier.
func (c *Circuit) ID() uint32 { return c.id }

// Finalize stamps the local control endpoint string this circuit was
// negotiated through (spec.md section 6, finalize(endpointString)).
func (c *Circuit) Finalize(endpointString string) { c.controlEndpoint = endpointString }

// ControlEndpoint returns the endpoint string passed to Finalize, if any.
func (c *Circuit) ControlEndpoint() string { return c.controlEndpoint }

// SetDataflow attaches the circuit-internals collaborator (spec.md section
// 1, "Circuit internals... out of scope"); Ready and CheckQueuedTransfers
// are no-ops until one is attached.
func (c *Circuit) SetDataflow(d Dataflow) { c.dataflow = d }

// Ready reports whether this circuit's queued-transfer pump has work.
func (c *Circuit) Ready() bool {
	if c.dataflow == nil {
		return false
	}
	return c.dataflow.Ready()
}

// CheckQueuedTransfers pumps one round of queued transfers.
func (c *Circuit) CheckQueuedTransfers() {
	if c.dataflow != nil {
		c.dataflow.CheckQueuedTransfers()
	}
}

// UpdateInputs applies an inbound ReqUpdateCircuit payload.
func (c *Circuit) UpdateInputs(payload []byte) error {
	if c.dataflow == nil {
		return nil
	}
	return c.dataflow.UpdateInputs(payload)
}

// BufferSize returns the circuit's negotiated data buffer size.
func (c *Circuit) BufferSize() int { return c.desc.BufferSize }

// BufferCount returns the circuit's negotiated data buffer count.
func (c *Circuit) BufferCount() int { return c.desc.BufferCount }

// Flags returns the flags the circuit was created with.
func (c *Circuit) Flags() Flags { return c.flags }

// GetOutputPortSet returns the circuit's single output port set.
func (c *Circuit) GetOutputPortSet() *PortSet { return &c.desc.Output }

// GetOutputPort returns the first port of the output port set.
func (c *Circuit) GetOutputPort() (*Port, error) {
	if len(c.desc.Output.Ports) == 0 {
		return nil, fmt.Errorf("%w: circuit %d has no output port", terrors.ErrInvariantViolation, c.id)
	}
	return &c.desc.Output.Ports[0], nil
}

// GetInputPortSetCount returns the number of input port sets.
func (c *Circuit) GetInputPortSetCount() int { return len(c.desc.Inputs) }

// GetInputPortSet returns the i'th input port set.
func (c *Circuit) GetInputPortSet(i int) (*PortSet, error) {
	if i < 0 || i >= len(c.desc.Inputs) {
		return nil, fmt.Errorf("%w: circuit %d has no input port set %d", terrors.ErrInvariantViolation, c.id, i)
	}
	return &c.desc.Inputs[i], nil
}

// AddPort appends a port to the output port set.
func (c *Circuit) AddPort(p Port) {
	c.desc.Output.Ports = append(c.desc.Output.Ports, p)
}

// AddInputPort appends a port to the setIndex'th input port set, creating
// it (and any intermediate sets) if absent — the controller facade's
// "selecting or creating its single input port set" (spec.md section 4.7).
func (c *Circuit) AddInputPort(setIndex int, p Port) {
	for len(c.desc.Inputs) <= setIndex {
		c.desc.Inputs = append(c.desc.Inputs, PortSet{})
	}
	c.desc.Inputs[setIndex].Ports = append(c.desc.Inputs[setIndex].Ports, p)
}

// UpdatePort replaces the portIndex'th port of the setIndex'th input port
// set, or the output set when setIndex < 0.
func (c *Circuit) UpdatePort(setIndex, portIndex int, p Port) error {
	var set *PortSet
	if setIndex < 0 {
		set = &c.desc.Output
	} else {
		s, err := c.GetInputPortSet(setIndex)
		if err != nil {
			return err
		}
		set = s
	}
	if portIndex < 0 || portIndex >= len(set.Ports) {
		return fmt.Errorf("%w: no port %d in set", terrors.ErrInvariantViolation, portIndex)
	}
	set.Ports[portIndex] = p
	return nil
}

// SetProtocolInfo records the size and offset of the protocol-info blob
// ferried from client to server during negotiation (spec.md section 3).
func (c *Circuit) SetProtocolInfo(size int, offset uint64) {
	c.protocolInfoSize = size
	c.protocolInfoOffset = offset
}

// GetProtocolInfo returns the recorded protocol-info blob size and offset.
func (c *Circuit) GetProtocolInfo() (size int, offset uint64) {
	return c.protocolInfoSize, c.protocolInfoOffset
}
