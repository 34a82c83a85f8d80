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
)

// RequestNewConnection implements spec.md section 4.6's outbound
// negotiation: requestNewConnection(circuit, send, protocolInfo, timer).
func (e *Engine) RequestNewConnection(c *circuit.Circuit, serverEndpoint string, send bool, protocolInfo []byte, timer Timer) error {
	e.enter()
	defer e.exit()

	if _, err := e.table.AddRemote(serverEndpoint); err != nil {
		return err
	}

	lock := e.locks.LockFor(serverEndpoint)
	lock.Lock()
	defer lock.Unlock()

	peerRegion, err := e.peerRegion(serverEndpoint)
	if err != nil {
		return err
	}

	if err := e.awaitIdle(peerRegion, e.ownMailbox, timer); err != nil {
		return err
	}

	var protocolSize int
	if len(protocolInfo) > 0 {
		lr, err := e.localResources()
		if err != nil {
			return err
		}
		offset, err := lr.MemoryRegion().Allocate(len(protocolInfo)+1, 4)
		if err != nil {
			return fmt.Errorf("%w: %v", terrors.ErrNoBufferAvailable, err)
		}
		buf, err := lr.MemoryRegion().Map(offset, len(protocolInfo))
		if err != nil {
			return err
		}
		copy(buf, protocolInfo)
		lr.MemoryRegion().Unmap()

		c.SetProtocolInfo(len(protocolInfo), offset)
		protocolSize = len(protocolInfo)
	}

	id := correlationID()
	if e.logger != nil {
		e.logger.Debugf("mailbox[%s]: requesting new connection for circuit %d on %s", id, c.ID(), serverEndpoint)
	}

	payload := NewConnectionPayload{
		CircuitID:       c.ID(),
		BufferSize:      uint32(c.BufferSize()),
		Send:            send,
		ControlEndpoint: e.localEndpoint,
		ProtocolSize:    uint32(protocolSize),
	}
	req := Slot{
		RequestType: ReqNewConnection,
		Payload:     payload.Marshal(),
		Header: Header{
			ReturnOffset:    -1,
			ReturnSize:      0,
			ReturnMailboxID: uint32(e.ownMailbox),
		},
	}

	if err := e.postSlot(serverEndpoint, e.ownMailbox, req); err != nil {
		return err
	}

	if err := e.awaitIdle(peerRegion, e.ownMailbox, timer); err != nil {
		return err
	}

	final, err := e.readSlot(peerRegion, e.ownMailbox)
	if err != nil {
		return err
	}
	if final.Header.ErrorCode != 0 {
		if e.logger != nil {
			e.logger.Warnf("mailbox[%s]: %s rejected circuit %d", id, serverEndpoint, c.ID())
		}
		return terrors.ErrConnectRejected
	}

	c.Finalize(e.localEndpoint)
	return nil
}
