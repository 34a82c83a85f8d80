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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotEncodeDecodeRoundTrip(t *testing.T) {
	payload := NewConnectionPayload{
		CircuitID:       7,
		BufferSize:      4096,
		Send:            true,
		ControlEndpoint: "smb:addr;4096.0.16",
		ProtocolSize:    12,
	}
	s := Slot{
		RequestType: ReqNewConnection,
		Payload:     payload.Marshal(),
		Header:      Header{ReturnOffset: -1, ReturnMailboxID: 3},
	}

	decoded, err := DecodeSlot(s.Encode())
	require.NoError(t, err)

	assert.Equal(t, ReqNewConnection, decoded.RequestType)
	assert.Equal(t, int64(-1), decoded.Header.ReturnOffset)
	assert.Equal(t, uint32(3), decoded.Header.ReturnMailboxID)

	got := UnmarshalNewConnectionPayload(decoded.Payload)
	assert.Equal(t, payload, got)
}

func TestClearOnlyZeroesRequestPrefix(t *testing.T) {
	s := Slot{
		RequestType: ReqUpdateCircuit,
		Payload:     UpdateCircuitPayload{CircuitID: 1, Data: []byte("x")}.Marshal(),
		Header:      Header{ErrorCode: -1, ReturnMailboxID: 2},
	}
	buf := s.Encode()

	for i := range buf[:RequestSize] {
		buf[i] = 0
	}

	decoded, err := DecodeSlot(buf)
	require.NoError(t, err)
	assert.Equal(t, NoRequest, decoded.RequestType)
	assert.Equal(t, int32(-1), decoded.Header.ErrorCode, "clearing the request prefix must not disturb the trailer")
}

func TestUpAndRunningMarkerRoundTrip(t *testing.T) {
	u := UpAndRunning{Generation: 9}
	decoded, ok := DecodeUpAndRunning(EncodeUpAndRunning(u))
	require.True(t, ok)
	assert.Equal(t, u, decoded)
}

func TestDecodeUpAndRunningRejectsGarbage(t *testing.T) {
	_, ok := DecodeUpAndRunning(make([]byte, UpAndRunningSize))
	assert.False(t, ok)
}
