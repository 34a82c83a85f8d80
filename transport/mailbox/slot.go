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

// Package mailbox implements the Mailbox Protocol Engine (spec.md section
// 4.6): the request/response state machine that negotiates new circuits and
// exchanges port offsets over fixed-size mailbox slots.
package mailbox

import (
	"encoding/binary"
	"fmt"
)

// RequestType tags a mailbox slot's payload (spec.md section 6).
type RequestType uint32

// Request type tags, assigned dense small integers (spec.md section 6).
const (
	NoRequest RequestType = iota
	ReqNewConnection
	ReqUpdateCircuit
	ReqOutputControlOffset
	ReqShadowRstateOffset
	ReqInputOffsets
)

func (t RequestType) String() string {
	switch t {
	case NoRequest:
		return "NoRequest"
	case ReqNewConnection:
		return "ReqNewConnection"
	case ReqUpdateCircuit:
		return "ReqUpdateCircuit"
	case ReqOutputControlOffset:
		return "ReqOutputControlOffset"
	case ReqShadowRstateOffset:
		return "ReqShadowRstateOffset"
	case ReqInputOffsets:
		return "ReqInputOffsets"
	default:
		return fmt.Sprintf("RequestType(%d)", uint32(t))
	}
}

const (
	// upAndRunningMagic identifies a region a controller has initialised,
	// distinguishing it from freshly-mapped (zeroed) memory
	// (SPEC_FULL.md section 9, supplemented from the original's
	// up-and-running marker).
	upAndRunningMagic = 0x0c91a0ad

	// UpAndRunningSize is the width in bytes of the marker at the head of a
	// mailbox region.
	UpAndRunningSize = 8

	endpointFieldSize = 128
	payloadAreaSize   = 160
	tagSize           = 4

	// trailerSize is returnOffset(int64) + returnSize(uint32) +
	// returnMailboxID(uint32) + errorCode(int32), in that order.
	trailerSize = 8 + 4 + 4 + 4

	// SlotSize is the fixed byte width of every mailbox slot (spec.md
	// section 6): tag, payload union, trailer.
	SlotSize = tagSize + payloadAreaSize + trailerSize

	// RequestSize is the tag-plus-payload prefix of a slot: the portion a
	// "clear" zeroes (spec.md section 4.4, "the zeroed tail... then the
	// zeroed header"). The trailer (return_offset/return_size/
	// returnMailboxId/error_code) is left untouched by a clear — it is how
	// a requester reads error_code after observing the tag go idle.
	RequestSize = tagSize + payloadAreaSize

	trailerReturnOffsetOff  = 0
	trailerReturnSizeOff    = 8
	trailerReturnMailboxOff = 12
	trailerErrorCodeOff     = 16
)

// UpAndRunning is the marker at the head of a local mailbox region.
type UpAndRunning struct {
	Generation uint32
}

// EncodeUpAndRunning renders u to its wire form.
func EncodeUpAndRunning(u UpAndRunning) []byte {
	buf := make([]byte, UpAndRunningSize)
	binary.LittleEndian.PutUint32(buf[0:4], upAndRunningMagic)
	binary.LittleEndian.PutUint32(buf[4:8], u.Generation)
	return buf
}

// DecodeUpAndRunning reports whether buf begins with a valid marker.
func DecodeUpAndRunning(buf []byte) (UpAndRunning, bool) {
	if len(buf) < UpAndRunningSize {
		return UpAndRunning{}, false
	}
	if binary.LittleEndian.Uint32(buf[0:4]) != upAndRunningMagic {
		return UpAndRunning{}, false
	}
	return UpAndRunning{Generation: binary.LittleEndian.Uint32(buf[4:8])}, true
}

// Header is the trailer common to every slot (spec.md section 6).
type Header struct {
	ReturnOffset    int64 // -1 means no reply expected
	ReturnSize      uint32
	ReturnMailboxID uint32
	ErrorCode       int32
}

// Slot is the in-memory representation of one mailbox slot.
type Slot struct {
	RequestType RequestType
	Payload     []byte // exactly payloadAreaSize bytes, interpreted per RequestType
	Header      Header
}

// EncodeHeader renders h to its fixed-size trailer form.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, trailerSize)
	binary.LittleEndian.PutUint64(buf[trailerReturnOffsetOff:trailerReturnOffsetOff+8], uint64(h.ReturnOffset))
	binary.LittleEndian.PutUint32(buf[trailerReturnSizeOff:trailerReturnSizeOff+4], h.ReturnSize)
	binary.LittleEndian.PutUint32(buf[trailerReturnMailboxOff:trailerReturnMailboxOff+4], h.ReturnMailboxID)
	binary.LittleEndian.PutUint32(buf[trailerErrorCodeOff:trailerErrorCodeOff+4], uint32(h.ErrorCode))
	return buf
}

// DecodeHeader parses a trailerSize-byte trailer buffer.
func DecodeHeader(buf []byte) Header {
	return Header{
		ReturnOffset:    int64(binary.LittleEndian.Uint64(buf[trailerReturnOffsetOff : trailerReturnOffsetOff+8])),
		ReturnSize:      binary.LittleEndian.Uint32(buf[trailerReturnSizeOff : trailerReturnSizeOff+4]),
		ReturnMailboxID: binary.LittleEndian.Uint32(buf[trailerReturnMailboxOff : trailerReturnMailboxOff+4]),
		ErrorCode:       int32(binary.LittleEndian.Uint32(buf[trailerErrorCodeOff : trailerErrorCodeOff+4])),
	}
}

// Encode renders a Slot to its fixed-size wire form.
func (s Slot) Encode() []byte {
	buf := make([]byte, SlotSize)
	binary.LittleEndian.PutUint32(buf[0:tagSize], uint32(s.RequestType))
	copy(buf[tagSize:RequestSize], s.Payload)
	copy(buf[RequestSize:SlotSize], EncodeHeader(s.Header))
	return buf
}

// DecodeSlot parses a fixed-size slot buffer.
func DecodeSlot(buf []byte) (Slot, error) {
	if len(buf) != SlotSize {
		return Slot{}, fmt.Errorf("mailbox: slot buffer is %d bytes, want %d", len(buf), SlotSize)
	}

	return Slot{
		RequestType: RequestType(binary.LittleEndian.Uint32(buf[0:tagSize])),
		Payload:     append([]byte(nil), buf[tagSize:RequestSize]...),
		Header:      DecodeHeader(buf[RequestSize:SlotSize]),
	}, nil
}

func putString(buf []byte, s string) {
	n := copy(buf, s)
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
}

func getString(buf []byte) string {
	n := 0
	for n < len(buf) && buf[n] != 0 {
		n++
	}
	return string(buf[:n])
}

// NewConnectionPayload is the ReqNewConnection request union (spec.md
// section 4.6, step 5).
type NewConnectionPayload struct {
	CircuitID       uint32
	BufferSize      uint32
	Send            bool
	ControlEndpoint string
	ProtocolSize    uint32
}

// Marshal renders p into a payloadAreaSize-wide buffer.
func (p NewConnectionPayload) Marshal() []byte {
	buf := make([]byte, payloadAreaSize)
	binary.LittleEndian.PutUint32(buf[0:4], p.CircuitID)
	binary.LittleEndian.PutUint32(buf[4:8], p.BufferSize)
	if p.Send {
		buf[8] = 1
	}
	binary.LittleEndian.PutUint32(buf[9:13], p.ProtocolSize)
	putString(buf[13:13+endpointFieldSize], p.ControlEndpoint)
	return buf
}

// UnmarshalNewConnectionPayload parses a payload previously built by Marshal.
func UnmarshalNewConnectionPayload(buf []byte) NewConnectionPayload {
	return NewConnectionPayload{
		CircuitID:       binary.LittleEndian.Uint32(buf[0:4]),
		BufferSize:      binary.LittleEndian.Uint32(buf[4:8]),
		Send:            buf[8] != 0,
		ProtocolSize:    binary.LittleEndian.Uint32(buf[9:13]),
		ControlEndpoint: getString(buf[13 : 13+endpointFieldSize]),
	}
}

// UpdateCircuitPayload is the ReqUpdateCircuit request union.
type UpdateCircuitPayload struct {
	CircuitID uint32
	Data      []byte
}

func (p UpdateCircuitPayload) Marshal() []byte {
	buf := make([]byte, payloadAreaSize)
	binary.LittleEndian.PutUint32(buf[0:4], p.CircuitID)
	dataCap := payloadAreaSize - 8
	n := len(p.Data)
	if n > dataCap {
		n = dataCap
	}
	binary.LittleEndian.PutUint32(buf[4:8], uint32(n))
	copy(buf[8:8+n], p.Data[:n])
	return buf
}

func UnmarshalUpdateCircuitPayload(buf []byte) UpdateCircuitPayload {
	n := binary.LittleEndian.Uint32(buf[4:8])
	return UpdateCircuitPayload{
		CircuitID: binary.LittleEndian.Uint32(buf[0:4]),
		Data:      append([]byte(nil), buf[8:8+n]...),
	}
}

// OutputControlOffsetPayload is the ReqOutputControlOffset request union.
type OutputControlOffsetPayload struct {
	CircuitID      uint32
	ProtocolOffset uint64
	ShadowEndpoint string
}

func (p OutputControlOffsetPayload) Marshal() []byte {
	buf := make([]byte, payloadAreaSize)
	binary.LittleEndian.PutUint32(buf[0:4], p.CircuitID)
	binary.LittleEndian.PutUint64(buf[4:12], p.ProtocolOffset)
	putString(buf[12:12+endpointFieldSize], p.ShadowEndpoint)
	return buf
}

func UnmarshalOutputControlOffsetPayload(buf []byte) OutputControlOffsetPayload {
	return OutputControlOffsetPayload{
		CircuitID:      binary.LittleEndian.Uint32(buf[0:4]),
		ProtocolOffset: binary.LittleEndian.Uint64(buf[4:12]),
		ShadowEndpoint: getString(buf[12 : 12+endpointFieldSize]),
	}
}

// ShadowEndpointPayload backs both ReqShadowRstateOffset and
// ReqInputOffsets, which share the same union shape (spec.md section 4.6).
type ShadowEndpointPayload struct {
	CircuitID      uint32
	ShadowEndpoint string
}

func (p ShadowEndpointPayload) Marshal() []byte {
	buf := make([]byte, payloadAreaSize)
	binary.LittleEndian.PutUint32(buf[0:4], p.CircuitID)
	putString(buf[4:4+endpointFieldSize], p.ShadowEndpoint)
	return buf
}

func UnmarshalShadowEndpointPayload(buf []byte) ShadowEndpointPayload {
	return ShadowEndpointPayload{
		CircuitID:      binary.LittleEndian.Uint32(buf[0:4]),
		ShadowEndpoint: getString(buf[4 : 4+endpointFieldSize]),
	}
}
