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

// Package terrors defines the error taxonomy the transport controller uses
// to report failures across its public operations. It follows the teacher's
// own idiom of sentinel errors created with errors.New and wrapped with
// fmt.Errorf("...: %w", ...) at the call site, rather than a third-party
// errors package: the teacher never imports github.com/pkg/errors anywhere
// in its own code, so this module doesn't either (see DESIGN.md).
package terrors

import "errors"

// Sentinel errors matching spec.md section 7. Callers should compare with
// errors.Is, since these are frequently wrapped with endpoint/circuit
// context via fmt.Errorf.
var (
	// ErrBadEndpointSyntax is returned when an endpoint string cannot be
	// parsed into (protocol, mailbox, maxMailboxes, size, opaque).
	ErrBadEndpointSyntax = errors.New("transport: malformed endpoint string")

	// ErrUnsupportedEndpoint is returned when no transfer provider matches
	// a requested protocol.
	ErrUnsupportedEndpoint = errors.New("transport: unsupported endpoint protocol")

	// ErrEndpointCapacityExceeded is returned when an endpoint's declared
	// maxMailboxes meets or exceeds the implementation ceiling.
	ErrEndpointCapacityExceeded = errors.New("transport: endpoint capacity exceeded")

	// ErrNoBufferAvailable is returned when a memory region allocator
	// refuses a protocol-info blob allocation.
	ErrNoBufferAvailable = errors.New("transport: no buffer available")

	// ErrServerNotResponding is returned when a mailbox slot does not
	// drain within the supplied timer during outbound negotiation.
	ErrServerNotResponding = errors.New("transport: server not responding")

	// ErrConnectRejected is returned when a server replies to a
	// ReqNewConnection with a non-zero error code.
	ErrConnectRejected = errors.New("transport: connection rejected by server")

	// ErrInvariantViolation marks an internal assertion failure: an
	// inbound request referencing an unknown circuit id, or resources
	// missing for a known endpoint. Treated as fatal by callers.
	ErrInvariantViolation = errors.New("transport: invariant violation")
)
