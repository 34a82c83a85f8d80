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

// Package endpoint implements endpoint string parsing and compatibility
// (spec.md section 4.1): an endpoint string has the form
//
//	<protocol>:<opaque-address>;<size>.<mailbox>.<maxMailboxes>
//
// or, as a wildcard request for a compatible endpoint, just a bare protocol
// name with no colon.
package endpoint

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/opencpi/transport/transport/terrors"
)

// MaxMailboxCeiling is the implementation ceiling on a local endpoint's
// declared maxMailboxes (SPEC_FULL.md section 9, supplemented from the
// original's compile-time OCPI_MAX_MAILBOXES): registering a local endpoint
// whose maxMailboxes is at or above this ceiling fails with
// terrors.ErrEndpointCapacityExceeded.
const MaxMailboxCeiling = 64

// fullPattern matches "<protocol>:<opaque>;<size>.<mailbox>.<maxMailboxes>".
// The opaque address part is protocol-specific and may itself contain ':'
// characters, so it is captured greedily up to the last ';'.
var fullPattern = regexp.MustCompile(`^([^:;]+):(.*);(\d+)\.(\d+)\.(\d+)$`)

// Identity is a finalised endpoint identifier: spec.md section 3.
type Identity struct {
	Protocol     string
	Mailbox      int
	MaxMailboxes int
	Size         uint64
	Opaque       string
	Local        bool
}

// Parse parses a full endpoint string into an Identity. It fails with
// terrors.ErrBadEndpointSyntax if s does not match the grammar in spec.md
// section 6.
func Parse(s string) (Identity, error) {
	m := fullPattern.FindStringSubmatch(s)
	if m == nil {
		return Identity{}, fmt.Errorf("%w: %q", terrors.ErrBadEndpointSyntax, s)
	}

	size, err := strconv.ParseUint(m[3], 10, 64)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: bad size in %q", terrors.ErrBadEndpointSyntax, s)
	}
	mailbox, err := strconv.Atoi(m[4])
	if err != nil {
		return Identity{}, fmt.Errorf("%w: bad mailbox in %q", terrors.ErrBadEndpointSyntax, s)
	}
	maxMailboxes, err := strconv.Atoi(m[5])
	if err != nil {
		return Identity{}, fmt.Errorf("%w: bad maxMailboxes in %q", terrors.ErrBadEndpointSyntax, s)
	}

	return Identity{
		Protocol:     m[1],
		Mailbox:      mailbox,
		MaxMailboxes: maxMailboxes,
		Size:         size,
		Opaque:       m[2],
	}, nil
}

// IsBareProtocol reports whether s names only a protocol (no ':'), the
// wildcard form spec.md section 6 requires the parser to accept.
func IsBareProtocol(s string) bool {
	return s != "" && !strings.Contains(s, ":")
}

// Format renders an Identity back to its canonical string form. For all
// valid endpoint strings s, Format(must(Parse(s))) == s (spec.md section 8,
// "Endpoint parse round-trip").
func (id Identity) Format() string {
	return fmt.Sprintf("%s:%s;%d.%d.%d", id.Protocol, id.Opaque, id.Size, id.Mailbox, id.MaxMailboxes)
}

// CanSupport reports whether local can serve as one end of a circuit whose
// other end is remoteString (spec.md section 4.1 and section 8):
//
//	local.protocol == parsed(remote).protocol &&
//	local.maxMailboxes == parsed(remote).maxMailboxes &&
//	local.mailbox != parsed(remote).mailbox
func CanSupport(local Identity, remoteString string) bool {
	remote, err := Parse(remoteString)
	if err != nil {
		return false
	}
	return local.Protocol == remote.Protocol &&
		local.MaxMailboxes == remote.MaxMailboxes &&
		local.Mailbox != remote.Mailbox
}
