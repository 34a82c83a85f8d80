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

package endpoint

import (
	"errors"
	"testing"

	"github.com/opencpi/transport/transport/terrors"
	"github.com/stretchr/testify/assert"
)

func TestParseRoundTrip(t *testing.T) {
	cases := []string{
		"smb:addr;4096.0.16",
		"smb:peer;4096.3.16",
		"ocpi-smb-pio:dev/shm/foo;65536.2.8",
		"net:10.0.0.1:9999;1024.0.4",
	}

	for _, s := range cases {
		id, err := Parse(s)
		assert.NoError(t, err)
		assert.Equal(t, s, id.Format())
	}
}

func TestParseBadSyntax(t *testing.T) {
	cases := []string{
		"",
		"no-delimiters-at-all",
		"smb:addr;notanumber.0.16",
		"smb:addr;4096.notanumber.16",
	}

	for _, s := range cases {
		_, err := Parse(s)
		assert.Error(t, err)
		assert.True(t, errors.Is(err, terrors.ErrBadEndpointSyntax))
	}
}

func TestIsBareProtocol(t *testing.T) {
	assert.True(t, IsBareProtocol("ocpi-smb-pio"))
	assert.False(t, IsBareProtocol("smb:addr;4096.0.16"))
	assert.False(t, IsBareProtocol(""))
}

func TestCanSupport(t *testing.T) {
	local := Identity{Protocol: "smb", MaxMailboxes: 16, Mailbox: 0, Local: true}

	assert.True(t, CanSupport(local, "smb:peer;4096.3.16"))
	assert.False(t, CanSupport(local, "smb:peer;4096.0.16"), "same mailbox cannot support itself")
	assert.False(t, CanSupport(local, "other:peer;4096.3.16"), "different protocol")
	assert.False(t, CanSupport(local, "smb:peer;4096.3.8"), "different maxMailboxes")
	assert.False(t, CanSupport(local, "not-a-valid-endpoint"))
}
