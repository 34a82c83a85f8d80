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

package circuit

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCircuitAssignsMonotonicIDs(t *testing.T) {
	r := NewRegistry(nil)

	c1, err := r.CreateCircuit(nil, ConnectionDescriptor{}, Flags{}, nil)
	require.NoError(t, err)
	c2, err := r.CreateCircuit(nil, ConnectionDescriptor{}, Flags{}, nil)
	require.NoError(t, err)

	assert.NotEqual(t, c1.ID(), c2.ID())
	assert.Equal(t, 2, r.GetCircuitCount())
}

func TestCreateCircuitWithExplicitIDReplacesExisting(t *testing.T) {
	r := NewRegistry(nil)
	id := uint32(42)

	first, err := r.CreateCircuit(&id, ConnectionDescriptor{BufferCount: 1}, Flags{}, nil)
	require.NoError(t, err)
	second, err := r.CreateCircuit(&id, ConnectionDescriptor{BufferCount: 2}, Flags{}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, r.GetCircuitCount())
	assert.NotSame(t, first, second)
	got, ok := r.GetCircuit(id)
	require.True(t, ok)
	assert.Same(t, second, got)
}

func TestCreateCircuitNegotiationFailureLeavesNoCircuit(t *testing.T) {
	r := NewRegistry(nil)
	wantErr := errors.New("peer unreachable")

	_, err := r.CreateCircuit(nil, ConnectionDescriptor{}, Flags{NewConnection: true}, func(c *Circuit) error {
		return wantErr
	})

	require.ErrorIs(t, err, wantErr)
	assert.Equal(t, 0, r.GetCircuitCount())
}

func TestDeleteCircuitPurgesWhenEmpty(t *testing.T) {
	purged := false
	r := NewRegistry(func() { purged = true })

	c, err := r.CreateCircuit(nil, ConnectionDescriptor{}, Flags{}, nil)
	require.NoError(t, err)

	require.NoError(t, r.DeleteCircuit(c.ID()))
	assert.True(t, purged)
	assert.Equal(t, 0, r.GetCircuitCount())
}

func TestDeleteCircuitUnknownIDFails(t *testing.T) {
	r := NewRegistry(nil)
	assert.Error(t, r.DeleteCircuit(999))
}
