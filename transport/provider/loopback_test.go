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

package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRegionAllocateAlignsAndTracksUsed(t *testing.T) {
	r := NewMemoryRegion(64)

	off, err := r.Allocate(10, 8)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), off)

	off2, err := r.Allocate(4, 8)
	require.NoError(t, err)
	assert.Equal(t, uint64(16), off2)
}

func TestMemoryRegionFreeReleasesBackToFreeList(t *testing.T) {
	r := NewMemoryRegion(32)

	off, err := r.Allocate(16, 4)
	require.NoError(t, err)
	require.NoError(t, r.Free(off))

	off2, err := r.Allocate(16, 4)
	require.NoError(t, err)
	assert.Equal(t, off, off2)
}

func TestMemoryRegionFreeUnknownOffsetErrors(t *testing.T) {
	r := NewMemoryRegion(32)
	assert.Error(t, r.Free(999))
}

func TestMemoryRegionAllocateExhaustionErrors(t *testing.T) {
	r := NewMemoryRegion(8)
	_, err := r.Allocate(16, 4)
	assert.Error(t, err)
}

func TestMemoryRegionMapOutOfRangeErrors(t *testing.T) {
	r := NewMemoryRegion(8)
	_, err := r.Map(4, 8)
	assert.Error(t, err)
}

func TestMemoryRegionMapReturnsWritableView(t *testing.T) {
	r := NewMemoryRegion(8)
	buf, err := r.Map(0, 8)
	require.NoError(t, err)
	buf[0] = 0xAB

	buf2, err := r.Map(0, 1)
	require.NoError(t, err)
	assert.Equal(t, byte(0xAB), buf2[0])
}
