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

package jsonutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalRendersCompactJSON(t *testing.T) {
	out, err := Marshal(map[string]int{"a": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, out)
}

func TestUnmarshalFileReadsAndParses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"n":3}`), 0o644))

	var dest struct{ N int }
	require.NoError(t, UnmarshalFile(path, &dest))
	assert.Equal(t, 3, dest.N)
}

func TestUnmarshalFileMissingFileErrors(t *testing.T) {
	err := UnmarshalFile(filepath.Join(t.TempDir(), "missing.json"), &struct{}{})
	assert.Error(t, err)
}
