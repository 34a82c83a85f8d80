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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParserFillsBoundedDefaults(t *testing.T) {
	c := TransportConfig{}
	parser(&c)

	assert.Equal(t, defaultMaxMailboxCeiling, c.Endpoint.MaxMailboxCeiling)
	assert.Equal(t, DefaultBuiltinProtocol, c.Endpoint.DefaultProtocol)
	assert.Equal(t, int64(defaultRequestTimeoutMillis), c.Mailbox.RequestTimeoutMillis)
	assert.Equal(t, defaultCacheRepostMaxRetries, c.Mailbox.CacheRepostMaxRetries)
}

func TestParserKeepsInBoundsValues(t *testing.T) {
	c := TransportConfig{}
	c.Endpoint.MaxMailboxCeiling = 8
	c.Mailbox.RequestTimeoutMillis = 1000
	parser(&c)

	assert.Equal(t, 8, c.Endpoint.MaxMailboxCeiling)
	assert.Equal(t, int64(1000), c.Mailbox.RequestTimeoutMillis)
}

func TestParserRespectsDefaultProtocolEnvVar(t *testing.T) {
	t.Setenv(DefaultProtocolEnvVar, "ocpi-custom")
	c := TransportConfig{}
	parser(&c)
	assert.Equal(t, "ocpi-custom", c.Endpoint.DefaultProtocol)
}

func TestLoadFromFileOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.json")
	content := `{"Mailbox":{"RequestTimeoutMillis":2500}}`
	assertNoError(t, os.WriteFile(path, []byte(content), 0o644))

	c := LoadFromFile(path)
	assert.Equal(t, int64(2500), c.Mailbox.RequestTimeoutMillis)
	assert.Equal(t, DefaultBuiltinProtocol, c.Endpoint.DefaultProtocol)
}

func TestLoadFromFileMissingFileStillDefaults(t *testing.T) {
	c := LoadFromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Equal(t, defaultMaxMailboxCeiling, c.Endpoint.MaxMailboxCeiling)
}

func assertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}
