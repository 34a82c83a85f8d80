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

// Package config manages the configuration of the transport controller, the
// way agent/appconfig manages the SSM agent's configuration: a struct of
// bounded values defaulted by parser(), loadable from JSON, overridable by
// environment variables for the handful of keys spec.md section 6 names as
// externally consumed configuration.
package config

import (
	"os"
	"sync"

	"github.com/opencpi/transport/transport/jsonutil"
)

// DefaultProtocolEnvVar is the ambient override named in spec.md section 6.
const DefaultProtocolEnvVar = "OCPI_DEFAULT_PROTOCOL"

// DefaultBuiltinProtocol is the protocol getLocalCompatibleEndpoint(nil)
// tries first when OCPI_DEFAULT_PROTOCOL is unset; if no provider serves
// it, the protocol of the first enumerated supported endpoint is used
// instead (spec.md section 4.2, section 8 scenario 2).
const DefaultBuiltinProtocol = "ocpi-smb-pio"

// TransportConfig stores transport controller configuration values.
type TransportConfig struct {
	Endpoint struct {
		// MaxMailboxCeiling mirrors endpoint.MaxMailboxCeiling. The
		// Endpoint Table enforces the endpoint constant, not this field:
		// a maxMailboxes at or above that constant is
		// EndpointCapacityExceeded.
		MaxMailboxCeiling int
		// DefaultProtocol is the protocol getLocalCompatibleEndpoint(nil)
		// tries first when transportctl is started without -protocol. A
		// non-empty OCPI_DEFAULT_PROTOCOL environment variable overrides
		// the configured value.
		DefaultProtocol string
	}
	Mailbox struct {
		// RequestTimeoutMillis bounds how long requestNewConnection
		// waits for a slot to drain absent a caller-supplied timer.
		RequestTimeoutMillis int64
		// CacheRepostMaxRetries bounds the transfer cache's
		// poll-until-zero wait before reposting a cached transfer.
		CacheRepostMaxRetries int
	}
}

const (
	defaultMaxMailboxCeiling        = 64
	defaultRequestTimeoutMillis     = 5000
	defaultRequestTimeoutMillisMin  = 1
	defaultRequestTimeoutMillisMax  = 300000
	defaultCacheRepostMaxRetries    = 200
	defaultCacheRepostMaxRetriesMin = 1
	defaultCacheRepostMaxRetriesMax = 100000
)

var loadedConfig *TransportConfig
var lock sync.RWMutex

// Default returns the process-wide default configuration, loading it once
// and caching it the way appconfig.GetConfig caches its T.
func Default() TransportConfig {
	lock.RLock()
	if loadedConfig != nil {
		defer lock.RUnlock()
		return *loadedConfig
	}
	lock.RUnlock()

	lock.Lock()
	defer lock.Unlock()
	if loadedConfig == nil {
		c := TransportConfig{}
		parser(&c)
		loadedConfig = &c
	}
	return *loadedConfig
}

// LoadFromFile overlays a JSON configuration file onto the defaults, the
// way appconfig.GetConfig overlays appconfig.json. Missing or malformed
// files are not an error: the defaults still apply.
func LoadFromFile(path string) TransportConfig {
	c := TransportConfig{}
	_ = jsonutil.UnmarshalFile(path, &c)
	parser(&c)

	lock.Lock()
	defer lock.Unlock()
	loadedConfig = &c
	return *loadedConfig
}

// parser fills in zero-valued fields with bounded defaults, mirroring
// agent/appconfig's own parser().
func parser(c *TransportConfig) {
	c.Endpoint.MaxMailboxCeiling = getNumericValue(c.Endpoint.MaxMailboxCeiling, 1, 1<<20, defaultMaxMailboxCeiling)
	c.Endpoint.DefaultProtocol = getStringValue(c.Endpoint.DefaultProtocol, DefaultBuiltinProtocol)
	if fromEnv := os.Getenv(DefaultProtocolEnvVar); fromEnv != "" {
		c.Endpoint.DefaultProtocol = fromEnv
	}

	c.Mailbox.RequestTimeoutMillis = getNumericValue64(
		c.Mailbox.RequestTimeoutMillis,
		defaultRequestTimeoutMillisMin,
		defaultRequestTimeoutMillisMax,
		defaultRequestTimeoutMillis,
	)
	c.Mailbox.CacheRepostMaxRetries = getNumericValue(
		c.Mailbox.CacheRepostMaxRetries,
		defaultCacheRepostMaxRetriesMin,
		defaultCacheRepostMaxRetriesMax,
		defaultCacheRepostMaxRetries,
	)
}

func getStringValue(configValue string, defaultValue string) string {
	if configValue == "" {
		return defaultValue
	}
	return configValue
}

func getNumericValue(configValue int, minValue int, maxValue int, defaultValue int) int {
	if configValue < minValue || configValue > maxValue {
		return defaultValue
	}
	return configValue
}

func getNumericValue64(configValue int64, minValue int64, maxValue int64, defaultValue int64) int64 {
	if configValue < minValue || configValue > maxValue {
		return defaultValue
	}
	return configValue
}
