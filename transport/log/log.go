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

// Package log is used to initialize the transport controller's logger. It
// should be imported once, usually from main or from a test's TestMain, then
// call GetLogger.
package log

import (
	"sync"

	"github.com/cihub/seelog"
)

// pkgMutex serializes calls made through the delegate seelog logger.
var pkgMutex = new(sync.Mutex)

var loadedLogger T
var lock sync.RWMutex

// defaultSeelogConfig is a minimal adaptive seelog configuration; callers
// that want file output should call GetLoggerFromConfig instead.
const defaultSeelogConfig = `
<seelog type="adaptive" mininterval="2000000" maxinterval="100000000" critmsgcount="500" minlevel="debug">
    <outputs formatid="all">
        <console formatid="all"/>
    </outputs>
    <formats>
        <format id="all" format="%Date %Time %LEVEL [%FuncShort @ %File.%Line] %Msg%n"/>
    </formats>
</seelog>
`

// GetLogger returns the process-wide logger, initializing it with the
// default console configuration on first use.
func GetLogger() T {
	if !isLoaded() {
		cache(newWrapper(defaultSeelogConfig))
	}
	return getCached()
}

// GetLoggerFromConfig initializes (if not already initialized) and returns
// the process-wide logger using a caller-supplied seelog XML configuration.
func GetLoggerFromConfig(seelogConfig string) T {
	if !isLoaded() {
		cache(newWrapper(seelogConfig))
	}
	return getCached()
}

func newWrapper(seelogConfig string) T {
	logger, err := seelog.LoggerFromConfigAsBytes([]byte(seelogConfig))
	if err != nil {
		logger, _ = seelog.LoggerFromConfigAsBytes([]byte(defaultSeelogConfig))
	}
	seelog.ReplaceLogger(logger)
	logger.SetAdditionalStackDepth(2)

	delegate := &DelegateLogger{BaseLoggerInstance: logger}
	return &Wrapper{Format: ContextFormatFilter{}, M: pkgMutex, Delegate: delegate}
}

func isLoaded() bool {
	lock.RLock()
	defer lock.RUnlock()
	return loadedLogger != nil
}

func cache(logger T) {
	lock.Lock()
	defer lock.Unlock()
	loadedLogger = logger
}

func getCached() T {
	lock.RLock()
	defer lock.RUnlock()
	return loadedLogger
}
