// Copyright 2016 Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"). You may not
// use this file except in compliance with the License. A copy of the
// License is located at
//
// http://aws.amazon.com/apache2.0/
//
// or in the "license" file accompanying this file. This file is distributed
// on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND,
// either express or implied. See the License for the specific language governing
// permissions and limitations under the License.

// Package log provides the logging interface used throughout the transport
// controller. It mirrors github.com/cihub/seelog's own interface so a real
// seelog logger can be passed around without an adapter.
package log

// BasicT represents structs capable of logging messages. This interface
// matches seelog.LoggerInterface.
type BasicT interface {
	// Tracef formats message according to format specifier and writes to
	// log with level Trace.
	Tracef(format string, params ...interface{})

	// Debugf formats message according to format specifier and writes to
	// log with level Debug.
	Debugf(format string, params ...interface{})

	// Infof formats message according to format specifier and writes to
	// log with level Info.
	Infof(format string, params ...interface{})

	// Warnf formats message according to format specifier and writes to
	// log with level Warn.
	Warnf(format string, params ...interface{}) error

	// Errorf formats message according to format specifier and writes to
	// log with level Error.
	Errorf(format string, params ...interface{}) error

	// Criticalf formats message according to format specifier and writes
	// to log with level Critical.
	Criticalf(format string, params ...interface{}) error

	Trace(v ...interface{})
	Debug(v ...interface{})
	Info(v ...interface{})
	Warn(v ...interface{}) error
	Error(v ...interface{}) error
	Critical(v ...interface{}) error

	// Flush flushes all the messages in the logger.
	Flush()

	// Close flushes all the messages in the logger and closes it. The
	// logger cannot be used after this operation.
	Close()
}

// T represents structs capable of logging messages with a nested context,
// the way a dispatch tick tags its log lines with the local endpoint string.
type T interface {
	BasicT
	WithContext(context ...string) T
}
