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

package log

import (
	"github.com/stretchr/testify/mock"
)

// Mock stands for a mocked log, used by every package under transport/ that
// needs a log.T in its tests without standing up seelog.
type Mock struct {
	mock.Mock
}

// NewMockLog returns an instance of Mock with default expectations set.
func NewMockLog() *Mock {
	l := new(Mock)
	l.On("Close").Return()
	l.On("Flush").Return()
	l.On("Debug", mock.Anything).Return()
	l.On("Error", mock.Anything).Return(nil)
	l.On("Trace", mock.Anything).Return()
	l.On("Info", mock.Anything).Return()
	l.On("Debugf", mock.Anything, mock.Anything).Return()
	l.On("Errorf", mock.Anything, mock.Anything).Return(nil)
	l.On("Tracef", mock.Anything, mock.Anything).Return()
	l.On("Infof", mock.Anything, mock.Anything).Return()
	return l
}

func (_m *Mock) Tracef(format string, params ...interface{}) {
	_m.Called(format, params)
}

func (_m *Mock) Debugf(format string, params ...interface{}) {
	_m.Called(format, params)
}

func (_m *Mock) Infof(format string, params ...interface{}) {
	_m.Called(format, params)
}

func (_m *Mock) Warnf(format string, params ...interface{}) error {
	ret := _m.Called(format, params)
	if rf, ok := ret.Get(0).(func(string, ...interface{}) error); ok {
		return rf(format, params...)
	}
	return ret.Error(0)
}

func (_m *Mock) Errorf(format string, params ...interface{}) error {
	ret := _m.Called(format, params)
	if rf, ok := ret.Get(0).(func(string, ...interface{}) error); ok {
		return rf(format, params...)
	}
	return ret.Error(0)
}

func (_m *Mock) Criticalf(format string, params ...interface{}) error {
	ret := _m.Called(format, params)
	if rf, ok := ret.Get(0).(func(string, ...interface{}) error); ok {
		return rf(format, params...)
	}
	return ret.Error(0)
}

func (_m *Mock) Trace(v ...interface{}) {
	_m.Called(v)
}

func (_m *Mock) Debug(v ...interface{}) {
	_m.Called(v)
}

func (_m *Mock) Info(v ...interface{}) {
	_m.Called(v)
}

func (_m *Mock) Warn(v ...interface{}) error {
	ret := _m.Called(v)
	if rf, ok := ret.Get(0).(func(...interface{}) error); ok {
		return rf(v...)
	}
	return ret.Error(0)
}

func (_m *Mock) Error(v ...interface{}) error {
	ret := _m.Called(v)
	if rf, ok := ret.Get(0).(func(...interface{}) error); ok {
		return rf(v...)
	}
	return ret.Error(0)
}

func (_m *Mock) Critical(v ...interface{}) error {
	ret := _m.Called(v)
	if rf, ok := ret.Get(0).(func(...interface{}) error); ok {
		return rf(v...)
	}
	return ret.Error(0)
}

func (_m *Mock) Flush() {
	_m.Called()
}

func (_m *Mock) Close() {
	_m.Called()
}

// WithContext returns the same mock; context tagging is irrelevant to
// assertions made against a mocked logger.
func (_m *Mock) WithContext(context ...string) T {
	return _m
}
