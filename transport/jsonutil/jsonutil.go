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

// Package jsonutil contains small utilities for dealing with JSON
// configuration, mirroring agent/jsonutil's own shape.
package jsonutil

import (
	"encoding/json"
	"os"
)

// UnmarshalFile reads the content of a file then unmarshals it into dest.
func UnmarshalFile(filePath string, dest interface{}) error {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return json.Unmarshal(content, dest)
}

// Marshal marshals an object to a json string.
func Marshal(obj interface{}) (string, error) {
	b, err := json.Marshal(obj)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
