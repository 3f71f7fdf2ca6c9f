// Licensed to NASA JPL under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. NASA JPL licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package dataerror

import "fmt"

// The two fatal error classes the pipeline distinguishes. A ConfigError means
// the run was set up wrong (bad option combination, degenerate geometry,
// malformed control file) and retrying won't help. A MissingDataError means
// an input that the metadata says should exist could not be read, which an
// outer driver may retry or skip. Expected absences (blacklisted PSFs, low
// signal-to-noise records) are not errors at all, they set sentinel flags.

// ConfigError - fatal pipeline misconfiguration
type ConfigError struct {
	Err error
}

func (e ConfigError) Error() string {
	return "config error: " + e.Err.Error()
}

func (e ConfigError) Unwrap() error {
	return e.Err
}

// MissingDataError - data absent that metadata claims should exist
type MissingDataError struct {
	Path string
	Err  error
}

func (e MissingDataError) Error() string {
	return fmt.Sprintf("missing data (%v): %v", e.Path, e.Err.Error())
}

func (e MissingDataError) Unwrap() error {
	return e.Err
}

func MakeConfigError(format string, a ...interface{}) ConfigError {
	return ConfigError{
		Err: fmt.Errorf(format, a...),
	}
}

func MakeMissingDataError(path string, format string, a ...interface{}) MissingDataError {
	return MissingDataError{
		Path: path,
		Err:  fmt.Errorf(format, a...),
	}
}
