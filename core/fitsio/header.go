// Licensed to NASA JPL under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. NASA JPL licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package fitsio

import (
	"fmt"

	"github.com/siravan/fits"
)

// Header values land in Unit.Keys as int, float64, string or bool depending
// on how they parse. These helpers do the type assertions with sane
// promotions, so callers don't have to care whether CRVAL1 was written as
// "1.5" or "1"

// HeaderString - a string-valued header key
func HeaderString(u *fits.Unit, key string) (string, error) {
	v, ok := u.Keys[key]
	if !ok {
		return "", fmt.Errorf("header key %v not found", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("header key %v is not a string: %v", key, v)
	}
	return s, nil
}

// HeaderInt - an integer-valued header key
func HeaderInt(u *fits.Unit, key string) (int, error) {
	v, ok := u.Keys[key]
	if !ok {
		return 0, fmt.Errorf("header key %v not found", key)
	}
	i, ok := v.(int)
	if !ok {
		return 0, fmt.Errorf("header key %v is not an int: %v", key, v)
	}
	return i, nil
}

// HeaderFloat - a float-valued header key, promoting ints. FITS writers
// are not consistent about writing whole-number floats with a decimal point
func HeaderFloat(u *fits.Unit, key string) (float64, error) {
	v, ok := u.Keys[key]
	if !ok {
		return 0, fmt.Errorf("header key %v not found", key)
	}
	switch val := v.(type) {
	case float64:
		return val, nil
	case int:
		return float64(val), nil
	}
	return 0, fmt.Errorf("header key %v is not a number: %v", key, v)
}

// HasHeaderKey - true if the key appears in the header at all
func HasHeaderKey(u *fits.Unit, key string) bool {
	_, ok := u.Keys[key]
	return ok
}
