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

// Cutout files store their pixel data as flat 1-D image extensions, so
// image access here is in terms of the whole flat Data array rather than
// per-pixel accessors. The concrete array type follows BITPIX.

// ImageFloat64 - the image data as float64, whatever BITPIX was
func ImageFloat64(u *fits.Unit) ([]float64, error) {
	if IsTileCompressed(u) {
		return nil, fmt.Errorf("image is tile-compressed, run funpack first")
	}
	switch data := u.Data.(type) {
	case []float64:
		out := make([]float64, len(data))
		copy(out, data)
		return out, nil
	case []float32:
		out := make([]float64, len(data))
		for i, x := range data {
			out[i] = float64(x)
		}
		return out, nil
	case []int16:
		out := make([]float64, len(data))
		for i, x := range data {
			out[i] = float64(x)
		}
		return out, nil
	case []int32:
		out := make([]float64, len(data))
		for i, x := range data {
			out[i] = float64(x)
		}
		return out, nil
	case []int64:
		out := make([]float64, len(data))
		for i, x := range data {
			out[i] = float64(x)
		}
		return out, nil
	case []byte:
		out := make([]float64, len(data))
		for i, x := range data {
			out[i] = float64(x)
		}
		return out, nil
	}
	return nil, fmt.Errorf("HDU has no image data")
}

// ImageInt32 - the image data as int32. Mask and segmentation planes are
// written as integer images, refuse float data rather than truncate it
func ImageInt32(u *fits.Unit) ([]int32, error) {
	if IsTileCompressed(u) {
		return nil, fmt.Errorf("image is tile-compressed, run funpack first")
	}
	switch data := u.Data.(type) {
	case []int32:
		out := make([]int32, len(data))
		copy(out, data)
		return out, nil
	case []int16:
		out := make([]int32, len(data))
		for i, x := range data {
			out[i] = int32(x)
		}
		return out, nil
	case []byte:
		out := make([]int32, len(data))
		for i, x := range data {
			out[i] = int32(x)
		}
		return out, nil
	}
	return nil, fmt.Errorf("HDU image data is not integer typed")
}
