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

// 2-D pixel grids backing cutout planes. Storage is a flat row-major
// slice, indexing is (row, col) following the astronomy convention, so
// row maps to the FITS NAXIS2 axis. Get and Set do no bounds checks of
// their own, a bad index panics like any slice access.
package imggrid

import "fmt"

// Float64 - grid of float64, used for image, weight and PSF planes
type Float64 struct {
	rows   int
	cols   int
	values []float64
}

func NewFloat64(rows, cols int) *Float64 {
	return &Float64{
		rows:   rows,
		cols:   cols,
		values: make([]float64, rows*cols),
	}
}

// MakeFloat64FromSlice - wraps flat row-major data, eg a FITS cutout
// read. The grid takes its own copy
func MakeFloat64FromSlice(rows, cols int, values []float64) (*Float64, error) {
	if len(values) != rows*cols {
		return nil, fmt.Errorf("grid data has %v values, %vx%v needs %v", len(values), rows, cols, rows*cols)
	}
	g := NewFloat64(rows, cols)
	copy(g.values, values)
	return g, nil
}

func (g *Float64) Rows() int { return g.rows }
func (g *Float64) Cols() int { return g.cols }

func (g *Float64) Get(row, col int) float64 { return g.values[g.cols*row+col] }

func (g *Float64) Set(row, col int, v float64) { g.values[g.cols*row+col] = v }

func (g *Float64) Values() []float64 { return g.values }

func (g *Float64) Copy() *Float64 {
	c := NewFloat64(g.rows, g.cols)
	copy(c.values, g.values)
	return c
}

// Scale - multiplies every value in place
func (g *Float64) Scale(f float64) {
	for i := range g.values {
		g.values[i] *= f
	}
}

// Fill - sets every value in place
func (g *Float64) Fill(v float64) {
	for i := range g.values {
		g.values[i] = v
	}
}

// Sum - total of all values
func (g *Float64) Sum() float64 {
	total := 0.0
	for _, v := range g.values {
		total += v
	}
	return total
}

// SubGrid - copies out a rectangular region starting at (row0, col0)
func (g *Float64) SubGrid(row0, col0, rows, cols int) (*Float64, error) {
	if row0 < 0 || col0 < 0 || row0+rows > g.rows || col0+cols > g.cols {
		return nil, fmt.Errorf("subgrid %vx%v at (%v,%v) outside %vx%v grid", rows, cols, row0, col0, g.rows, g.cols)
	}
	sub := NewFloat64(rows, cols)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			sub.Set(row, col, g.Get(row0+row, col0+col))
		}
	}
	return sub, nil
}

// Int32 - grid of int32, used for bitmask and segmentation planes
type Int32 struct {
	rows   int
	cols   int
	values []int32
}

func NewInt32(rows, cols int) *Int32 {
	return &Int32{
		rows:   rows,
		cols:   cols,
		values: make([]int32, rows*cols),
	}
}

// MakeInt32FromSlice - wraps flat row-major data, taking a copy
func MakeInt32FromSlice(rows, cols int, values []int32) (*Int32, error) {
	if len(values) != rows*cols {
		return nil, fmt.Errorf("grid data has %v values, %vx%v needs %v", len(values), rows, cols, rows*cols)
	}
	g := NewInt32(rows, cols)
	copy(g.values, values)
	return g, nil
}

func (g *Int32) Rows() int { return g.rows }
func (g *Int32) Cols() int { return g.cols }

func (g *Int32) Get(row, col int) int32 { return g.values[g.cols*row+col] }

func (g *Int32) Set(row, col int, v int32) { g.values[g.cols*row+col] = v }

func (g *Int32) Values() []int32 { return g.values }

func (g *Int32) Copy() *Int32 {
	c := NewInt32(g.rows, g.cols)
	copy(c.values, g.values)
	return c
}

// CountSet - how many values have any of the given bits set. With mask 0
// it counts values that are non-zero
func (g *Int32) CountSet(mask int32) int {
	count := 0
	for _, v := range g.values {
		if mask == 0 {
			if v != 0 {
				count++
			}
		} else if v&mask != 0 {
			count++
		}
	}
	return count
}
