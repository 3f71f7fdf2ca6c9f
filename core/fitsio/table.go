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
	"strings"

	"github.com/siravan/fits"
)

// Binary table cells come back from fits.Unit.Field as whatever Go type the
// TFORM code implies - int16/int32/int64/byte/float32/float64, or a slice of
// those for array columns, or string for character columns. Integer cells
// are normalised to int64 here and floats to float64, array cells to slices
// of the same, so the table layout can vary without every caller growing a
// type switch.

// NumRows - row count of a table HDU
func NumRows(u *fits.Unit) int {
	if !u.HasTable() || len(u.Naxis) < 2 {
		return 0
	}
	return u.Naxis[1]
}

// HasColumn - true if the table has a column with this TTYPE name
func HasColumn(u *fits.Unit, name string) bool {
	// The fits package registers known columns under a # prefixed key
	_, ok := u.Keys["#"+name]
	return ok
}

func fieldFor(u *fits.Unit, name string) (fits.FieldFunc, error) {
	if !HasColumn(u, name) {
		return nil, fmt.Errorf("no column %v in table", name)
	}
	return u.Field(name), nil
}

func cellValue(u *fits.Unit, name string, row int) (interface{}, error) {
	fn, err := fieldFor(u, name)
	if err != nil {
		return nil, err
	}
	if row < 0 || row >= NumRows(u) {
		return nil, fmt.Errorf("row %v out of range for column %v (have %v)", row, name, NumRows(u))
	}
	return fn(row), nil
}

func toInt64(v interface{}) (int64, bool) {
	switch val := v.(type) {
	case byte:
		return int64(val), true
	case int16:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	}
	return 0, false
}

func toFloat64(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float32:
		return float64(val), true
	case float64:
		return val, true
	}
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}

// CellInt64 - a scalar integer cell
func CellInt64(u *fits.Unit, name string, row int) (int64, error) {
	v, err := cellValue(u, name, row)
	if err != nil {
		return 0, err
	}
	i, ok := toInt64(v)
	if !ok {
		return 0, fmt.Errorf("column %v row %v is not an integer: %v", name, row, v)
	}
	return i, nil
}

// CellFloat64 - a scalar float cell, promoting integers
func CellFloat64(u *fits.Unit, name string, row int) (float64, error) {
	v, err := cellValue(u, name, row)
	if err != nil {
		return 0, err
	}
	f, ok := toFloat64(v)
	if !ok {
		return 0, fmt.Errorf("column %v row %v is not a number: %v", name, row, v)
	}
	return f, nil
}

// CellString - a character cell, trailing padding stripped
func CellString(u *fits.Unit, name string, row int) (string, error) {
	v, err := cellValue(u, name, row)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("column %v row %v is not a string: %v", name, row, v)
	}
	return strings.TrimRight(s, " \x00"), nil
}

// CellInt64s - an integer array cell. A column whose repeat count is 1
// comes back from the fits package as a scalar, so that is handled too
func CellInt64s(u *fits.Unit, name string, row int) ([]int64, error) {
	v, err := cellValue(u, name, row)
	if err != nil {
		return nil, err
	}
	switch val := v.(type) {
	case []uint8:
		out := make([]int64, len(val))
		for i, x := range val {
			out[i] = int64(x)
		}
		return out, nil
	case []int16:
		out := make([]int64, len(val))
		for i, x := range val {
			out[i] = int64(x)
		}
		return out, nil
	case []int32:
		out := make([]int64, len(val))
		for i, x := range val {
			out[i] = int64(x)
		}
		return out, nil
	case []int64:
		out := make([]int64, len(val))
		copy(out, val)
		return out, nil
	}
	if i, ok := toInt64(v); ok {
		return []int64{i}, nil
	}
	return nil, fmt.Errorf("column %v row %v is not an integer array: %v", name, row, v)
}

// CellFloat64s - a float array cell, scalars handled as length 1
func CellFloat64s(u *fits.Unit, name string, row int) ([]float64, error) {
	v, err := cellValue(u, name, row)
	if err != nil {
		return nil, err
	}
	switch val := v.(type) {
	case []float32:
		out := make([]float64, len(val))
		for i, x := range val {
			out[i] = float64(x)
		}
		return out, nil
	case []float64:
		out := make([]float64, len(val))
		copy(out, val)
		return out, nil
	}
	if f, ok := toFloat64(v); ok {
		return []float64{f}, nil
	}
	return nil, fmt.Errorf("column %v row %v is not a float array: %v", name, row, v)
}

// ColumnInt64 - all rows of a scalar integer column
func ColumnInt64(u *fits.Unit, name string) ([]int64, error) {
	rows := NumRows(u)
	out := make([]int64, 0, rows)
	for row := 0; row < rows; row++ {
		v, err := CellInt64(u, name, row)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// ColumnFloat64 - all rows of a scalar float column
func ColumnFloat64(u *fits.Unit, name string) ([]float64, error) {
	rows := NumRows(u)
	out := make([]float64, 0, rows)
	for row := 0; row < rows; row++ {
		v, err := CellFloat64(u, name, row)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// ColumnString - all rows of a character column
func ColumnString(u *fits.Unit, name string) ([]string, error) {
	rows := NumRows(u)
	out := make([]string, 0, rows)
	for row := 0; row < rows; row++ {
		v, err := CellString(u, name, row)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
