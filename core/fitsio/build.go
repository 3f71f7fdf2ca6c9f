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
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Builder writes minimal standard-conforming FITS files. The fits package
// is read-only, and tests all over this module need small cutout files,
// PSF catalogs and flag tables to chew on, so the write side lives here
// the same way the S3 mock lives in awsutil for everyone to share.

const fitsBlockSize = 2880
const fitsCardSize = 80

// Card - one header key/value. Value can be string, int, float64 or bool
type Card struct {
	Key   string
	Value interface{}
}

// TableColumn - one binary table column definition plus its data.
// Form is a TFORM code like "J", "D", "32A" or "3E". Data must be
// []int64 for integer columns, []float64 for float columns, []string for
// character columns, and [][]int64 / [][]float64 when the repeat count
// is over 1
type TableColumn struct {
	Name string
	Form string
	Data interface{}
}

// Builder - accumulates HDUs, Bytes() hands back the whole file
type Builder struct {
	out bytes.Buffer
}

func NewBuilder() *Builder {
	return &Builder{}
}

// Bytes - the assembled FITS file
func (b *Builder) Bytes() []byte {
	return b.out.Bytes()
}

func formatCard(c Card) string {
	key := fmt.Sprintf("%-8s", c.Key)
	var value string
	switch v := c.Value.(type) {
	case string:
		// The trailing comment slash is what terminates the string when it
		// is read back - the fits package only closes a quoted value once a
		// character follows the final quote
		value = "'" + strings.ReplaceAll(v, "'", "''") + "' /"
	case int:
		value = fmt.Sprintf("%20d", v)
	case int64:
		value = fmt.Sprintf("%20d", v)
	case float64:
		// The E form is what marks the value as a float when it is read
		// back, and the shortest form round-trips float64 exactly
		value = fmt.Sprintf("%20s", strconv.FormatFloat(v, 'E', -1, 64))
	case bool:
		if v {
			value = fmt.Sprintf("%20s", "T")
		} else {
			value = fmt.Sprintf("%20s", "F")
		}
	default:
		value = fmt.Sprintf("%20v", v)
	}
	card := key + "= " + value
	if len(card) > fitsCardSize {
		card = card[0:fitsCardSize]
	}
	return card + strings.Repeat(" ", fitsCardSize-len(card))
}

func (b *Builder) writeHeader(cards []Card) {
	for _, c := range cards {
		b.out.WriteString(formatCard(c))
	}
	b.out.WriteString("END" + strings.Repeat(" ", fitsCardSize-3))
	b.padBlock(' ')
}

func (b *Builder) padBlock(fill byte) {
	for b.out.Len()%fitsBlockSize != 0 {
		b.out.WriteByte(fill)
	}
}

// AddEmptyPrimary - a dataless primary HDU, plus any extra header cards
func (b *Builder) AddEmptyPrimary(extra ...Card) {
	cards := []Card{
		{"SIMPLE", true},
		{"BITPIX", 8},
		{"NAXIS", 0},
	}
	cards = append(cards, extra...)
	b.writeHeader(cards)
}

func imageCards(bitpix int, dims []int, extName string, extra []Card) []Card {
	cards := []Card{
		{"XTENSION", "IMAGE"},
		{"BITPIX", bitpix},
		{"NAXIS", len(dims)},
	}
	for i, d := range dims {
		cards = append(cards, Card{fmt.Sprintf("NAXIS%d", i+1), d})
	}
	cards = append(cards, Card{"PCOUNT", 0}, Card{"GCOUNT", 1})
	if len(extName) > 0 {
		cards = append(cards, Card{"EXTNAME", extName})
	}
	return append(cards, extra...)
}

func checkImageLen(dims []int, n int) error {
	want := 1
	for _, d := range dims {
		want *= d
	}
	if n != want {
		return fmt.Errorf("image data has %v values, dims %v need %v", n, dims, want)
	}
	return nil
}

// AddImageFloat32 - an IMAGE extension with BITPIX -32 data. dims are in
// FITS axis order, NAXIS1 first
func (b *Builder) AddImageFloat32(extName string, dims []int, data []float32, extra ...Card) error {
	if err := checkImageLen(dims, len(data)); err != nil {
		return err
	}
	b.writeHeader(imageCards(-32, dims, extName, extra))
	for _, v := range data {
		b.writeUint32(math.Float32bits(v))
	}
	b.padBlock(0)
	return nil
}

// AddImageFloat64 - an IMAGE extension with BITPIX -64 data
func (b *Builder) AddImageFloat64(extName string, dims []int, data []float64, extra ...Card) error {
	if err := checkImageLen(dims, len(data)); err != nil {
		return err
	}
	b.writeHeader(imageCards(-64, dims, extName, extra))
	for _, v := range data {
		b.writeUint64(math.Float64bits(v))
	}
	b.padBlock(0)
	return nil
}

// AddImageInt32 - an IMAGE extension with BITPIX 32 data
func (b *Builder) AddImageInt32(extName string, dims []int, data []int32, extra ...Card) error {
	if err := checkImageLen(dims, len(data)); err != nil {
		return err
	}
	b.writeHeader(imageCards(32, dims, extName, extra))
	for _, v := range data {
		b.writeUint32(uint32(v))
	}
	b.padBlock(0)
	return nil
}

func (b *Builder) writeUint32(v uint32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	b.out.Write(buf[:])
}

func (b *Builder) writeUint64(v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	b.out.Write(buf[:])
}

func parseForm(form string) (code byte, repeat int, err error) {
	idx := strings.IndexAny(form, "ABDEIJK")
	if idx < 0 || idx != len(form)-1 {
		return 0, 0, fmt.Errorf("unsupported TFORM: %v", form)
	}
	repeat = 1
	if idx > 0 {
		repeat, err = strconv.Atoi(form[0:idx])
		if err != nil {
			return 0, 0, fmt.Errorf("unsupported TFORM: %v", form)
		}
	}
	return form[idx], repeat, nil
}

func formSize(code byte) int {
	switch code {
	case 'B', 'A':
		return 1
	case 'I':
		return 2
	case 'J', 'E':
		return 4
	case 'K', 'D':
		return 8
	}
	return 0
}

// AddBinTable - a BINTABLE extension. All columns must have the same
// number of rows
func (b *Builder) AddBinTable(extName string, cols []TableColumn, extra ...Card) error {
	if len(cols) <= 0 {
		return fmt.Errorf("binary table %v has no columns", extName)
	}

	rowLen := 0
	rows := -1
	for _, col := range cols {
		code, repeat, err := parseForm(col.Form)
		if err != nil {
			return err
		}
		rowLen += formSize(code) * repeat

		n, err := columnRows(col)
		if err != nil {
			return err
		}
		if rows == -1 {
			rows = n
		} else if n != rows {
			return fmt.Errorf("column %v has %v rows, expected %v", col.Name, n, rows)
		}
	}

	cards := []Card{
		{"XTENSION", "BINTABLE"},
		{"BITPIX", 8},
		{"NAXIS", 2},
		{"NAXIS1", rowLen},
		{"NAXIS2", rows},
		{"PCOUNT", 0},
		{"GCOUNT", 1},
		{"TFIELDS", len(cols)},
	}
	for i, col := range cols {
		cards = append(cards,
			Card{fmt.Sprintf("TTYPE%d", i+1), col.Name},
			Card{fmt.Sprintf("TFORM%d", i+1), col.Form},
		)
	}
	cards = append(cards, Card{"EXTNAME", extName})
	b.writeHeader(append(cards, extra...))

	for row := 0; row < rows; row++ {
		for _, col := range cols {
			if err := b.writeCell(col, row); err != nil {
				return err
			}
		}
	}
	b.padBlock(0)
	return nil
}

func columnRows(col TableColumn) (int, error) {
	switch data := col.Data.(type) {
	case []int64:
		return len(data), nil
	case []float64:
		return len(data), nil
	case []string:
		return len(data), nil
	case [][]int64:
		return len(data), nil
	case [][]float64:
		return len(data), nil
	}
	return 0, fmt.Errorf("column %v has unsupported data type", col.Name)
}

func (b *Builder) writeCell(col TableColumn, row int) error {
	code, repeat, err := parseForm(col.Form)
	if err != nil {
		return err
	}

	var ints []int64
	var floats []float64

	switch data := col.Data.(type) {
	case []string:
		if code != 'A' {
			return fmt.Errorf("column %v: string data needs an A form", col.Name)
		}
		s := data[row]
		if len(s) > repeat {
			s = s[0:repeat]
		}
		b.out.WriteString(s)
		b.out.WriteString(strings.Repeat(" ", repeat-len(s)))
		return nil
	case []int64:
		ints = []int64{data[row]}
	case [][]int64:
		ints = data[row]
	case []float64:
		floats = []float64{data[row]}
	case [][]float64:
		floats = data[row]
	}

	if ints != nil {
		if len(ints) != repeat {
			return fmt.Errorf("column %v row %v has %v values, form %v needs %v", col.Name, row, len(ints), col.Form, repeat)
		}
		for _, v := range ints {
			switch code {
			case 'B':
				b.out.WriteByte(byte(v))
			case 'I':
				var buf [2]byte
				binary.BigEndian.PutUint16(buf[:], uint16(v))
				b.out.Write(buf[:])
			case 'J':
				b.writeUint32(uint32(v))
			case 'K':
				b.writeUint64(uint64(v))
			default:
				return fmt.Errorf("column %v: integer data needs a B, I, J or K form", col.Name)
			}
		}
		return nil
	}

	if floats != nil {
		if len(floats) != repeat {
			return fmt.Errorf("column %v row %v has %v values, form %v needs %v", col.Name, row, len(floats), col.Form, repeat)
		}
		for _, v := range floats {
			switch code {
			case 'E':
				b.writeUint32(math.Float32bits(float32(v)))
			case 'D':
				b.writeUint64(math.Float64bits(v))
			default:
				return fmt.Errorf("column %v: float data needs an E or D form", col.Name)
			}
		}
		return nil
	}

	return fmt.Errorf("column %v has unsupported data type", col.Name)
}
