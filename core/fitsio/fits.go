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

// Thin layer over the fits package giving us FileAccess-based opening and
// typed header/table/image accessors. Everything downstream (cutout files,
// PSF catalogs, model summaries, flag tables) goes through here rather than
// talking to the fits package directly.
package fitsio

import (
	"bytes"
	"fmt"

	"github.com/siravan/fits"

	"github.com/shearfit/obsio/v2/core/dataerror"
	"github.com/shearfit/obsio/v2/core/fileaccess"
)

// File - a parsed FITS file, all HDUs loaded
type File struct {
	Path  string
	Units []*fits.Unit
}

// Open - reads a FITS file through FileAccess and parses all its HDUs.
// A file that isn't there comes back as a MissingDataError so callers can
// distinguish absence from corruption
func Open(fs fileaccess.FileAccess, bucket string, filePath string) (*File, error) {
	data, err := fs.ReadObject(bucket, filePath)
	if err != nil {
		if fs.IsNotFoundError(err) {
			return nil, dataerror.MakeMissingDataError(filePath, "FITS file not found")
		}
		return nil, fmt.Errorf("failed to read FITS file %v: %v", filePath, err)
	}
	return OpenBytes(data, filePath)
}

// OpenBytes - parses an in-memory FITS file
func OpenBytes(data []byte, filePath string) (*File, error) {
	units, err := fits.Open(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse FITS file %v: %v", filePath, err)
	}
	if len(units) <= 0 {
		return nil, fmt.Errorf("no HDUs found in FITS file %v", filePath)
	}
	return &File{Path: filePath, Units: units}, nil
}

// HDU - the idx'th HDU, 0 being the primary
func (f *File) HDU(idx int) (*fits.Unit, error) {
	if idx < 0 || idx >= len(f.Units) {
		return nil, fmt.Errorf("no HDU %v in FITS file %v (have %v)", idx, f.Path, len(f.Units))
	}
	return f.Units[idx], nil
}

// HDUByName - looks an HDU up by its EXTNAME key
func (f *File) HDUByName(name string) (*fits.Unit, error) {
	for _, u := range f.Units {
		if extName, ok := u.Keys["EXTNAME"].(string); ok && extName == name {
			return u, nil
		}
	}
	return nil, fmt.Errorf("no HDU named %v in FITS file %v", name, f.Path)
}

// IsTileCompressed - true if the HDU is a tile-compressed image (fpack
// output). We can't decompress those, callers need funpacked inputs
func IsTileCompressed(u *fits.Unit) bool {
	z, ok := u.Keys["ZIMAGE"].(bool)
	return ok && z
}
