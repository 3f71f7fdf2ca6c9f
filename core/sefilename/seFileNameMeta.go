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

// Parsing of survey single-epoch file names. These encode the exposure
// number, band and CCD in underscore-separated tokens, and downstream
// lookups (PSF model summaries, blacklists, replacement flag tables) are
// all keyed off fields recovered from the name, so this is security
// camera footage for where an image came from.
package sefilename

import (
	"fmt"
	"path"
	"strconv"
	"strings"
)

// Single-epoch names come in two layouts. The common one puts the
// exposure token first:
//
//	D00239652_i_c31_r2362p01_immasked.fits.fz
//
// Coadd-tile products prefix the tile name and shift everything right
// by two tokens:
//
//	DES0347-5540_r2362p01_D00239652_i_c31.fits
//
// ParseExposureName detects which layout it has by the DES tile prefix.

// ExposureNameMeta - fields recovered from a single-epoch file name. Raw
// token strings are stored, accessor methods do the conversions
type ExposureNameMeta struct {
	Expname string // Exposure token with its D prefix, eg "D00239652"
	Band    string
	ccdTok  string
}

// ExpNum - the exposure number as an int, eg 239652
func (m ExposureNameMeta) ExpNum() (int, error) {
	num, err := strconv.Atoi(strings.TrimPrefix(m.Expname, "D"))
	if err != nil {
		return 0, fmt.Errorf("failed to get exposure number from: %v", m.Expname)
	}
	return num, nil
}

// CCDNum - the CCD number as an int, eg 31
func (m ExposureNameMeta) CCDNum() (int, error) {
	num, err := strconv.Atoi(strings.TrimPrefix(m.ccdTok, "c"))
	if err != nil {
		return 0, fmt.Errorf("failed to get CCD number from: %v", m.ccdTok)
	}
	return num, nil
}

// Key - the exposure-CCD key used by PSF model summary tables, eg
// "D00239652-31"
func (m ExposureNameMeta) Key() (string, error) {
	expnum, err := m.ExpNum()
	if err != nil {
		return "", err
	}
	ccdnum, err := m.CCDNum()
	if err != nil {
		return "", err
	}
	return MakeKey(expnum, ccdnum), nil
}

// MakeKey - formats an exposure-CCD key from already-parsed numbers
func MakeKey(expnum int, ccdnum int) string {
	return fmt.Sprintf("D%08d-%02d", expnum, ccdnum)
}

// ParseExposureName - parses a single-epoch file name or path into its
// meta fields. Works on any product sharing the layout (immasked images,
// psfcat files, piff models), as only the leading tokens are read
func ParseExposureName(fileName string) (ExposureNameMeta, error) {
	base := path.Base(fileName)
	parts := strings.Split(base, "_")

	// Tile-prefixed products shift the exposure tokens right by two
	expIdx := 0
	if strings.HasPrefix(base, "DES") {
		expIdx = 2
	}

	if len(parts) < expIdx+3 {
		return ExposureNameMeta{}, fmt.Errorf("failed to parse exposure file name: %v", fileName)
	}

	// The CCD token is last in tile-prefixed names, so may carry the
	// file extension(s)
	ccdTok := parts[expIdx+2]
	if dot := strings.Index(ccdTok, "."); dot > -1 {
		ccdTok = ccdTok[0:dot]
	}

	meta := ExposureNameMeta{
		Expname: parts[expIdx],
		Band:    parts[expIdx+1],
		ccdTok:  ccdTok,
	}

	if !strings.HasPrefix(meta.Expname, "D") {
		return ExposureNameMeta{}, fmt.Errorf("failed to parse exposure token in: %v", fileName)
	}
	if !strings.HasPrefix(meta.ccdTok, "c") {
		return ExposureNameMeta{}, fmt.Errorf("failed to parse CCD token in: %v", fileName)
	}
	return meta, nil
}

// StripFITSExtension - drops everything after the first dot in the base
// name. Replacement flag tables are keyed on this
func StripFITSExtension(fileName string) string {
	base := path.Base(fileName)
	if dot := strings.Index(base, "."); dot > -1 {
		return base[0:dot]
	}
	return base
}

// BlacklistKey - the key a PSF catalog path is blacklisted under. The
// processing run comes from 5 path elements up, the exposure directory
// from 2 up, and the CCD from the file name itself, eg a path ending
// .../r2362p01/red/psf/D00239652/D00239652_i_c31_r2362p01_psfcat.psf
// gives "r2362p01-D00239652-31"
func BlacklistKey(psfPath string) (string, error) {
	elems := strings.Split(psfPath, "/")
	if len(elems) < 5 {
		return "", fmt.Errorf("PSF path too short to form blacklist key: %v", psfPath)
	}
	run := elems[len(elems)-5]
	expname := elems[len(elems)-2]

	meta, err := ParseExposureName(psfPath)
	if err != nil {
		return "", err
	}
	ccd, err := meta.CCDNum()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%02d", run, expname, ccd), nil
}
