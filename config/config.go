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

// Pipeline configuration as read from JSON, plus defaults and validation.
// Everything that used to be scattered per-component lives in the one
// struct here, validated once up front so a bad run dies before any data
// is touched.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/shearfit/obsio/v2/core/dataerror"
	"github.com/shearfit/obsio/v2/core/fileaccess"
	"github.com/shearfit/obsio/v2/core/logger"
	"github.com/shearfit/obsio/v2/core/utils"
)

// PSF backend selectors
const (
	PSFTypeInFile = "infile"
	PSFTypePSFEx  = "psfex"
	PSFTypePIFF   = "piff"
)

// Full-WCS loading sources
const (
	WCSSourceFile    = "file"
	WCSSourceMEDS    = "meds"
	WCSSourceHeaders = "headers"
)

// Photometric conventions handed to the fitter
const (
	ConventionFlux = "flux"
	ConventionSB   = "sb"
)

// S2NChecks - signal-to-noise gate over a per-exposure FITS table
type S2NChecks struct {
	File   string
	Column string
	S2NMin float64
}

// Config combines env vars and config JSON values
type Config struct {
	// Where the survey data lives. DataDir replaces the base dir recorded
	// inside MEDS files, and $VAR tokens in any stored path expand against
	// the environment
	DataDir string

	// PSF backend
	PSFType          string
	PIFFDataDir      string
	PIFFRun          string
	PIFFStampSize    int
	PIFFAllowMissing bool
	UsePSFRerun      bool
	PSFRerunVersion  string
	Blacklist        string
	S2NChecks        *S2NChecks
	PSFMap           []string // one map file per band, same order as the MEDS files
	CenterPSF        bool
	TrimPSF          []int // [nrow, ncol], empty = no trimming

	// Exposure quality flags
	ImageFlags2Check int64
	ReplacementFlags string
	FitCoadd         bool
	Tilings          []int

	// Star mask propagation
	PropagateStarFlags    bool
	IgnoreFlags           []string
	BadpixScheme          string
	FlagStellarHaloMasked bool

	// Full WCS loading
	ReadWCS   bool
	ReadMEWCS bool
	WCSSource string
	AstromDir string

	FitterConvention string

	// QA previews of propagated masks are written here when set
	PreviewDir string

	LogLevel logger.LogLevel // Can be changed at runtime, reset on restart
}

// Load - reads config JSON through FileAccess and builds a validated Config
func Load(fs fileaccess.FileAccess, bucket string, configPath string) (Config, error) {
	var cfg Config

	configJSON, err := fs.ReadObject(bucket, configPath)
	if err != nil {
		return cfg, fmt.Errorf("could not read config file at %v: %v", configPath, err)
	}
	return NewConfigFromJSON(configJSON)
}

// NewConfigFromJSON - parses config JSON, applies env var overrides and
// defaults, then validates
func NewConfigFromJSON(configJSON []byte) (Config, error) {
	var cfg Config

	err := json.Unmarshal(configJSON, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("failed to parse config: %v", err)
	}

	// Override Config with any values explicitly set in Env Vars (OBSIO_CONFIG_*)
	// NOTE: For []string slices, pass in a comma-separated string to the corresponding OBSIO_CONFIG_ var
	//			Ex: export OBSIO_CONFIG_IgnoreFlags="EDGE,SSXTALK"
	reflection := reflect.ValueOf(&cfg).Elem()
	for i := 0; i < reflection.NumField(); i++ {
		fieldName := reflection.Type().Field(i).Name
		field := reflection.Field(i)
		if val, present := os.LookupEnv(fmt.Sprintf("OBSIO_CONFIG_%s", fieldName)); present {
			switch field.Kind() {
			case reflect.String:
				field.SetString(val)
			case reflect.Bool:
				field.SetBool(val == "true" || val == "1")
			case reflect.Slice:
				if field.Type().Elem().Kind() == reflect.String {
					slicedVal := strings.Split(val, ",")
					field.Set(reflect.ValueOf(slicedVal))
				}
			case reflect.Int, reflect.Int64:
				num, err := strconv.Atoi(val)
				if err != nil {
					fmt.Printf("Could not cast value OBSIO_CONFIG_%s=%s to Int", fieldName, val)
					continue
				}
				field.SetInt(int64(num))
			}
		}
	}

	// Stored paths may carry $VAR tokens pointing at the data tree
	cfg.DataDir = os.ExpandEnv(cfg.DataDir)
	cfg.PIFFDataDir = os.ExpandEnv(cfg.PIFFDataDir)
	cfg.AstromDir = os.ExpandEnv(cfg.AstromDir)
	cfg.PreviewDir = os.ExpandEnv(cfg.PreviewDir)
	for i, path := range cfg.PSFMap {
		cfg.PSFMap[i] = os.ExpandEnv(path)
	}

	applyDefaults(&cfg)
	return cfg, cfg.Validate()
}

func applyDefaults(cfg *Config) {
	if cfg.PIFFStampSize <= 0 {
		cfg.PIFFStampSize = 25
	}
	if len(cfg.WCSSource) <= 0 {
		cfg.WCSSource = WCSSourceMEDS
	}
	if len(cfg.FitterConvention) <= 0 {
		cfg.FitterConvention = ConventionFlux
	}
	if len(cfg.BadpixScheme) <= 0 {
		cfg.BadpixScheme = "y3"
	}
}

// Validate - returns a ConfigError on any contradiction. Called by
// NewConfigFromJSON, exported for configs built in code
func (cfg Config) Validate() error {
	if !utils.ItemInSlice(cfg.PSFType, []string{PSFTypeInFile, PSFTypePSFEx, PSFTypePIFF}) {
		return dataerror.MakeConfigError("unknown PSFType: %v", cfg.PSFType)
	}
	if cfg.UsePSFRerun && len(cfg.PSFRerunVersion) <= 0 {
		return dataerror.MakeConfigError("UsePSFRerun requires a PSFRerunVersion")
	}
	if cfg.S2NChecks != nil && (len(cfg.S2NChecks.File) <= 0 || len(cfg.S2NChecks.Column) <= 0) {
		return dataerror.MakeConfigError("S2NChecks requires both File and Column")
	}
	if len(cfg.TrimPSF) != 0 && len(cfg.TrimPSF) != 2 {
		return dataerror.MakeConfigError("TrimPSF must be [nrow, ncol], got %v values", len(cfg.TrimPSF))
	}
	for _, dim := range cfg.TrimPSF {
		if dim <= 0 {
			return dataerror.MakeConfigError("TrimPSF dims must be positive, got %v", cfg.TrimPSF)
		}
	}
	if cfg.PSFType == PSFTypePIFF && len(cfg.PIFFRun) <= 0 && len(cfg.PSFMap) <= 0 {
		return dataerror.MakeConfigError("piff PSFs need a PIFFRun or a PSFMap")
	}
	if !utils.ItemInSlice(cfg.BadpixScheme, []string{"y3", "y4"}) {
		return dataerror.MakeConfigError("unknown BadpixScheme: %v", cfg.BadpixScheme)
	}
	if !utils.ItemInSlice(cfg.WCSSource, []string{WCSSourceFile, WCSSourceMEDS, WCSSourceHeaders}) {
		return dataerror.MakeConfigError("unknown WCSSource: %v", cfg.WCSSource)
	}
	if !utils.ItemInSlice(cfg.FitterConvention, []string{ConventionFlux, ConventionSB}) {
		return dataerror.MakeConfigError("unknown FitterConvention: %v", cfg.FitterConvention)
	}
	return nil
}
