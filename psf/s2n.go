package psf

import (
	"github.com/pkg/errors"

	"github.com/shearfit/obsio/v2/config"
	"github.com/shearfit/obsio/v2/core/fileaccess"
	"github.com/shearfit/obsio/v2/core/fitsio"
	"github.com/shearfit/obsio/v2/core/logger"
	"github.com/shearfit/obsio/v2/imageflags"
)

// S2NTable - per-exposure PSF signal-to-noise measurements. The key
// column is always named key, the value column name comes from config
// because different measurement runs name it differently
type S2NTable struct {
	path   string
	min    float64
	values map[string]float64
}

// LoadS2NTable - reads the measurement table named by the config gate
func LoadS2NTable(fs fileaccess.FileAccess, bucket string, checks config.S2NChecks, log logger.ILogger) (*S2NTable, error) {
	log.Infof("reading psf s/n table: %v", checks.File)

	f, err := fitsio.Open(fs, bucket, checks.File)
	if err != nil {
		return nil, err
	}

	for _, u := range f.Units {
		if !fitsio.HasColumn(u, "key") || !fitsio.HasColumn(u, checks.Column) {
			continue
		}
		keys, err := fitsio.ColumnString(u, "key")
		if err != nil {
			return nil, errors.Wrapf(err, "bad s/n table %v", checks.File)
		}
		values, err := fitsio.ColumnFloat64(u, checks.Column)
		if err != nil {
			return nil, errors.Wrapf(err, "bad s/n table %v", checks.File)
		}

		t := &S2NTable{
			path:   checks.File,
			min:    checks.S2NMin,
			values: make(map[string]float64, len(keys)),
		}
		for i, key := range keys {
			t.values[key] = values[i]
		}
		log.Infof("    %v psf s/n records, minimum %v", len(t.values), t.min)
		return t, nil
	}
	return nil, errors.Errorf("no key/%v table in s/n file %v", checks.Column, checks.File)
}

// Check - the sentinel flags an exposure earns from its s/n record. No
// record under any candidate key means the measurement is missing, a
// record under the minimum means the model is too noisy to use
func (t *S2NTable) Check(keys ...string) int64 {
	for _, key := range keys {
		s2n, ok := t.values[key]
		if !ok {
			continue
		}
		if s2n < t.min {
			return imageflags.PSFLowS2N
		}
		return 0
	}
	return imageflags.PSFMissingS2N
}

// Path - where this table was read from
func (t *S2NTable) Path() string {
	return t.path
}
