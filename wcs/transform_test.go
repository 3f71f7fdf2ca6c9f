package wcs

import (
	"errors"
	"math"
	"testing"

	"github.com/shearfit/obsio/v2/core/dataerror"
)

// A plausible survey coadd TAN solution, 0.263 arcsec/pixel
func tileHeader() map[string]interface{} {
	return map[string]interface{}{
		"ctype1": "RA---TAN",
		"ctype2": "DEC--TAN",
		"crval1": 53.092625,
		"crval2": -55.741667,
		"crpix1": 5000.5,
		"crpix2": 5000.5,
		"cd1_1":  -7.305556e-05,
		"cd1_2":  0.0,
		"cd2_1":  0.0,
		"cd2_2":  7.305556e-05,
	}
}

func Test_TransformReference(t *testing.T) {
	tr, err := NewTransform(tileHeader())
	if err != nil {
		t.Fatalf("Error building transform: %v", err)
	}

	// The reference pixel maps exactly to the reference world position
	ra, dec := tr.Image2Sky(5000.5, 5000.5)
	if math.Abs(ra-53.092625) > 1e-12 || math.Abs(dec-(-55.741667)) > 1e-12 {
		t.Errorf("reference pixel got (%v,%v); want (53.092625,-55.741667)", ra, dec)
	}

	// One pixel along y moves dec by cd2_2 to first order
	_, dec1 := tr.Image2Sky(5000.5, 5001.5)
	if math.Abs((dec1-dec)-7.305556e-05) > 1e-9 {
		t.Errorf("one-pixel dec step got %v; want ~7.305556e-05", dec1-dec)
	}
}

func Test_TransformRoundTrip(t *testing.T) {
	tr, err := NewTransform(tileHeader())
	if err != nil {
		t.Fatalf("Error building transform: %v", err)
	}

	points := [][2]float64{
		{5000.5, 5000.5},
		{1.0, 1.0},
		{10000.0, 1.0},
		{123.25, 9876.75},
	}
	for _, p := range points {
		ra, dec := tr.Image2Sky(p[0], p[1])
		x, y := tr.Sky2Image(ra, dec)
		if math.Abs(x-p[0]) > 1e-6 || math.Abs(y-p[1]) > 1e-6 {
			t.Errorf("round trip of (%v,%v) got (%v,%v)", p[0], p[1], x, y)
		}
	}
}

// Keys arrive uppercase from FITS headers and lowercase from JSON dumps
func Test_TransformKeyCase(t *testing.T) {
	upper := map[string]interface{}{
		"CTYPE1": "RA---TAN",
		"CRVAL1": 53.092625,
		"CRVAL2": -55.741667,
		"CRPIX1": 5000.5,
		"CRPIX2": 5000.5,
		"CD1_1":  -7.305556e-05,
		"CD2_2":  7.305556e-05,
	}
	tr, err := NewTransform(upper)
	if err != nil {
		t.Fatalf("Error building transform from uppercase keys: %v", err)
	}
	ra, dec := tr.Center()
	if ra != 53.092625 || dec != -55.741667 {
		t.Errorf("center got (%v,%v); want (53.092625,-55.741667)", ra, dec)
	}
}

func checkTransformConfigError(t *testing.T, hdr map[string]interface{}, what string) {
	_, err := NewTransform(hdr)
	var cfgErr dataerror.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("%v: expected a ConfigError, got: %v", what, err)
	}
}

func Test_TransformRejects(t *testing.T) {
	hdr := tileHeader()
	hdr["ctype1"] = "RA---ZEA"
	checkTransformConfigError(t, hdr, "non-TAN projection")

	hdr = tileHeader()
	delete(hdr, "crval1")
	checkTransformConfigError(t, hdr, "missing crval1")

	hdr = tileHeader()
	hdr["cd1_1"] = 0.0
	hdr["cd2_2"] = 0.0
	checkTransformConfigError(t, hdr, "singular CD matrix")
}
