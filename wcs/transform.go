// Package wcs holds full sky<->pixel transforms for the exposures behind a
// set of cutout files. Cutouts carry only a local Jacobian; placing
// neighbors that fall off a chip needs the real projection, so this
// package loads TAN world coordinate systems from one of three sources
// (pre-baked per-tile JSON, the wcs blobs embedded in the cutout file's
// image_info table, or the original image headers with optional
// astrometric .head refinement) and keeps them per exposure.
package wcs

import (
	"math"
	"strings"

	"github.com/siravan/fits"

	"github.com/shearfit/obsio/v2/core/dataerror"
)

const degToRad = math.Pi / 180.0

// Transform - a TAN (gnomonic) projection. Pixel coordinates follow the
// FITS convention: 1-based, x along NAXIS1 (column axis), y along NAXIS2
// (row axis). World coordinates are degrees
type Transform struct {
	crval1, crval2 float64
	crpix1, crpix2 float64

	// CD matrix in deg/pixel and its inverse
	cd  [2][2]float64
	inv [2][2]float64
}

func headerNumber(hdr map[string]interface{}, key string) (float64, bool) {
	v, ok := hdr[key]
	if !ok {
		return 0, false
	}
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	}
	return 0, false
}

func headerString(hdr map[string]interface{}, key string) (string, bool) {
	v, ok := hdr[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// NewTransform - builds a transform from header key/value pairs, eg a
// parsed wcs JSON blob or a FITS header map. Key lookup is
// case-insensitive since JSON dumps lowercase what FITS uppercases
func NewTransform(hdr map[string]interface{}) (*Transform, error) {
	lower := make(map[string]interface{}, len(hdr))
	for key, v := range hdr {
		lower[strings.ToLower(key)] = v
	}

	// Only the gnomonic projection is supported, which is what survey
	// astrometry produces
	if ctype, ok := headerString(lower, "ctype1"); ok {
		if !strings.Contains(ctype, "TAN") {
			return nil, dataerror.MakeConfigError("unsupported WCS projection: %v", ctype)
		}
	}

	t := &Transform{}
	required := []struct {
		key string
		dst *float64
	}{
		{"crval1", &t.crval1},
		{"crval2", &t.crval2},
		{"crpix1", &t.crpix1},
		{"crpix2", &t.crpix2},
		{"cd1_1", &t.cd[0][0]},
		{"cd2_2", &t.cd[1][1]},
	}
	for _, r := range required {
		v, ok := headerNumber(lower, r.key)
		if !ok {
			return nil, dataerror.MakeConfigError("WCS header is missing %v", r.key)
		}
		*r.dst = v
	}

	// Off-diagonal terms default to zero, axis-aligned writers omit them
	t.cd[0][1], _ = headerNumber(lower, "cd1_2")
	t.cd[1][0], _ = headerNumber(lower, "cd2_1")

	det := t.cd[0][0]*t.cd[1][1] - t.cd[0][1]*t.cd[1][0]
	if det == 0 {
		return nil, dataerror.MakeConfigError("degenerate WCS CD matrix at crval (%v, %v)", t.crval1, t.crval2)
	}
	t.inv[0][0] = t.cd[1][1] / det
	t.inv[0][1] = -t.cd[0][1] / det
	t.inv[1][0] = -t.cd[1][0] / det
	t.inv[1][1] = t.cd[0][0] / det

	return t, nil
}

// FromFITSHeader - builds a transform from a FITS HDU's header keys
func FromFITSHeader(u *fits.Unit) (*Transform, error) {
	return NewTransform(u.Keys)
}

// HasWCSKeys - true if the HDU header carries the reference keys, used to
// find the science HDU in a multi-extension image
func HasWCSKeys(u *fits.Unit) bool {
	_, hasVal := u.Keys["CRVAL1"]
	_, hasPix := u.Keys["CRPIX1"]
	return hasVal && hasPix
}

// Image2Sky - 1-based pixel position to (ra, dec) in degrees
func (t *Transform) Image2Sky(x float64, y float64) (float64, float64) {
	dx := x - t.crpix1
	dy := y - t.crpix2

	// Tangent-plane offsets in radians
	xi := (t.cd[0][0]*dx + t.cd[0][1]*dy) * degToRad
	eta := (t.cd[1][0]*dx + t.cd[1][1]*dy) * degToRad

	ra0 := t.crval1 * degToRad
	dec0 := t.crval2 * degToRad

	denom := math.Cos(dec0) - eta*math.Sin(dec0)
	ra := ra0 + math.Atan2(xi, denom)
	dec := math.Atan2(math.Sin(dec0)+eta*math.Cos(dec0), math.Sqrt(xi*xi+denom*denom))

	raDeg := math.Mod(ra/degToRad+360.0, 360.0)
	return raDeg, dec / degToRad
}

// Sky2Image - (ra, dec) in degrees to 1-based pixel position
func (t *Transform) Sky2Image(ra float64, dec float64) (float64, float64) {
	raRad := ra * degToRad
	decRad := dec * degToRad
	ra0 := t.crval1 * degToRad
	dec0 := t.crval2 * degToRad

	sinDec := math.Sin(decRad)
	cosDec := math.Cos(decRad)
	sinDec0 := math.Sin(dec0)
	cosDec0 := math.Cos(dec0)
	cosDiff := math.Cos(raRad - ra0)

	cosc := sinDec0*sinDec + cosDec0*cosDec*cosDiff
	xi := cosDec * math.Sin(raRad-ra0) / cosc / degToRad
	eta := (cosDec0*sinDec - sinDec0*cosDec*cosDiff) / cosc / degToRad

	x := t.inv[0][0]*xi + t.inv[0][1]*eta + t.crpix1
	y := t.inv[1][0]*xi + t.inv[1][1]*eta + t.crpix2
	return x, y
}

// Center - the reference world position (crval1, crval2) in degrees
func (t *Transform) Center() (float64, float64) {
	return t.crval1, t.crval2
}
