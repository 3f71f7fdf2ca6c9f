// Package psf resolves and loads the point-spread-function model for
// every exposure: stamps embedded in the cutout files, PSFEx eigen-basis
// catalogs, or PIFF models rendered by an injected evaluator. Models that
// fail a quality gate (blacklist, signal-to-noise, unreadable file) are
// never errors, they set sentinel flags on the exposure and the fitter
// moves on without that epoch.
package psf

import (
	"fmt"
	"math"

	"github.com/shearfit/obsio/v2/core/imggrid"
	"github.com/shearfit/obsio/v2/obs"
)

// Model - a PSF realisation source for one exposure. Reconstruct returns
// the raw stamp at an exposure position, Center the stamp center for the
// same position. Center after Reconstruct is a cache hit and returns the
// identical value
type Model interface {
	Reconstruct(row float64, col float64) (*imggrid.Float64, error)
	Center(row float64, col float64) (obs.Point, error)
	// Width - characteristic gaussian sigma in pixels
	Width() float64
	// SourcePath - the file this model came from
	SourcePath() string
}

// Positions repeat across epochs of the same object, so every model
// caches its centers. Keys keep full float precision, a position is only
// the same if it is bit-for-bit the same
type cachedCenters struct {
	centers map[string]obs.Point
}

func makeCachedCenters() cachedCenters {
	return cachedCenters{centers: map[string]obs.Point{}}
}

func centerKey(row float64, col float64) string {
	return fmt.Sprintf("%.16g-%.16g", row, col)
}

func (c *cachedCenters) cacheCenter(row float64, col float64, cen obs.Point) {
	c.centers[centerKey(row, col)] = cen
}

func (c *cachedCenters) cachedCenter(row float64, col float64) (obs.Point, bool) {
	cen, ok := c.centers[centerKey(row, col)]
	return cen, ok
}

// normalizeStamp - scales a stamp in place so its pixels sum to 1
func normalizeStamp(stamp *imggrid.Float64, sourcePath string) error {
	sum := stamp.Sum()
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return fmt.Errorf("PSF stamp from %v has unusable pixel sum %v", sourcePath, sum)
	}
	stamp.Scale(1.0 / sum)
	return nil
}

// momentsSigma - gaussian sigma from the flux-weighted second moments of
// a stamp about its center, sqrt(T/2) with T the trace of the moment
// matrix. Zero when the stamp has no usable flux
func momentsSigma(stamp *imggrid.Float64, cen obs.Point) float64 {
	sum := 0.0
	irr := 0.0
	icc := 0.0
	for row := 0; row < stamp.Rows(); row++ {
		for col := 0; col < stamp.Cols(); col++ {
			v := stamp.Get(row, col)
			if v <= 0 {
				continue
			}
			dRow := float64(row) - cen.Row
			dCol := float64(col) - cen.Col
			sum += v
			irr += v * dRow * dRow
			icc += v * dCol * dCol
		}
	}
	if sum <= 0 {
		return 0
	}
	t := (irr + icc) / sum
	if t <= 0 {
		return 0
	}
	return math.Sqrt(t / 2.0)
}

// trimStamp - cuts a stamp down to (nrow, ncol) around its center,
// clamped to the stamp bounds. The returned center is shifted by the
// start offsets of its own axis
func trimStamp(stamp *imggrid.Float64, cen obs.Point, nrow int, ncol int) (*imggrid.Float64, obs.Point, error) {
	rowStart := int(cen.Row - float64(nrow)/2.0 + 0.5)
	rowEnd := int(cen.Row + float64(nrow)/2.0 + 0.5)
	colStart := int(cen.Col - float64(ncol)/2.0 + 0.5)
	colEnd := int(cen.Col + float64(ncol)/2.0 + 0.5)

	if rowStart < 0 {
		rowStart = 0
	}
	if colStart < 0 {
		colStart = 0
	}
	if rowEnd > stamp.Rows() {
		rowEnd = stamp.Rows()
	}
	if colEnd > stamp.Cols() {
		colEnd = stamp.Cols()
	}
	if rowEnd <= rowStart || colEnd <= colStart {
		return nil, obs.Point{}, fmt.Errorf("PSF trim to %vx%v leaves nothing of a %vx%v stamp centred at (%v,%v)",
			nrow, ncol, stamp.Rows(), stamp.Cols(), cen.Row, cen.Col)
	}

	trimmed, err := stamp.SubGrid(rowStart, colStart, rowEnd-rowStart, colEnd-colStart)
	if err != nil {
		return nil, obs.Point{}, err
	}
	newCen := obs.Point{
		Row: cen.Row - float64(rowStart),
		Col: cen.Col - float64(colStart),
	}
	return trimmed, newCen, nil
}
