package obs

import (
	"math"

	"github.com/shearfit/obsio/v2/core/imggrid"
)

// Point - a (row, col) pixel position
type Point struct {
	Row float64
	Col float64
}

// Meta - everything a fitter or a QA pass wants to know about where an
// observation came from and what happened to it on the way
type Meta struct {
	ObjectID int64
	Number   int64 // id in the segmentation maps
	Index    int   // object index in the MEDS files

	Band     int
	BandName string
	Epoch    int // 0 is the coadd
	FileID   int
	ImageID  int64

	ImagePath string
	PSFPath   string

	Magzp      float64
	FluxScale  float64 // zero-point rescale applied relative to the reference
	Convention string  // "flux" or "sb"

	OrigRow float64
	OrigCol float64

	// Epoch-level sentinel flags. A nonzero value disqualified the epoch
	Flags    int64
	PSFFlags int64

	// The neighbor-off-chip placement marks observations it synthesised
	OffChip bool
}

// PSFObservation - a PSF realisation at the object position
type PSFObservation struct {
	Image    *imggrid.Float64
	Weight   *imggrid.Float64
	Jacobian Jacobian
	Center   Point
	Path     string
	Width    float64
}

// Observation - one epoch of one object in one band: pixel planes,
// geometry, PSF and provenance. WeightRaw and WeightUS are optional
// variants some weighting styles carry, nil when absent
type Observation struct {
	Image     *imggrid.Float64
	Weight    *imggrid.Float64
	WeightRaw *imggrid.Float64
	WeightUS  *imggrid.Float64
	Bmask     *imggrid.Int32
	Seg       *imggrid.Int32

	Jacobian Jacobian
	Center   Point

	PSF *PSFObservation

	Meta Meta
}

// WeightPlanes - the weight variants present on this observation, main
// plane first. Conversions and mask zeroing walk these
func (o *Observation) WeightPlanes() []*imggrid.Float64 {
	planes := []*imggrid.Float64{}
	for _, plane := range []*imggrid.Float64{o.Weight, o.WeightRaw, o.WeightUS} {
		if plane != nil {
			planes = append(planes, plane)
		}
	}
	return planes
}

// HasPositiveWeight - true if any main-weight pixel is positive and
// finite. A plane failing this is degenerate and gets the one-pixel
// fallback rather than killing the run
func (o *Observation) HasPositiveWeight() bool {
	if o.Weight == nil {
		return false
	}
	for _, w := range o.Weight.Values() {
		if w > 0 && !math.IsInf(w, 0) && !math.IsNaN(w) {
			return true
		}
	}
	return false
}

// ObsList - all usable epochs of one object in one band
type ObsList []*Observation

// MultiBandObsList - one ObsList per band, band order fixed at assembly
type MultiBandObsList []ObsList

// ObjectBundle - everything assembled for one object: the coadd-only and
// the multi-epoch bundle side by side, plus the object-level rollup.
// Fitters that work on the coadd take Coadd, everyone else takes
// MultiEpoch; the identity fields are the same either way
type ObjectBundle struct {
	ID       int64
	Number   int64
	Index    int
	CoaddRun string

	// Object-level flags, eg the stellar halo check
	Flags int64

	Coadd      MultiBandObsList
	MultiEpoch MultiBandObsList
}

// NumObservations - total epochs across all bands
func (m MultiBandObsList) NumObservations() int {
	count := 0
	for _, list := range m {
		count += len(list)
	}
	return count
}
