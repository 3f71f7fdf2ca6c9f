package psf

import (
	"github.com/shearfit/obsio/v2/core/imggrid"
	"github.com/shearfit/obsio/v2/obs"
)

// stampModel - a PSF stamp stored directly in the cutout file alongside
// the epoch it belongs to. Position independent, the stamp and its center
// were fixed at MEDS-making time
type stampModel struct {
	stamp *imggrid.Float64
	cen   obs.Point
	path  string
	width float64

	cachedCenters
}

func newStampModel(stamp *imggrid.Float64, cenRow float64, cenCol float64, path string) *stampModel {
	cen := obs.Point{Row: cenRow, Col: cenCol}
	return &stampModel{
		stamp:         stamp,
		cen:           cen,
		path:          path,
		width:         momentsSigma(stamp, cen),
		cachedCenters: makeCachedCenters(),
	}
}

func (m *stampModel) Reconstruct(row float64, col float64) (*imggrid.Float64, error) {
	m.cacheCenter(row, col, m.cen)
	return m.stamp.Copy(), nil
}

func (m *stampModel) Center(row float64, col float64) (obs.Point, error) {
	if cen, ok := m.cachedCenter(row, col); ok {
		return cen, nil
	}
	m.cacheCenter(row, col, m.cen)
	return m.cen, nil
}

func (m *stampModel) Width() float64 {
	return m.width
}

func (m *stampModel) SourcePath() string {
	return m.path
}
