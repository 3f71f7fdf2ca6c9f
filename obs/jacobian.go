// Package obs holds the observation bundle types handed to fitters: local
// WCS Jacobians, per-epoch observations with their pixel planes and PSFs,
// and the per-band / multi-band list containers. Everything here is plain
// data plus a little geometry, built by the assemble package and read-only
// once returned.
package obs

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/shearfit/obsio/v2/core/dataerror"
)

// Jacobian - linearised WCS about a reference pixel. Maps pixel offsets
// from (Row0, Col0) to tangent-plane offsets (u, v) in arcsec:
//
//	u = DudRow*(row-Row0) + DudCol*(col-Col0)
//	v = DvdRow*(row-Row0) + DvdCol*(col-Col0)
//
// Always build one through MakeJacobian, which computes the inverse once
// and rejects degenerate matrices
type Jacobian struct {
	Row0, Col0 float64

	DudRow, DudCol float64
	DvdRow, DvdCol float64

	det float64
	inv *mat.Dense
}

// MakeJacobian - builds a Jacobian anchored at (row0, col0). A singular
// derivative matrix means the WCS is degenerate there, which is fatal
func MakeJacobian(row0 float64, col0 float64, dudrow float64, dudcol float64, dvdrow float64, dvdcol float64) (Jacobian, error) {
	fwd := mat.NewDense(2, 2, []float64{dudrow, dudcol, dvdrow, dvdcol})

	var inv mat.Dense
	err := inv.Inverse(fwd)
	if err != nil {
		return Jacobian{}, dataerror.MakeConfigError("degenerate jacobian at (%v,%v): %v", row0, col0, err)
	}

	return Jacobian{
		Row0:   row0,
		Col0:   col0,
		DudRow: dudrow,
		DudCol: dudcol,
		DvdRow: dvdrow,
		DvdCol: dvdcol,
		det:    mat.Det(fwd),
		inv:    &inv,
	}, nil
}

// Apply - pixel position to tangent-plane offset in arcsec
func (j Jacobian) Apply(row float64, col float64) (float64, float64) {
	dRow := row - j.Row0
	dCol := col - j.Col0
	u := j.DudRow*dRow + j.DudCol*dCol
	v := j.DvdRow*dRow + j.DvdCol*dCol
	return u, v
}

// Invert - tangent-plane offset in arcsec back to pixel position
func (j Jacobian) Invert(u float64, v float64) (float64, float64) {
	row := j.Row0 + j.inv.At(0, 0)*u + j.inv.At(0, 1)*v
	col := j.Col0 + j.inv.At(1, 0)*u + j.inv.At(1, 1)*v
	return row, col
}

// Det - determinant of the derivative matrix
func (j Jacobian) Det() float64 {
	return j.det
}

// Scale - linear pixel scale in arcsec/pixel, sqrt of the pixel area
func (j Jacobian) Scale() float64 {
	return math.Sqrt(math.Abs(j.det))
}

// WithCenter - the same transform re-anchored at a new reference pixel.
// The inverse is shared, it only depends on the derivatives
func (j Jacobian) WithCenter(row float64, col float64) Jacobian {
	moved := j
	moved.Row0 = row
	moved.Col0 = col
	return moved
}
