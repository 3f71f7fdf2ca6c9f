package maskprop

import (
	"math"

	"github.com/shearfit/obsio/v2/core/imggrid"
)

// Resampling between two stamps of the same object. Every destination
// pixel is pushed through the destination frame onto the tangent plane
// and pulled back through the source frame; whatever source pixel that
// lands on supplies the value. Destination pixels mapping outside the
// source stay zero.

// ResampleNearest - mask resampling. Bitmask values cannot be blended,
// so each destination pixel takes the nearest source pixel's value
func ResampleNearest(src *imggrid.Int32, srcFrame Frame, rows int, cols int, dstFrame Frame) *imggrid.Int32 {
	srcJac := srcFrame.anchored()
	dstJac := dstFrame.anchored()

	out := imggrid.NewInt32(rows, cols)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			u, v := dstJac.Apply(float64(row), float64(col))
			srcRow, srcCol := srcJac.Invert(u, v)

			r := int(math.Round(srcRow))
			c := int(math.Round(srcCol))
			if r < 0 || r >= src.Rows() || c < 0 || c >= src.Cols() {
				continue
			}
			out.Set(row, col, src.Get(r, c))
		}
	}
	return out
}

// ResampleBilinear - float-plane resampling with bilinear interpolation
// over the four surrounding source pixels. Corners falling outside the
// source contribute zero
func ResampleBilinear(src *imggrid.Float64, srcFrame Frame, rows int, cols int, dstFrame Frame) *imggrid.Float64 {
	srcJac := srcFrame.anchored()
	dstJac := dstFrame.anchored()

	out := imggrid.NewFloat64(rows, cols)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			u, v := dstJac.Apply(float64(row), float64(col))
			srcRow, srcCol := srcJac.Invert(u, v)

			r0 := int(math.Floor(srcRow))
			c0 := int(math.Floor(srcCol))
			fr := srcRow - float64(r0)
			fc := srcCol - float64(c0)

			value := 0.0
			for _, corner := range []struct {
				r, c   int
				weight float64
			}{
				{r0, c0, (1 - fr) * (1 - fc)},
				{r0, c0 + 1, (1 - fr) * fc},
				{r0 + 1, c0, fr * (1 - fc)},
				{r0 + 1, c0 + 1, fr * fc},
			} {
				if corner.r < 0 || corner.r >= src.Rows() || corner.c < 0 || corner.c >= src.Cols() {
					continue
				}
				value += corner.weight * src.Get(corner.r, corner.c)
			}
			out.Set(row, col, value)
		}
	}
	return out
}
