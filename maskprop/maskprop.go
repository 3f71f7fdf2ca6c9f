// Package maskprop propagates saturated-star masking across bands. A
// star saturated in one band poisons the same sky pixels in every band,
// but each band's bitmask only records its own defects. The propagator
// reduces each band's coadd bitmask to its saturated-star pixels,
// combines the reductions into one mask in the first band's coadd frame,
// and zeroes the weight of every affected pixel in every usable cutout
// of the object, after reprojection onto each cutout, dilation to cover
// resampling edges, and a carve-out for pixels the object's own
// segmentation entry claims.
package maskprop

import (
	"github.com/shearfit/obsio/v2/core/imggrid"
	"github.com/shearfit/obsio/v2/imageflags"
	"github.com/shearfit/obsio/v2/obs"
)

// Rule - the resolved bitmask categories driving reduction. A pixel
// survives reduction when a saturation-type defect coincides with a star
// and no ignored category is present
type Rule struct {
	SatInterp int32
	Star      int32
	Ignore    int32
}

// MakeRule - resolves the fixed SATURATE/INTERP/STAR categories and the
// configured ignore list against a badpix scheme
func MakeRule(scheme imageflags.Scheme, ignore []string) (Rule, error) {
	satInterp, err := scheme.Bits("SATURATE", "INTERP")
	if err != nil {
		return Rule{}, err
	}
	star, err := scheme.Bit("STAR")
	if err != nil {
		return Rule{}, err
	}
	ignoreMask, err := scheme.Bits(ignore...)
	if err != nil {
		return Rule{}, err
	}
	return Rule{SatInterp: satInterp, Star: star, Ignore: ignoreMask}, nil
}

// Reduce - the saturated-star pixels of one bitmask plane as a 0/1 grid
func (r Rule) Reduce(bmask *imggrid.Int32) *imggrid.Int32 {
	out := imggrid.NewInt32(bmask.Rows(), bmask.Cols())
	for row := 0; row < bmask.Rows(); row++ {
		for col := 0; col < bmask.Cols(); col++ {
			bits := bmask.Get(row, col)
			if bits&r.SatInterp != 0 && bits&r.Star != 0 && bits&r.Ignore == 0 {
				out.Set(row, col, 1)
			}
		}
	}
	return out
}

// Frame - where a stamp sits on the shared tangent plane: the object
// center within the stamp and the local WCS. Resampling anchors the
// Jacobian at the center, so two frames of the same object agree on
// (u, v) = (0, 0)
type Frame struct {
	Center   obs.Point
	Jacobian obs.Jacobian
}

func (f Frame) anchored() obs.Jacobian {
	return f.Jacobian.WithCenter(f.Center.Row, f.Center.Col)
}

// Dilate - grows the nonzero region of a mask. Each round marks the
// 8-connected neighbors of every pixel nonzero at the start of the
// round, so a lone pixel covers a 3x3 block after one round and 5x5
// after two. The input is not modified
func Dilate(mask *imggrid.Int32, rounds int) *imggrid.Int32 {
	out := mask.Copy()
	for round := 0; round < rounds; round++ {
		snapshot := out.Copy()
		for row := 0; row < out.Rows(); row++ {
			for col := 0; col < out.Cols(); col++ {
				if snapshot.Get(row, col) == 0 {
					continue
				}
				for dr := -1; dr <= 1; dr++ {
					for dc := -1; dc <= 1; dc++ {
						r, c := row+dr, col+dc
						if r < 0 || r >= out.Rows() || c < 0 || c >= out.Cols() {
							continue
						}
						out.Set(r, c, 1)
					}
				}
			}
		}
	}
	return out
}
