package maskprop

import (
	"github.com/shearfit/obsio/v2/core/dataerror"
	"github.com/shearfit/obsio/v2/core/imggrid"
	"github.com/shearfit/obsio/v2/core/logger"
	"github.com/shearfit/obsio/v2/imageflags"
	"github.com/shearfit/obsio/v2/meds"
	"github.com/shearfit/obsio/v2/obs"
)

// Reprojection onto a cutout can shift a mask edge by up to a pixel, so
// the mask is grown before it is applied
const dilateRounds = 2

// Propagator - cross-band saturated-star masking for one set of cutout
// files. Construction resolves the badpix categories once; every object
// is then handled from fresh grids, so a failure on one object cannot
// leak into the next
type Propagator struct {
	readers  []meds.Reader
	rule     Rule
	log      logger.ILogger
	previews *PreviewWriter
}

// NewPropagator - readers in band order. The first band's coadd defines
// the frame combined masks are built in
func NewPropagator(readers []meds.Reader, scheme imageflags.Scheme, ignore []string, log logger.ILogger) (*Propagator, error) {
	if len(readers) == 0 {
		return nil, dataerror.MakeConfigError("mask propagation needs at least one MEDS reader")
	}
	rule, err := MakeRule(scheme, ignore)
	if err != nil {
		return nil, err
	}
	return &Propagator{readers: readers, rule: rule, log: log}, nil
}

// WithPreviews - QA previews of every propagated mask get written through
// the given writer
func (p *Propagator) WithPreviews(w *PreviewWriter) *Propagator {
	p.previews = w
	return p
}

// CombinedMask - the union of every band's reduced coadd mask for one
// object, in the first band's coadd frame. Bands beyond the first are
// reprojected before they are folded in; a band with no coadd cutout for
// this object contributes nothing. A nil grid with no error means the
// first band has no coadd cutout to define the frame
func (p *Propagator) CombinedMask(iobj int) (*imggrid.Int32, Frame, error) {
	frame, err := p.coaddFrame(p.readers[0], iobj)
	if err != nil || frame == nil {
		return nil, Frame{}, err
	}

	var combined *imggrid.Int32
	for band, reader := range p.readers {
		bandFrame := frame
		if band > 0 {
			bandFrame, err = p.coaddFrame(reader, iobj)
			if err != nil {
				return nil, Frame{}, err
			}
			if bandFrame == nil {
				continue
			}
		}

		bmask, err := reader.MaskCutout(iobj, 0, meds.KindBmask)
		if err != nil {
			return nil, Frame{}, err
		}
		reduced := p.rule.Reduce(bmask)

		if combined == nil {
			combined = imggrid.NewInt32(reduced.Rows(), reduced.Cols())
		}
		if reduced.CountSet(0) == 0 {
			continue
		}
		if band > 0 {
			reduced = ResampleNearest(reduced, *bandFrame, combined.Rows(), combined.Cols(), *frame)
		}
		for row := 0; row < combined.Rows(); row++ {
			for col := 0; col < combined.Cols(); col++ {
				if reduced.Get(row, col) != 0 {
					combined.Set(row, col, 1)
				}
			}
		}
	}
	return combined, *frame, nil
}

// coaddFrame - the coadd epoch's frame for one band, nil when the object
// has no cutouts there
func (p *Propagator) coaddFrame(reader meds.Reader, iobj int) (*Frame, error) {
	ncut, err := reader.NCutout(iobj)
	if err != nil {
		return nil, err
	}
	if ncut == 0 {
		return nil, nil
	}

	row, col, err := reader.CutoutRowCol(iobj, 0)
	if err != nil {
		return nil, err
	}
	jac, err := reader.Jacobian(iobj, 0)
	if err != nil {
		return nil, err
	}
	return &Frame{Center: obs.Point{Row: row, Col: col}, Jacobian: jac}, nil
}

// Apply - builds the combined mask for one object and zeroes the weight
// planes of every usable observation in the given bundles wherever the
// dilated mask lands on a pixel outside the object's own segmentation
// entry. Returns how many pixels were zeroed across all observations
func (p *Propagator) Apply(iobj int, number int64, bundles ...obs.MultiBandObsList) (int, error) {
	combined, frame, err := p.CombinedMask(iobj)
	if err != nil || combined == nil {
		return 0, err
	}
	if combined.CountSet(0) == 0 {
		return 0, nil
	}

	total := 0
	for _, bundle := range bundles {
		for _, list := range bundle {
			for _, o := range list {
				zeroed := p.applyOne(o, number, combined, frame)
				total += zeroed
			}
		}
	}
	if total > 0 {
		weightPixelsZeroed.Add(float64(total))
	}
	return total, nil
}

func (p *Propagator) applyOne(o *obs.Observation, number int64, combined *imggrid.Int32, frame Frame) int {
	if o.Meta.Flags != 0 || o.Seg == nil {
		return 0
	}
	planes := o.WeightPlanes()
	if len(planes) == 0 {
		return 0
	}

	projected := ResampleNearest(combined, frame, o.Seg.Rows(), o.Seg.Cols(),
		Frame{Center: o.Center, Jacobian: o.Jacobian})
	mask := Dilate(projected, dilateRounds)

	zeroed := 0
	for row := 0; row < mask.Rows(); row++ {
		for col := 0; col < mask.Cols(); col++ {
			if mask.Get(row, col) == 0 || int64(o.Seg.Get(row, col)) == number {
				continue
			}
			for _, w := range planes {
				w.Set(row, col, 0)
			}
			zeroed++
		}
	}

	if zeroed > 0 {
		p.log.Infof("    masked %v pixels of object %v band %v epoch %v, saturated star in some band",
			zeroed, o.Meta.ObjectID, o.Meta.Band, o.Meta.Epoch)
		if p.previews != nil {
			if err := p.previews.WriteObservation(o, mask); err != nil {
				// QA output only, a failed preview must not fail the object
				p.log.Errorf("Failed to write mask preview for object %v: %v", o.Meta.ObjectID, err)
			}
		}
	}
	return zeroed
}
