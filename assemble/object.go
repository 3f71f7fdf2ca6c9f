package assemble

import (
	"github.com/pkg/errors"

	"github.com/shearfit/obsio/v2/config"
	"github.com/shearfit/obsio/v2/core/dataerror"
	"github.com/shearfit/obsio/v2/core/imggrid"
	"github.com/shearfit/obsio/v2/imageflags"
	"github.com/shearfit/obsio/v2/meds"
	"github.com/shearfit/obsio/v2/obs"
)

// PSF stamps carry a flat nominal weight, the fitter only needs the
// weighting to be uniform across the stamp
const psfWeightValue = 1.0e6

// NObj - how many objects the tile has
func (a *Assembler) NObj() int {
	return a.nobj
}

// Object - assembles one object into its coadd-only and multi-epoch
// bundles. Epochs the per-exposure verdicts rejected appear as plane-less
// observations carrying their flags, so callers can see what was
// excluded and why. Band lists keep the reader order
func (a *Assembler) Object(iobj int) (*obs.ObjectBundle, error) {
	if iobj < 0 || iobj >= a.nobj {
		return nil, dataerror.MakeConfigError("object %v out of range, tile has %v", iobj, a.nobj)
	}
	id, err := a.readers[0].ID(iobj)
	if err != nil {
		return nil, err
	}
	number, err := a.readers[0].Number(iobj)
	if err != nil {
		return nil, err
	}

	bundle := &obs.ObjectBundle{
		ID:         id,
		Number:     number,
		Index:      iobj,
		CoaddRun:   a.coaddRun,
		Coadd:      make(obs.MultiBandObsList, len(a.readers)),
		MultiEpoch: make(obs.MultiBandObsList, len(a.readers)),
	}
	for band := range a.readers {
		coadd, multi, err := a.bandObservations(band, iobj, id, number)
		if err != nil {
			return nil, err
		}
		bundle.Coadd[band] = coadd
		bundle.MultiEpoch[band] = multi
	}

	if a.prop != nil {
		if _, err := a.prop.Apply(iobj, number, bundle.Coadd, bundle.MultiEpoch); err != nil {
			return nil, err
		}
	}

	if a.cfg.FlagStellarHaloMasked {
		flags := a.stellarHaloFlags(bundle.Coadd, number)
		if flags == 0 {
			flags = a.stellarHaloFlags(bundle.MultiEpoch, number)
		}
		if flags != 0 {
			a.log.Infof("object %v segmentation touches a masked stellar halo, flagging", id)
			bundle.Flags |= flags
		}
	}

	objectsAssembled.Inc()
	return bundle, nil
}

func (a *Assembler) bandObservations(band int, iobj int, id int64, number int64) (obs.ObsList, obs.ObsList, error) {
	ncut, err := a.readers[band].NCutout(iobj)
	if err != nil {
		return nil, nil, err
	}

	coadd := obs.ObsList{}
	multi := obs.ObsList{}
	for icut := 0; icut < ncut; icut++ {
		o, err := a.observation(band, iobj, icut, id, number)
		if err != nil {
			return nil, nil, err
		}
		if icut == 0 {
			coadd = append(coadd, o)
		} else {
			multi = append(multi, o)
		}
	}
	return coadd, multi, nil
}

// observation - one epoch of one object. A rejected epoch comes back as
// a husk with only Meta filled in
func (a *Assembler) observation(band int, iobj int, icut int, id int64, number int64) (*obs.Observation, error) {
	reader := a.readers[band]

	fileID, err := reader.FileID(iobj, icut)
	if err != nil {
		return nil, err
	}
	if fileID < 0 || fileID >= len(a.infos[band]) {
		return nil, errors.Errorf("object %v cutout %v file id %v outside image info (%v entries)",
			iobj, icut, fileID, len(a.infos[band]))
	}
	info := a.infos[band][fileID]

	origRow, origCol, err := reader.OrigRowCol(iobj, icut)
	if err != nil {
		return nil, err
	}

	meta := obs.Meta{
		ObjectID:   id,
		Number:     number,
		Index:      iobj,
		Band:       band,
		BandName:   a.bandNames[band],
		Epoch:      icut,
		FileID:     fileID,
		ImageID:    info.ImageID,
		ImagePath:  info.ImagePath,
		Magzp:      info.Magzp,
		FluxScale:  1.0,
		Convention: a.cfg.FitterConvention,
		OrigRow:    origRow,
		OrigCol:    origCol,
		Flags:      a.flags[band][fileID],
	}

	if meta.Flags != 0 {
		meta.PSFFlags = meta.Flags & imageflags.PSFGateMask
		a.log.Debugf("    skipping object %v band %v epoch %v, flags %v", id, band, icut, meta.Flags)
		epochsRejected.WithLabelValues(rejectReason(meta.Flags)).Inc()
		return &obs.Observation{Meta: meta}, nil
	}

	psfRes, err := a.psfs.Get(band, iobj, icut, origRow, origCol)
	if err != nil {
		return nil, err
	}
	if psfRes.Flags != 0 {
		meta.Flags |= psfRes.Flags
		meta.PSFFlags = psfRes.Flags
		epochsRejected.WithLabelValues(rejectReason(meta.Flags)).Inc()
		return &obs.Observation{Meta: meta}, nil
	}
	meta.PSFPath = psfRes.Path

	image, err := reader.Cutout(iobj, icut, meds.KindImage)
	if err != nil {
		return nil, err
	}
	weight, err := reader.Cutout(iobj, icut, meds.KindWeight)
	if err != nil {
		return nil, err
	}
	bmask, err := reader.MaskCutout(iobj, icut, meds.KindBmask)
	if err != nil {
		return nil, err
	}
	seg, err := reader.MaskCutout(iobj, icut, meds.KindSeg)
	if err != nil {
		return nil, err
	}
	jac, err := reader.Jacobian(iobj, icut)
	if err != nil {
		return nil, err
	}
	cutRow, cutCol, err := reader.CutoutRowCol(iobj, icut)
	if err != nil {
		return nil, err
	}

	o := &obs.Observation{
		Image:    image,
		Weight:   weight,
		Bmask:    bmask,
		Seg:      seg,
		Jacobian: jac,
		Center:   obs.Point{Row: cutRow, Col: cutCol},
		PSF: &obs.PSFObservation{
			Image:    psfRes.Stamp,
			Weight:   psfWeight(psfRes.Stamp),
			Jacobian: jac.WithCenter(psfRes.Center.Row, psfRes.Center.Col),
			Center:   psfRes.Center,
			Path:     psfRes.Path,
			Width:    psfRes.Width,
		},
		Meta: meta,
	}

	a.calibrate(o, info)
	a.convert(o)
	return o, nil
}

func psfWeight(stamp *imggrid.Float64) *imggrid.Float64 {
	w := imggrid.NewFloat64(stamp.Rows(), stamp.Cols())
	w.Fill(psfWeightValue)
	return w
}

// calibrate - rescales the epoch to the reference zeropoint using the
// scale recorded in image_info. Weight is inverse variance, so it moves
// by the inverse square. A missing scale means the file predates the
// column and stays in native units
func (a *Assembler) calibrate(o *obs.Observation, info meds.ImageInfo) {
	scale := info.Scale
	if scale <= 0 || scale == 1.0 {
		return
	}

	o.Image.Scale(scale)
	for _, w := range o.WeightPlanes() {
		w.Scale(1.0 / (scale * scale))
	}
	o.Meta.FluxScale = scale
}

// convert - moves the pixel planes to the configured fitter convention.
// Surface-brightness fitters want flux per unit area, so the image drops
// by the pixel area and the inverse-variance weight rises by its square;
// flux fitters take the native units. Either way a weight left with no
// positive finite pixel gets the one-pixel fallback, so the object
// survives to be flagged downstream instead of killing the run
func (a *Assembler) convert(o *obs.Observation) {
	if a.cfg.FitterConvention == config.ConventionSB {
		area := o.Jacobian.Scale() * o.Jacobian.Scale()
		o.Image.Scale(1.0 / area)
		for _, w := range o.WeightPlanes() {
			w.Scale(area * area)
		}
	}

	if !o.HasPositiveWeight() {
		a.log.Errorf("object %v band %v epoch %v weight has no usable pixel, setting one",
			o.Meta.ObjectID, o.Meta.Band, o.Meta.Epoch)
		o.Weight.Set(0, 0, 1.0)
	}
}

// stellarHaloFlags - an object whose own segmentation pixels carry the
// STAR bit while still weighted sits inside a bright star's halo mask,
// which biases any fit using it. One hit anywhere is enough
func (a *Assembler) stellarHaloFlags(bundle obs.MultiBandObsList, number int64) int64 {
	for _, list := range bundle {
		for _, o := range list {
			if o.Meta.Flags != 0 || o.Bmask == nil || o.Seg == nil || o.Weight == nil {
				continue
			}
			for row := 0; row < o.Bmask.Rows(); row++ {
				for col := 0; col < o.Bmask.Cols(); col++ {
					if o.Bmask.Get(row, col)&a.starBit != 0 &&
						int64(o.Seg.Get(row, col)) == number &&
						o.Weight.Get(row, col) > 0 {
						return imageflags.ObjFlagStellarHaloMasked
					}
				}
			}
		}
	}
	return 0
}
