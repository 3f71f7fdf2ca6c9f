package assemble

import (
	"testing"

	"github.com/shearfit/obsio/v2/config"
	"github.com/shearfit/obsio/v2/core/imggrid"
	"github.com/shearfit/obsio/v2/imageflags"
	"github.com/shearfit/obsio/v2/meds"
)

// soloReader - a single-band, single-object, coadd-only tile for tests
// that exercise one conversion path at a time
func soloReader(mutate func(*meds.MemCutout)) *meds.MemReader {
	cut := tileCutout(0, 3)
	if mutate != nil {
		mutate(&cut)
	}
	return &meds.MemReader{
		SourcePath: "/astro/data/meds/y3v02/DES0347-5540/DES0347-5540-r-meds-y3v02.fits.fz",
		MetaData:   meds.Meta{MagzpRef: 30, BaseDir: "/astro/data", MedsConf: "y3v02"},
		Images: []meds.ImageInfo{
			{ImageID: 900, ImagePath: "coadd/DES0347-5540_r.fits", Magzp: 30, Scale: 1},
		},
		Objects: []meds.MemObject{
			{ID: 101, Number: 3, BoxSize: tileBox, Cutouts: []meds.MemCutout{cut}},
		},
	}
}

// Surface-brightness conversion divides the image by the pixel area and
// multiplies the weight by its square, and undoing it restores the
// native values exactly. Pixel scale 0.5 keeps every factor a power of
// two, so the comparison needs no tolerance
func Test_ConvertSBRoundTrip(t *testing.T) {
	cfg := tileConfig()
	cfg.FitterConvention = config.ConventionSB

	a := makeAssembler(t, cfg, soloReader(func(cut *meds.MemCutout) {
		cut.DuDrow, cut.DvDcol = 0.5, 0.5
	}))
	bundle, err := a.Object(0)
	if err != nil {
		t.Fatalf("Object failed: %v", err)
	}

	o := bundle.Coadd[0][0]
	if o.Meta.Convention != config.ConventionSB {
		t.Errorf("convention %q, want sb", o.Meta.Convention)
	}
	if v := o.Image.Get(3, 3); v != 32 {
		t.Errorf("sb image %v, want 8/0.25 = 32", v)
	}
	if v := o.Weight.Get(3, 3); v != 0.0625 {
		t.Errorf("sb weight %v, want 0.25^2 = 0.0625", v)
	}

	area := o.Jacobian.Scale() * o.Jacobian.Scale()
	o.Image.Scale(area)
	o.Weight.Scale(1 / (area * area))
	for i, v := range o.Image.Values() {
		if v != 8 {
			t.Fatalf("image pixel %v is %v after undoing, want 8", i, v)
		}
	}
	for i, v := range o.Weight.Values() {
		if v != 1 {
			t.Fatalf("weight pixel %v is %v after undoing, want 1", i, v)
		}
	}
}

// A weight plane with no usable pixel gets one, so the object survives
// to be flagged downstream instead of failing the whole run
func Test_ConvertDegenerateWeight(t *testing.T) {
	a := makeAssembler(t, tileConfig(), soloReader(func(cut *meds.MemCutout) {
		cut.Weight.Fill(0)
	}))
	bundle, err := a.Object(0)
	if err != nil {
		t.Fatalf("Object failed: %v", err)
	}

	o := bundle.Coadd[0][0]
	if v := o.Weight.Get(0, 0); v != 1 {
		t.Errorf("fallback weight %v, want 1", v)
	}
	if v := o.Weight.Get(0, 1); v != 0 {
		t.Errorf("weight (0,1) = %v, the fallback must touch one pixel only", v)
	}
}

func Test_StellarHaloFlagging(t *testing.T) {
	cfg := tileConfig()
	cfg.FlagStellarHaloMasked = true

	// STAR on a pixel the object's segmentation claims, weight intact
	a := makeAssembler(t, cfg, soloReader(func(cut *meds.MemCutout) {
		cut.Bmask.Set(4, 4, 32)
	}))
	bundle, err := a.Object(0)
	if err != nil {
		t.Fatalf("Object failed: %v", err)
	}
	if bundle.Flags != imageflags.ObjFlagStellarHaloMasked {
		t.Errorf("bundle flags %v, want %v", bundle.Flags, imageflags.ObjFlagStellarHaloMasked)
	}

	// STAR outside the object's segmentation is someone else's problem
	a = makeAssembler(t, cfg, soloReader(func(cut *meds.MemCutout) {
		cut.Bmask.Set(0, 0, 32)
	}))
	if bundle, err = a.Object(0); err != nil {
		t.Fatalf("Object failed: %v", err)
	}
	if bundle.Flags != 0 {
		t.Errorf("bundle flags %v for an unclaimed star pixel, want 0", bundle.Flags)
	}
}

// Saturated-star propagation wired all the way through assembly: a star
// saturated only in the second band strips weight from the first band's
// cutouts, except where the object's segmentation protects them
func Test_AssemblePropagation(t *testing.T) {
	cfg := tileConfig()
	cfg.PropagateStarFlags = true

	ri := tileReader("i")
	ri.Objects[0].Cutouts[0].Bmask.Set(2, 2, 2|32) // y3 SATURATE|STAR

	a := makeAssembler(t, cfg, tileReader("r"), ri)
	bundle, err := a.Object(0)
	if err != nil {
		t.Fatalf("Object failed: %v", err)
	}

	for band := 0; band < 2; band++ {
		// The single epoch was calibrated by scale 2, so its unmasked
		// weight is 0.25 rather than the coadd's 1
		for _, c := range []struct {
			name     string
			w        *imggrid.Float64
			unmasked float64
		}{
			{"coadd", bundle.Coadd[band][0].Weight, 1},
			{"single epoch", bundle.MultiEpoch[band][0].Weight, 0.25},
		} {
			if v := c.w.Get(2, 2); v != 0 {
				t.Errorf("band %v %v weight (2,2) = %v, want 0", band, c.name, v)
			}
			if v := c.w.Get(4, 4); v != c.unmasked {
				t.Errorf("band %v %v segmentation-protected weight = %v, want %v", band, c.name, v, c.unmasked)
			}
			if v := c.w.Get(8, 8); v != c.unmasked {
				t.Errorf("band %v %v weight outside the mask = %v, want %v", band, c.name, v, c.unmasked)
			}
		}
	}
}
