package assemble

import (
	"errors"
	"math"
	"testing"

	"github.com/shearfit/obsio/v2/config"
	"github.com/shearfit/obsio/v2/core/dataerror"
	"github.com/shearfit/obsio/v2/core/fileaccess"
	"github.com/shearfit/obsio/v2/core/imggrid"
	"github.com/shearfit/obsio/v2/core/logger"
	"github.com/shearfit/obsio/v2/imageflags"
	"github.com/shearfit/obsio/v2/meds"
)

const tileBox = 9

// tileCutout - a fully populated epoch: flat image and weight, clean
// masks, the object's segmentation pixel at the stamp center, an in-file
// PSF stamp holding a delta
func tileCutout(fileID int, number int64) meds.MemCutout {
	image := imggrid.NewFloat64(tileBox, tileBox)
	image.Fill(8.0)
	weight := imggrid.NewFloat64(tileBox, tileBox)
	weight.Fill(1.0)
	seg := imggrid.NewInt32(tileBox, tileBox)
	seg.Set(4, 4, int32(number))

	psfStamp := imggrid.NewFloat64(5, 5)
	psfStamp.Set(2, 2, 2.0)

	return meds.MemCutout{
		FileID:    fileID,
		OrigRow:   1000,
		OrigCol:   2000,
		CutoutRow: 4,
		CutoutCol: 4,
		DuDrow:    0.263,
		DvDcol:    0.263,
		Image:     image,
		Weight:    weight,
		Bmask:     imggrid.NewInt32(tileBox, tileBox),
		Seg:       seg,
		PSF:       psfStamp,
		PSFRow:    2,
		PSFCol:    2,
	}
}

// tileReader - one band of a two-object tile. Object 101 has the coadd
// plus two single-epoch cutouts, the second from an exposure flagged in
// image_info; object 202 only ever landed on the coadd
func tileReader(band string) *meds.MemReader {
	return &meds.MemReader{
		SourcePath: "/astro/data/meds/y3v02/DES0347-5540/DES0347-5540-" + band + "-meds-y3v02.fits.fz",
		MetaData:   meds.Meta{MagzpRef: 30, BaseDir: "/astro/data", MedsConf: "y3v02"},
		Images: []meds.ImageInfo{
			{ImageID: 900, ImagePath: "coadd/DES0347-5540_" + band + ".fits", Magzp: 30, Scale: 1, PositionOffset: 1},
			{ImageID: 901, ImagePath: "red/D00239652_" + band + "_c31_r2362p01_immasked.fits.fz", Magzp: 31.5, Scale: 2},
			{ImageID: 902, ImagePath: "red/D00503010_" + band + "_c45_r2362p01_immasked.fits.fz", ImageFlags: 1, Magzp: 31.5, Scale: 1},
		},
		Objects: []meds.MemObject{
			{ID: 101, Number: 3, BoxSize: tileBox, Cutouts: []meds.MemCutout{
				tileCutout(0, 3), tileCutout(1, 3), tileCutout(2, 3),
			}},
			{ID: 202, Number: 4, BoxSize: tileBox, Cutouts: []meds.MemCutout{
				tileCutout(0, 4),
			}},
		},
	}
}

func tileConfig() config.Config {
	return config.Config{
		PSFType:          config.PSFTypeInFile,
		ImageFlags2Check: 1,
		FitCoadd:         true,
		BadpixScheme:     "y3",
		WCSSource:        config.WCSSourceMEDS,
		FitterConvention: config.ConventionFlux,
	}
}

func makeAssembler(t *testing.T, cfg config.Config, readers ...meds.Reader) *Assembler {
	t.Helper()
	a, err := NewAssembler(cfg, fileaccess.MakeMemAccess(), "data", readers, nil, &logger.NullLogger{})
	if err != nil {
		t.Fatalf("NewAssembler failed: %v", err)
	}
	return a
}

func Test_AssembleObject(t *testing.T) {
	a := makeAssembler(t, tileConfig(), tileReader("r"), tileReader("i"))
	if a.NObj() != 2 {
		t.Fatalf("NObj = %v, want 2", a.NObj())
	}

	bundle, err := a.Object(0)
	if err != nil {
		t.Fatalf("Object failed: %v", err)
	}

	if bundle.ID != 101 || bundle.Number != 3 || bundle.Index != 0 {
		t.Errorf("bundle identity %v/%v/%v, want 101/3/0", bundle.ID, bundle.Number, bundle.Index)
	}
	if bundle.CoaddRun != "DES0347-5540" {
		t.Errorf("coadd run %q, want DES0347-5540", bundle.CoaddRun)
	}
	if len(bundle.Coadd) != 2 || len(bundle.MultiEpoch) != 2 {
		t.Fatalf("bundle has %v/%v band lists, want 2/2", len(bundle.Coadd), len(bundle.MultiEpoch))
	}

	for band, name := range []string{"r", "i"} {
		if len(bundle.Coadd[band]) != 1 {
			t.Fatalf("band %v coadd list has %v epochs, want 1", band, len(bundle.Coadd[band]))
		}
		if len(bundle.MultiEpoch[band]) != 2 {
			t.Fatalf("band %v multi-epoch list has %v epochs, want 2", band, len(bundle.MultiEpoch[band]))
		}

		coadd := bundle.Coadd[band][0]
		if coadd.Meta.Flags != 0 || coadd.Meta.Epoch != 0 || coadd.Meta.BandName != name {
			t.Errorf("band %v coadd meta: flags %v epoch %v name %q", band, coadd.Meta.Flags, coadd.Meta.Epoch, coadd.Meta.BandName)
		}
		if v := coadd.Image.Get(0, 0); v != 8 {
			t.Errorf("band %v coadd image %v, want native 8", band, v)
		}
		if coadd.Meta.FluxScale != 1 {
			t.Errorf("band %v coadd flux scale %v, want 1", band, coadd.Meta.FluxScale)
		}

		// The usable single epoch gets rescaled to the reference zeropoint
		se := bundle.MultiEpoch[band][0]
		if se.Meta.Flags != 0 || se.Meta.Epoch != 1 || se.Meta.FileID != 1 {
			t.Fatalf("band %v epoch 1 meta: flags %v epoch %v file %v", band, se.Meta.Flags, se.Meta.Epoch, se.Meta.FileID)
		}
		if v := se.Image.Get(0, 0); v != 16 {
			t.Errorf("band %v epoch 1 image %v, want 16 after zeropoint scaling", band, v)
		}
		if v := se.Weight.Get(0, 0); v != 0.25 {
			t.Errorf("band %v epoch 1 weight %v, want 0.25 after zeropoint scaling", band, v)
		}
		if se.Meta.FluxScale != 2 || se.Meta.Magzp != 31.5 {
			t.Errorf("band %v epoch 1 flux scale %v magzp %v", band, se.Meta.FluxScale, se.Meta.Magzp)
		}

		// The flagged exposure survives only as a husk recording why
		husk := bundle.MultiEpoch[band][1]
		if husk.Meta.Flags != imageflags.ImageFlagsSet {
			t.Errorf("band %v epoch 2 flags %v, want %v", band, husk.Meta.Flags, imageflags.ImageFlagsSet)
		}
		if husk.Image != nil || husk.PSF != nil {
			t.Errorf("band %v epoch 2 husk carries pixel planes", band)
		}

		// PSF attached, normalized, flat weight, its own anchor
		if coadd.PSF == nil {
			t.Fatalf("band %v coadd has no PSF", band)
		}
		if sum := coadd.PSF.Image.Sum(); math.Abs(sum-1.0) > 1e-12 {
			t.Errorf("band %v PSF sum %v, want 1", band, sum)
		}
		if v := coadd.PSF.Weight.Get(0, 0); v != psfWeightValue {
			t.Errorf("band %v PSF weight %v, want %v", band, v, psfWeightValue)
		}
		if coadd.PSF.Jacobian.Row0 != 2 || coadd.PSF.Jacobian.Col0 != 2 {
			t.Errorf("band %v PSF jacobian anchored at (%v,%v), want the PSF center", band, coadd.PSF.Jacobian.Row0, coadd.PSF.Jacobian.Col0)
		}
	}

	// The second object only ever landed on the coadd
	bundle, err = a.Object(1)
	if err != nil {
		t.Fatalf("Object(1) failed: %v", err)
	}
	if len(bundle.Coadd[0]) != 1 || len(bundle.MultiEpoch[0]) != 0 {
		t.Errorf("object 1 has %v coadd / %v single epochs, want 1/0", len(bundle.Coadd[0]), len(bundle.MultiEpoch[0]))
	}

	if _, err = a.Object(5); err == nil {
		t.Errorf("expected an error for an out-of-range object")
	}
}

func Test_AssembleBandMismatch(t *testing.T) {
	short := tileReader("i")
	short.Objects = short.Objects[:1]

	_, err := NewAssembler(tileConfig(), fileaccess.MakeMemAccess(), "data",
		[]meds.Reader{tileReader("r"), short}, nil, &logger.NullLogger{})
	var confErr dataerror.ConfigError
	if !errors.As(err, &confErr) {
		t.Errorf("object count mismatch gave %v, want a config error", err)
	}

	swapped := tileReader("i")
	swapped.Objects[0].ID = 999
	_, err = NewAssembler(tileConfig(), fileaccess.MakeMemAccess(), "data",
		[]meds.Reader{tileReader("r"), swapped}, nil, &logger.NullLogger{})
	if !errors.As(err, &confErr) {
		t.Errorf("object id mismatch gave %v, want a config error", err)
	}
}

func Test_BandNameFromPath(t *testing.T) {
	cases := map[string]string{
		"/d/DES0347-5540/DES0347-5540-r-meds-y3v02.fits.fz": "r",
		"DES2329+0001-Y-meds-v1.fits":                       "Y",
		"whatever.fits":                                     "",
	}
	for path, want := range cases {
		if got := bandNameFromPath(path); got != want {
			t.Errorf("bandNameFromPath(%v) = %q, want %q", path, got, want)
		}
	}
}

func Test_CoaddRunFromPath(t *testing.T) {
	run := coaddRunFromPath("/astro/data/meds/y3v02/DES0347-5540/file.fits.fz", "", "/astro/data")
	if run != "DES0347-5540" {
		t.Errorf("coadd run %q, want DES0347-5540", run)
	}
	if run = coaddRunFromPath("/other/root/file.fits.fz", "/astro/data"); run != "" {
		t.Errorf("coadd run %q for a path outside the root, want empty", run)
	}
	if run = coaddRunFromPath("/astro/data/file.fits.fz", "/astro/data"); run != "" {
		t.Errorf("coadd run %q for a shallow path, want empty", run)
	}
}
