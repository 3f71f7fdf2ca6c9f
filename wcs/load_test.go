package wcs

import (
	"fmt"
	"testing"

	"github.com/shearfit/obsio/v2/core/fileaccess"
	"github.com/shearfit/obsio/v2/core/fitsio"
	"github.com/shearfit/obsio/v2/core/logger"
)

func Example_tileWCSPath() {
	fmt.Println(TileWCSPath("meds/DES0347-5540-i-meds-y3v02.fits.fz"))
	fmt.Println(TileWCSPath("meds/DES0347-5540-r-meds-y3v02.fits"))

	// Output:
	// meds/DES0347-5540-i-meds-wcs-y3v02.json
	// meds/DES0347-5540-r-meds-wcs-y3v02.json
}

func tileHeaderJSON() string {
	return `{"ctype1": "RA---TAN", "crval1": 53.092625, "crval2": -55.741667,
	"crpix1": 5000.5, "crpix2": 5000.5,
	"cd1_1": -7.305556e-05, "cd1_2": 0.0, "cd2_1": 0.0, "cd2_2": 7.305556e-05}`
}

func Test_LoadFromMEDS(t *testing.T) {
	blobs := []string{
		tileHeaderJSON(),
		"", // exposure with no recorded wcs
		tileHeaderJSON(),
	}
	store, err := LoadFromMEDS(blobs, &logger.NullLogger{})
	if err != nil {
		t.Fatalf("Error loading from meds blobs: %v", err)
	}
	if store.Len() != 3 {
		t.Errorf("store len got %v; want 3", store.Len())
	}
	if store.Get(0) == nil || store.Get(2) == nil {
		t.Errorf("exposures 0 and 2 should have transforms")
	}
	if store.Get(1) != nil {
		t.Errorf("exposure 1 should be nil, had no wcs blob")
	}
	if store.Get(99) != nil {
		t.Errorf("unknown file_id should be nil")
	}

	_, err = LoadFromMEDS([]string{"{not json"}, &logger.NullLogger{})
	if err == nil {
		t.Errorf("expected an error for malformed wcs JSON")
	}
}

func Test_LoadFromTileJSON(t *testing.T) {
	fs := fileaccess.MakeMemAccess()
	list := "[" + tileHeaderJSON() + "," + tileHeaderJSON() + "]"
	err := fs.WriteObject("data", "meds/DES0347-5540-i-meds-wcs-y3v02.json", []byte(list))
	if err != nil {
		t.Fatalf("Error writing WCS list: %v", err)
	}

	store, err := LoadFromTileJSON(fs, "data", "meds/DES0347-5540-i-meds-y3v02.fits.fz", &logger.NullLogger{})
	if err != nil {
		t.Fatalf("Error loading tile WCS list: %v", err)
	}
	if store.Len() != 2 || store.Get(0) == nil || store.Get(1) == nil {
		t.Errorf("store should hold 2 transforms, got %v", store.Len())
	}

	_, err = LoadFromTileJSON(fs, "data", "meds/DES9999+0000-i-meds-y3v02.fits.fz", &logger.NullLogger{})
	if err == nil {
		t.Errorf("expected an error for a missing WCS list")
	}
}

func writeWCSImage(t *testing.T, fs fileaccess.FileAccess, path string, crval1 float64) {
	cards := []fitsio.Card{
		{Key: "CTYPE1", Value: "RA---TAN"},
		{Key: "CRVAL1", Value: crval1},
		{Key: "CRVAL2", Value: -55.741667},
		{Key: "CRPIX1", Value: 5000.5},
		{Key: "CRPIX2", Value: 5000.5},
		{Key: "CD1_1", Value: -7.305556e-05},
		{Key: "CD2_2", Value: 7.305556e-05},
	}
	b := fitsio.NewBuilder()
	b.AddEmptyPrimary()
	err := b.AddImageFloat32("SCI", []int{2, 2}, []float32{0, 0, 0, 0}, cards...)
	if err != nil {
		t.Fatalf("Error building WCS image: %v", err)
	}
	err = fs.WriteObject("data", path, b.Bytes())
	if err != nil {
		t.Fatalf("Error writing WCS image: %v", err)
	}
}

func Test_LoadFromHeaders(t *testing.T) {
	fs := fileaccess.MakeMemAccess()
	writeWCSImage(t, fs, "coadd/DES0347-5540_i.fits", 53.092625)
	writeWCSImage(t, fs, "red/D00000001_i_c01_r1p01_immasked.fits", 10.0)

	paths := []string{
		"coadd/DES0347-5540_i.fits",
		"red/D00000001_i_c01_r1p01_immasked.fits",
		"red/D00000002_i_c02_r1p01_immasked.fits", // absent on disk
	}

	store, err := LoadFromHeaders(fs, "data", paths, "", &logger.NullLogger{})
	if err != nil {
		t.Fatalf("Error loading from headers: %v", err)
	}
	if store.Get(0) == nil || store.Get(1) == nil {
		t.Fatalf("exposures 0 and 1 should have transforms")
	}
	if store.Get(2) != nil {
		t.Errorf("missing image should give a nil entry")
	}
	if ra, _ := store.Get(1).Center(); ra != 10.0 {
		t.Errorf("exposure 1 center ra got %v; want the image header value 10", ra)
	}
}

func Test_LoadFromHeadersAstromRefinement(t *testing.T) {
	fs := fileaccess.MakeMemAccess()
	writeWCSImage(t, fs, "red/D00000001_i_c01_r1p01_immasked.fits", 10.0)

	head := `CTYPE1  = 'RA---TAN'
CRVAL1  =   2.000000000000E+01
CRVAL2  =  -5.574166700000E+01
CRPIX1  =   5.000500000000E+03
CRPIX2  =   5.000500000000E+03
CD1_1   =  -7.305556000000E-05
CD2_2   =   7.305556000000E-05
END
`
	err := fs.WriteObject("data", "astrom/D00000001_i_c01_r1p01_immasked.head", []byte(head))
	if err != nil {
		t.Fatalf("Error writing head file: %v", err)
	}

	paths := []string{"red/D00000001_i_c01_r1p01_immasked.fits"}
	store, err := LoadFromHeaders(fs, "data", paths, "astrom", &logger.NullLogger{})
	if err != nil {
		t.Fatalf("Error loading with refinement: %v", err)
	}
	if ra, _ := store.Get(0).Center(); ra != 20.0 {
		t.Errorf("refined center ra got %v; want the head value 20", ra)
	}

	// No .head for the image keeps the header solution
	writeWCSImage(t, fs, "red/D00000002_i_c02_r1p01_immasked.fits", 30.0)
	store, err = LoadFromHeaders(fs, "data", []string{"red/D00000002_i_c02_r1p01_immasked.fits"}, "astrom", &logger.NullLogger{})
	if err != nil {
		t.Fatalf("Error loading without a head file: %v", err)
	}
	if ra, _ := store.Get(0).Center(); ra != 30.0 {
		t.Errorf("unrefined center ra got %v; want the image value 30", ra)
	}
}
