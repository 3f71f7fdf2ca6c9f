package psf

import (
	"fmt"
	"math"
	"testing"

	"github.com/shearfit/obsio/v2/core/fileaccess"
	"github.com/shearfit/obsio/v2/core/fitsio"
)

// psfexCatalog - builds a synthetic .psf catalog. Eigen images are given
// as flat nrow*ncol slices, one per polynomial term
func psfexCatalog(polDeg int, nrow int, ncol int, samp float64, fwhm float64, eigen ...[]float64) []byte {
	flat := []float64{}
	for _, e := range eigen {
		flat = append(flat, e...)
	}

	cards := []fitsio.Card{
		{Key: "POLDEG1", Value: polDeg},
		{Key: "POLZERO1", Value: 1000.0},
		{Key: "POLZERO2", Value: 2000.0},
		{Key: "POLSCAL1", Value: 500.0},
		{Key: "POLSCAL2", Value: 500.0},
		{Key: "PSF_SAMP", Value: samp},
		{Key: "PSFAXIS1", Value: ncol},
		{Key: "PSFAXIS2", Value: nrow},
		{Key: "PSFAXIS3", Value: len(eigen)},
	}
	if fwhm > 0 {
		cards = append(cards, fitsio.Card{Key: "PSF_FWHM", Value: fwhm})
	}

	b := fitsio.NewBuilder()
	b.AddEmptyPrimary()
	err := b.AddBinTable("PSF_DATA", []fitsio.TableColumn{
		{Name: "PSF_MASK", Form: fmt.Sprintf("%dE", len(flat)), Data: [][]float64{flat}},
	}, cards...)
	if err != nil {
		panic(err)
	}
	return b.Bytes()
}

// delta - a flat stamp with a single lit pixel
func delta(nrow int, ncol int, row int, col int, value float64) []float64 {
	stamp := make([]float64, nrow*ncol)
	stamp[row*ncol+col] = value
	return stamp
}

func Test_PSFExReconstructConstant(t *testing.T) {
	fs := fileaccess.MakeMemAccess()
	fs.WriteObject("data", "psf/cat.psf", psfexCatalog(0, 5, 5, 1.0, 2.3548200450309493,
		delta(5, 5, 2, 2, 1.0)))

	model, err := LoadPSFEx(fs, "data", "psf/cat.psf")
	if err != nil {
		t.Fatalf("LoadPSFEx failed: %v", err)
	}

	// Integer position, no sub-pixel phase, the delta comes back intact
	stamp, err := model.Reconstruct(100, 200)
	if err != nil {
		t.Fatalf("Reconstruct failed: %v", err)
	}
	if stamp.Rows() != 5 || stamp.Cols() != 5 {
		t.Errorf("stamp is %vx%v, want 5x5", stamp.Rows(), stamp.Cols())
	}
	if v := stamp.Get(2, 2); math.Abs(v-1.0) > 1e-12 {
		t.Errorf("center pixel %v, want 1", v)
	}
	if sum := stamp.Sum(); math.Abs(sum-1.0) > 1e-12 {
		t.Errorf("stamp sum %v, want 1", sum)
	}

	cen, err := model.Center(100, 200)
	if err != nil {
		t.Fatalf("Center failed: %v", err)
	}
	if cen.Row != 2.0 || cen.Col != 2.0 {
		t.Errorf("center (%v,%v), want (2,2)", cen.Row, cen.Col)
	}

	if w := model.Width(); math.Abs(w-1.0) > 1e-12 {
		t.Errorf("width %v, want 1 from PSF_FWHM", w)
	}
}

func Test_PSFExSubPixelPhase(t *testing.T) {
	fs := fileaccess.MakeMemAccess()
	fs.WriteObject("data", "psf/cat.psf", psfexCatalog(0, 5, 5, 1.0, 1.0,
		delta(5, 5, 2, 2, 1.0)))

	model, err := LoadPSFEx(fs, "data", "psf/cat.psf")
	if err != nil {
		t.Fatalf("LoadPSFEx failed: %v", err)
	}

	stamp, err := model.Reconstruct(100.25, 200.25)
	if err != nil {
		t.Fatalf("Reconstruct failed: %v", err)
	}

	// The center carries the sub-pixel phase of the position
	cen, err := model.Center(100.25, 200.25)
	if err != nil {
		t.Fatalf("Center failed: %v", err)
	}
	if math.Abs(cen.Row-2.25) > 1e-12 || math.Abs(cen.Col-2.25) > 1e-12 {
		t.Errorf("center (%v,%v), want (2.25,2.25)", cen.Row, cen.Col)
	}

	// A quarter-pixel shift spreads the delta over its bilinear
	// neighborhood without losing mass
	if v := stamp.Get(2, 2); math.Abs(v-0.5625) > 1e-12 {
		t.Errorf("peak pixel %v, want 0.5625", v)
	}
	if sum := stamp.Sum(); math.Abs(sum-1.0) > 1e-12 {
		t.Errorf("stamp sum %v, want 1", sum)
	}
}

func Test_PSFExPolynomial(t *testing.T) {
	// Basis term order is x^i * y^j with j outer: 1, x, y for degree 1
	fs := fileaccess.MakeMemAccess()
	catalog := psfexCatalog(1, 5, 5, 1.0, 1.0,
		delta(5, 5, 2, 2, 1.0),
		delta(5, 5, 2, 2, 0.5),
		delta(5, 5, 2, 2, 0.25))
	fs.WriteObject("data", "psf/cat.psf", catalog)

	model, err := LoadPSFEx(fs, "data", "psf/cat.psf")
	if err != nil {
		t.Fatalf("LoadPSFEx failed: %v", err)
	}

	// col 2000 gives x = (2000-1000)/500 = 2, row 3000 gives y = 2
	stamp, err := model.Reconstruct(3000, 2000)
	if err != nil {
		t.Fatalf("Reconstruct failed: %v", err)
	}
	want := 1.0 + 2.0*0.5 + 2.0*0.25
	if v := stamp.Get(2, 2); math.Abs(v-want) > 1e-12 {
		t.Errorf("center pixel %v, want %v", v, want)
	}
}

func Test_PSFExSampling(t *testing.T) {
	// A catalog sampled every 2 image pixels spreads one native pixel
	// over a 2x wider stamp
	fs := fileaccess.MakeMemAccess()
	fs.WriteObject("data", "psf/cat.psf", psfexCatalog(0, 5, 5, 2.0, 1.0,
		delta(5, 5, 2, 2, 1.0)))

	model, err := LoadPSFEx(fs, "data", "psf/cat.psf")
	if err != nil {
		t.Fatalf("LoadPSFEx failed: %v", err)
	}

	stamp, err := model.Reconstruct(50, 60)
	if err != nil {
		t.Fatalf("Reconstruct failed: %v", err)
	}
	if v := stamp.Get(2, 2); math.Abs(v-1.0) > 1e-12 {
		t.Errorf("center pixel %v, want 1", v)
	}
	if v := stamp.Get(2, 3); math.Abs(v-0.5) > 1e-12 {
		t.Errorf("half-step pixel %v, want 0.5", v)
	}
	if v := stamp.Get(1, 1); math.Abs(v-0.25) > 1e-12 {
		t.Errorf("diagonal pixel %v, want 0.25", v)
	}
}

func Test_PSFExCenterCache(t *testing.T) {
	fs := fileaccess.MakeMemAccess()
	fs.WriteObject("data", "psf/cat.psf", psfexCatalog(0, 5, 5, 1.0, 1.0,
		delta(5, 5, 2, 2, 1.0)))

	model, err := LoadPSFEx(fs, "data", "psf/cat.psf")
	if err != nil {
		t.Fatalf("LoadPSFEx failed: %v", err)
	}

	if _, err = model.Reconstruct(10, 20); err != nil {
		t.Fatalf("Reconstruct failed: %v", err)
	}
	first, err := model.Center(10, 20)
	if err != nil {
		t.Fatalf("Center failed: %v", err)
	}
	again, err := model.Center(10, 20)
	if err != nil {
		t.Fatalf("Center failed: %v", err)
	}
	if first != again {
		t.Errorf("center changed between calls: %v then %v", first, again)
	}

	// A different position is a different cache entry
	other, err := model.Center(10.25, 20.5)
	if err != nil {
		t.Fatalf("Center failed: %v", err)
	}
	if other == first {
		t.Errorf("distinct positions share a center: %v", other)
	}

	// Recomputing through Reconstruct lands on the same value
	if _, err = model.Reconstruct(10, 20); err != nil {
		t.Fatalf("Reconstruct failed: %v", err)
	}
	recomputed, err := model.Center(10, 20)
	if err != nil {
		t.Fatalf("Center failed: %v", err)
	}
	if recomputed != first {
		t.Errorf("recomputed center %v, want %v", recomputed, first)
	}
}

func Test_PSFExRejectsBadCatalog(t *testing.T) {
	fs := fileaccess.MakeMemAccess()

	// Component count must match the polynomial degree
	b := fitsio.NewBuilder()
	b.AddEmptyPrimary()
	err := b.AddBinTable("PSF_DATA", []fitsio.TableColumn{
		{Name: "PSF_MASK", Form: "25E", Data: [][]float64{delta(5, 5, 2, 2, 1.0)}},
	},
		fitsio.Card{Key: "POLDEG1", Value: 1},
		fitsio.Card{Key: "POLZERO1", Value: 0.0},
		fitsio.Card{Key: "POLZERO2", Value: 0.0},
		fitsio.Card{Key: "POLSCAL1", Value: 1.0},
		fitsio.Card{Key: "POLSCAL2", Value: 1.0},
		fitsio.Card{Key: "PSF_SAMP", Value: 1.0},
		fitsio.Card{Key: "PSFAXIS1", Value: 5},
		fitsio.Card{Key: "PSFAXIS2", Value: 5},
		fitsio.Card{Key: "PSFAXIS3", Value: 1},
	)
	if err != nil {
		t.Fatalf("building catalog failed: %v", err)
	}
	fs.WriteObject("data", "psf/bad.psf", b.Bytes())

	if _, err = LoadPSFEx(fs, "data", "psf/bad.psf"); err == nil {
		t.Errorf("expected error for mismatched basis count")
	}
}

func Test_PSFExPathSurgery(t *testing.T) {
	psfPath := PSFExPathForImage("base/OPS/red/img/D1/D1_i_c03_r1_immasked.fits.fz", "base", "data")
	if psfPath != "data/OPS/red/img/D1/D1_i_c03_r1_immasked_psfcat.psf" {
		t.Errorf("unexpected psf path: %v", psfPath)
	}

	// Plain .fits images get the same swap
	psfPath = PSFExPathForImage("base/red/D1_i_c03_r1.fits", "base", "data")
	if psfPath != "data/red/D1_i_c03_r1_psfcat.psf" {
		t.Errorf("unexpected psf path: %v", psfPath)
	}

	rerun, err := ApplyPSFRerun("d/OPS/runs/r1/red/D1/file_psfcat.psf", "v2")
	if err != nil {
		t.Fatalf("ApplyPSFRerun failed: %v", err)
	}
	if rerun != "d/EXTRA/runs/r1/psfex-rerun/v2/D1/file_psfcat.psf" {
		t.Errorf("unexpected rerun path: %v", rerun)
	}

	if _, err = ApplyPSFRerun("too/short.psf", "v2"); err == nil {
		t.Errorf("expected error for short path")
	}
}
