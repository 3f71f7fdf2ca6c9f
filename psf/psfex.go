package psf

import (
	"math"
	"strings"

	"github.com/pkg/errors"

	"github.com/shearfit/obsio/v2/core/dataerror"
	"github.com/shearfit/obsio/v2/core/fileaccess"
	"github.com/shearfit/obsio/v2/core/fitsio"
	"github.com/shearfit/obsio/v2/core/imggrid"
	"github.com/shearfit/obsio/v2/obs"
)

// fwhm = 2*sqrt(2*ln 2) * sigma
const fwhmPerSigma = 2.3548200450309493

// psfexModel - a PSFEx catalog: a stack of eigen images combined with
// position-dependent polynomial coefficients, stored at PSF_SAMP times
// the image pixel size. Reconstruct evaluates the polynomial, then
// resamples the combination onto the image pixel grid with the sub-pixel
// phase of the requested position
type psfexModel struct {
	path string

	polDeg  int
	polZero obs.Point // row = POLZERO2, col = POLZERO1
	polScal obs.Point
	samp    float64

	nrow, ncol int
	eigen      []*imggrid.Float64

	width float64

	cachedCenters
}

// PSFExPathForImage - single-epoch psfex catalogs sit next to their image
// with the extension swapped to _psfcat.psf. The base dir recorded at
// MEDS-making time is swapped for the configured data dir when it still
// appears in the path
func PSFExPathForImage(imagePath string, medsBaseDir string, dataDir string) string {
	psfPath := imagePath
	if strings.Contains(psfPath, ".fits.fz") {
		psfPath = strings.Replace(psfPath, ".fits.fz", "_psfcat.psf", 1)
	} else {
		psfPath = strings.Replace(psfPath, ".fits", "_psfcat.psf", 1)
	}
	if len(dataDir) > 0 && !strings.Contains(psfPath, dataDir) && len(medsBaseDir) > 0 {
		psfPath = strings.Replace(psfPath, medsBaseDir, dataDir, 1)
	}
	return psfPath
}

// ApplyPSFRerun - rewrites a psfex path into its rerun location: path
// element len-6 becomes EXTRA and element len-3 the rerun directory.
// Coadd catalogs have no reruns, callers skip paths containing "coadd"
func ApplyPSFRerun(psfPath string, version string) (string, error) {
	parts := strings.Split(psfPath, "/")
	if len(parts) < 6 {
		return "", dataerror.MakeConfigError("psf path too short for rerun surgery: %v", psfPath)
	}
	parts[len(parts)-6] = "EXTRA"
	parts[len(parts)-3] = "psfex-rerun/" + version
	return strings.Join(parts, "/"), nil
}

// LoadPSFEx - reads and validates a .psf catalog. A file that is not
// there comes back as a MissingDataError so the loader can retry the
// rerun location before flagging the exposure
func LoadPSFEx(fs fileaccess.FileAccess, bucket string, psfPath string) (Model, error) {
	f, err := fitsio.Open(fs, bucket, psfPath)
	if err != nil {
		return nil, err
	}

	u, err := f.HDUByName("PSF_DATA")
	if err != nil {
		// Some writers skip EXTNAME, the table is always the first extension
		u, err = f.HDU(1)
		if err != nil {
			return nil, errors.Wrapf(err, "no PSF_DATA table in %v", psfPath)
		}
	}

	m := &psfexModel{
		path:          psfPath,
		cachedCenters: makeCachedCenters(),
	}

	if m.polDeg, err = fitsio.HeaderInt(u, "POLDEG1"); err != nil {
		return nil, errors.Wrapf(err, "bad psfex catalog %v", psfPath)
	}
	if m.polZero.Col, err = fitsio.HeaderFloat(u, "POLZERO1"); err != nil {
		return nil, errors.Wrapf(err, "bad psfex catalog %v", psfPath)
	}
	if m.polZero.Row, err = fitsio.HeaderFloat(u, "POLZERO2"); err != nil {
		return nil, errors.Wrapf(err, "bad psfex catalog %v", psfPath)
	}
	if m.polScal.Col, err = fitsio.HeaderFloat(u, "POLSCAL1"); err != nil {
		return nil, errors.Wrapf(err, "bad psfex catalog %v", psfPath)
	}
	if m.polScal.Row, err = fitsio.HeaderFloat(u, "POLSCAL2"); err != nil {
		return nil, errors.Wrapf(err, "bad psfex catalog %v", psfPath)
	}
	if m.samp, err = fitsio.HeaderFloat(u, "PSF_SAMP"); err != nil {
		return nil, errors.Wrapf(err, "bad psfex catalog %v", psfPath)
	}
	if m.polScal.Row == 0 || m.polScal.Col == 0 || m.samp <= 0 {
		return nil, dataerror.MakeConfigError("degenerate psfex scaling in %v", psfPath)
	}

	ncolAxis, err := fitsio.HeaderInt(u, "PSFAXIS1")
	if err != nil {
		return nil, errors.Wrapf(err, "bad psfex catalog %v", psfPath)
	}
	nrowAxis, err := fitsio.HeaderInt(u, "PSFAXIS2")
	if err != nil {
		return nil, errors.Wrapf(err, "bad psfex catalog %v", psfPath)
	}
	ncomp, err := fitsio.HeaderInt(u, "PSFAXIS3")
	if err != nil {
		return nil, errors.Wrapf(err, "bad psfex catalog %v", psfPath)
	}
	m.nrow = nrowAxis
	m.ncol = ncolAxis

	wantComp := (m.polDeg + 1) * (m.polDeg + 2) / 2
	if ncomp != wantComp {
		return nil, errors.Errorf("psfex catalog %v has %v basis images, POLDEG1=%v needs %v",
			psfPath, ncomp, m.polDeg, wantComp)
	}

	mask, err := fitsio.CellFloat64s(u, "PSF_MASK", 0)
	if err != nil {
		return nil, errors.Wrapf(err, "bad psfex catalog %v", psfPath)
	}
	if len(mask) != ncomp*m.nrow*m.ncol {
		return nil, errors.Errorf("psfex catalog %v PSF_MASK has %v values, axes need %v",
			psfPath, len(mask), ncomp*m.nrow*m.ncol)
	}

	m.eigen = make([]*imggrid.Float64, ncomp)
	stampLen := m.nrow * m.ncol
	for k := 0; k < ncomp; k++ {
		grid, err := imggrid.MakeFloat64FromSlice(m.nrow, m.ncol, mask[k*stampLen:(k+1)*stampLen])
		if err != nil {
			return nil, err
		}
		m.eigen[k] = grid
	}

	if fitsio.HasHeaderKey(u, "PSF_FWHM") {
		fwhm, err := fitsio.HeaderFloat(u, "PSF_FWHM")
		if err != nil {
			return nil, errors.Wrapf(err, "bad psfex catalog %v", psfPath)
		}
		m.width = fwhm / fwhmPerSigma
	} else {
		// No recorded width, measure the reconstruction at the
		// polynomial reference position
		stamp, err := m.Reconstruct(m.polZero.Row, m.polZero.Col)
		if err != nil {
			return nil, err
		}
		cen, _ := m.cachedCenter(m.polZero.Row, m.polZero.Col)
		m.width = momentsSigma(stamp, cen)
	}

	return m, nil
}

func (m *psfexModel) Reconstruct(row float64, col float64) (*imggrid.Float64, error) {
	native := m.evalBasis(row, col)

	// The catalog stamp is sampled every samp image pixels. Resample it
	// to the image grid, placing the center at the sub-pixel phase of
	// the requested position
	shiftRow := row - math.Floor(row+0.5)
	shiftCol := col - math.Floor(col+0.5)
	natCen := obs.Point{
		Row: float64(m.nrow-1) / 2.0,
		Col: float64(m.ncol-1) / 2.0,
	}
	outCen := obs.Point{
		Row: natCen.Row + shiftRow,
		Col: natCen.Col + shiftCol,
	}

	out := imggrid.NewFloat64(m.nrow, m.ncol)
	for r := 0; r < m.nrow; r++ {
		for c := 0; c < m.ncol; c++ {
			nr := natCen.Row + (float64(r)-outCen.Row)/m.samp
			nc := natCen.Col + (float64(c)-outCen.Col)/m.samp
			out.Set(r, c, sampleBilinear(native, nr, nc))
		}
	}

	m.cacheCenter(row, col, outCen)
	return out, nil
}

// evalBasis - combines the eigen images with the position polynomial.
// Term k is x^i * y^j with j the outer index, the PSFEx storage order
func (m *psfexModel) evalBasis(row float64, col float64) *imggrid.Float64 {
	x := (col - m.polZero.Col) / m.polScal.Col
	y := (row - m.polZero.Row) / m.polScal.Row

	acc := imggrid.NewFloat64(m.nrow, m.ncol)
	values := acc.Values()

	k := 0
	yPow := 1.0
	for j := 0; j <= m.polDeg; j++ {
		xPow := 1.0
		for i := 0; i <= m.polDeg-j; i++ {
			coeff := xPow * yPow
			for n, v := range m.eigen[k].Values() {
				values[n] += coeff * v
			}
			k++
			xPow *= x
		}
		yPow *= y
	}
	return acc
}

func sampleBilinear(grid *imggrid.Float64, row float64, col float64) float64 {
	r0 := int(math.Floor(row))
	c0 := int(math.Floor(col))
	fr := row - float64(r0)
	fc := col - float64(c0)

	at := func(r, c int) float64 {
		if r < 0 || c < 0 || r >= grid.Rows() || c >= grid.Cols() {
			return 0
		}
		return grid.Get(r, c)
	}

	return at(r0, c0)*(1-fr)*(1-fc) +
		at(r0+1, c0)*fr*(1-fc) +
		at(r0, c0+1)*(1-fr)*fc +
		at(r0+1, c0+1)*fr*fc
}

func (m *psfexModel) Center(row float64, col float64) (obs.Point, error) {
	if cen, ok := m.cachedCenter(row, col); ok {
		return cen, nil
	}
	if _, err := m.Reconstruct(row, col); err != nil {
		return obs.Point{}, err
	}
	cen, _ := m.cachedCenter(row, col)
	return cen, nil
}

func (m *psfexModel) Width() float64 {
	return m.width
}

func (m *psfexModel) SourcePath() string {
	return m.path
}
