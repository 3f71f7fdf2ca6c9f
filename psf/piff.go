package psf

import (
	"fmt"
	"math"
	"path"
	"strings"

	"github.com/pkg/errors"

	"github.com/shearfit/obsio/v2/core/dataerror"
	"github.com/shearfit/obsio/v2/core/fileaccess"
	"github.com/shearfit/obsio/v2/core/fitsio"
	"github.com/shearfit/obsio/v2/core/imggrid"
	"github.com/shearfit/obsio/v2/core/logger"
	"github.com/shearfit/obsio/v2/obs"
)

// CCD 31 carries a failed amplifier, its models are never usable
const badAmpCCD = 31

// StampRenderer - draws PSF stamps from an opened native model. The
// native evaluator is an external collaborator, this package only decides
// which model to open and where to draw it
type StampRenderer interface {
	Draw(row int, col int, stampSize int) (*imggrid.Float64, error)
}

// RendererOpener - opens a native model file for rendering
type RendererOpener interface {
	Open(modelPath string) (StampRenderer, error)
}

// piffModel - a PIFF model rendered by the injected evaluator. Stamps
// are drawn at the nearest integer pixel, centered on the stamp
type piffModel struct {
	renderer  StampRenderer
	stampSize int
	path      string

	cachedCenters
}

func newPIFFModel(renderer StampRenderer, stampSize int, modelPath string) *piffModel {
	return &piffModel{
		renderer:      renderer,
		stampSize:     stampSize,
		path:          modelPath,
		cachedCenters: makeCachedCenters(),
	}
}

func (m *piffModel) Reconstruct(row float64, col float64) (*imggrid.Float64, error) {
	stamp, err := m.renderer.Draw(int(math.Floor(row+0.5)), int(math.Floor(col+0.5)), m.stampSize)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to draw piff model %v", m.path)
	}
	if err = normalizeStamp(stamp, m.path); err != nil {
		return nil, err
	}

	m.cacheCenter(row, col, obs.Point{
		Row: float64(stamp.Rows()-1) / 2.0,
		Col: float64(stamp.Cols()-1) / 2.0,
	})
	return stamp, nil
}

func (m *piffModel) Center(row float64, col float64) (obs.Point, error) {
	if cen, ok := m.cachedCenter(row, col); ok {
		return cen, nil
	}
	if _, err := m.Reconstruct(row, col); err != nil {
		return obs.Point{}, err
	}
	cen, _ := m.cachedCenter(row, col)
	return cen, nil
}

func (m *piffModel) Width() float64 {
	return math.Sqrt2
}

func (m *piffModel) SourcePath() string {
	return m.path
}

// piffRecord - one ccd row of an exposure's model summary table
type piffRecord struct {
	CCDNum   int64
	Flag     int64
	PiffFile string
}

// piffSummaries - lazily loaded per-exposure model summary tables. An
// exposure with no summary file is cached as nil so the file is only
// looked for once
type piffSummaries struct {
	fs           fileaccess.FileAccess
	bucket       string
	dataDir      string
	run          string
	allowMissing bool
	log          logger.ILogger

	cache map[string]map[int64]piffRecord
}

func newPIFFSummaries(fs fileaccess.FileAccess, bucket string, dataDir string, run string, allowMissing bool, log logger.ILogger) *piffSummaries {
	return &piffSummaries{
		fs:           fs,
		bucket:       bucket,
		dataDir:      dataDir,
		run:          run,
		allowMissing: allowMissing,
		log:          log,
		cache:        map[string]map[int64]piffRecord{},
	}
}

func (p *piffSummaries) summaryPath(expname string) string {
	return path.Join(p.dataDir, p.run, expname, fmt.Sprintf("exp_psf_cat_%s.fits", expname))
}

// lookup - the summary record for one exposure ccd. A missing summary
// file comes back (nil, nil) when the run allows it, the caller flags the
// exposure. A summary that exists but lacks the ccd is a broken summary,
// that is fatal
func (p *piffSummaries) lookup(expname string, ccdnum int) (*piffRecord, error) {
	records, ok := p.cache[expname]
	if !ok {
		loaded, err := p.read(expname)
		if err != nil {
			return nil, err
		}
		p.cache[expname] = loaded
		records = loaded
	}

	if records == nil {
		return nil, nil
	}

	record, ok := records[int64(ccdnum)]
	if !ok {
		return nil, dataerror.MakeMissingDataError(p.summaryPath(expname),
			"no piff record for %v ccd %v", expname, ccdnum)
	}
	return &record, nil
}

func (p *piffSummaries) read(expname string) (map[int64]piffRecord, error) {
	summaryPath := p.summaryPath(expname)
	p.log.Infof("reading piff summary: %v", summaryPath)

	f, err := fitsio.Open(p.fs, p.bucket, summaryPath)
	if err != nil {
		var missing dataerror.MissingDataError
		if errors.As(err, &missing) {
			if p.allowMissing {
				p.log.Infof("    missing exposure: %v", summaryPath)
				return nil, nil
			}
			return nil, err
		}
		return nil, err
	}

	u, err := f.HDUByName("info")
	if err != nil {
		return nil, errors.Wrapf(err, "bad piff summary %v", summaryPath)
	}

	ccds, err := fitsio.ColumnInt64(u, "ccdnum")
	if err != nil {
		return nil, errors.Wrapf(err, "bad piff summary %v", summaryPath)
	}
	flags, err := fitsio.ColumnInt64(u, "flag")
	if err != nil {
		return nil, errors.Wrapf(err, "bad piff summary %v", summaryPath)
	}
	files, err := fitsio.ColumnString(u, "piff_file")
	if err != nil {
		return nil, errors.Wrapf(err, "bad piff summary %v", summaryPath)
	}

	records := make(map[int64]piffRecord, len(ccds))
	for i, ccd := range ccds {
		records[ccd] = piffRecord{
			CCDNum:   ccd,
			Flag:     flags[i],
			PiffFile: files[i],
		}
	}
	return records, nil
}

// piffModelPath - summaries record absolute paths from the machine that
// made them, only the last run/exposure/file elements carry over onto
// the configured data dir
func piffModelPath(dataDir string, recorded string) string {
	parts := strings.Split(recorded, "/")
	if len(parts) > 3 {
		parts = parts[len(parts)-3:]
	}
	return strings.Join(append([]string{dataDir}, parts...), "/")
}
