package psf

import (
	"math"
	"strings"

	"github.com/pkg/errors"

	"github.com/shearfit/obsio/v2/config"
	"github.com/shearfit/obsio/v2/core/dataerror"
	"github.com/shearfit/obsio/v2/core/fileaccess"
	"github.com/shearfit/obsio/v2/core/imggrid"
	"github.com/shearfit/obsio/v2/core/logger"
	"github.com/shearfit/obsio/v2/core/sefilename"
	"github.com/shearfit/obsio/v2/imageflags"
	"github.com/shearfit/obsio/v2/meds"
	"github.com/shearfit/obsio/v2/obs"
)

// Result - one realised PSF, or the sentinel flags that disqualified its
// exposure. Exactly one of Stamp and Flags is meaningful
type Result struct {
	Stamp  *imggrid.Float64
	Center obs.Point
	Width  float64
	Path   string
	Flags  int64
}

// psfEntry - one image_info row's model state, built once per run
type psfEntry struct {
	model Model
	flags int64
	path  string
}

// Loader resolves, gates and realises PSF models for every exposure of
// every band. Construction walks the image lists, loads the control
// tables, opens every usable model and ORs gate sentinels into the
// per-image flag words the flag resolver produced, so assembly sees the
// final verdict per exposure
type Loader struct {
	cfg    config.Config
	fs     fileaccess.FileAccess
	bucket string
	log    logger.ILogger

	readers []meds.Reader
	opener  RendererOpener

	blacklist *Blacklist
	s2n       *S2NTable
	psfMap    *Map
	summaries *piffSummaries

	bands [][]psfEntry
}

// NewLoader - builds the per-band model lists. imageFlags carries one
// reduced flag word per image_info row per band and is updated in place
// with the gate sentinels
func NewLoader(cfg config.Config, fs fileaccess.FileAccess, bucket string, readers []meds.Reader,
	imageFlags [][]int64, opener RendererOpener, log logger.ILogger) (*Loader, error) {

	if cfg.PSFType == config.PSFTypePIFF && opener == nil {
		return nil, dataerror.MakeConfigError("piff PSFs need a stamp renderer")
	}
	if len(imageFlags) != len(readers) {
		return nil, dataerror.MakeConfigError("have flags for %v bands but %v MEDS readers",
			len(imageFlags), len(readers))
	}

	l := &Loader{
		cfg:     cfg,
		fs:      fs,
		bucket:  bucket,
		log:     log,
		readers: readers,
		opener:  opener,
	}

	var err error
	if len(cfg.Blacklist) > 0 {
		if l.blacklist, err = LoadBlacklist(fs, bucket, cfg.Blacklist, log); err != nil {
			return nil, err
		}
	}
	if cfg.S2NChecks != nil {
		if l.s2n, err = LoadS2NTable(fs, bucket, *cfg.S2NChecks, log); err != nil {
			return nil, err
		}
	}
	if len(cfg.PSFMap) > 0 {
		if len(cfg.PSFMap) != len(readers) {
			return nil, dataerror.MakeConfigError("need one psf map per band, have %v maps for %v bands",
				len(cfg.PSFMap), len(readers))
		}
		if l.psfMap, err = LoadMap(fs, bucket, cfg.PSFMap, log); err != nil {
			return nil, err
		}
	}
	if cfg.PSFType == config.PSFTypePIFF && len(cfg.PIFFRun) > 0 {
		l.summaries = newPIFFSummaries(fs, bucket, cfg.PIFFDataDir, cfg.PIFFRun, cfg.PIFFAllowMissing, log)
	}

	l.bands = make([][]psfEntry, len(readers))
	for band, reader := range readers {
		entries, err := l.loadBand(band, reader, imageFlags[band])
		if err != nil {
			return nil, err
		}
		l.bands[band] = entries
	}
	return l, nil
}

func (l *Loader) loadBand(band int, reader meds.Reader, flags []int64) ([]psfEntry, error) {
	info := reader.ImageInfo()
	if len(flags) != len(info) {
		return nil, dataerror.MakeConfigError("band %v has %v flag entries for %v images",
			band, len(flags), len(info))
	}

	entries := make([]psfEntry, len(info))
	if l.cfg.PSFType == config.PSFTypeInFile {
		// Stamps ride along in the cutout file per epoch, nothing to
		// preload per image
		if !reader.HasPSF() {
			return nil, dataerror.MakeConfigError("band %v MEDS %v carries no psf stamps", band, reader.Path())
		}
		return entries, nil
	}

	flagged := 0
	for i := range info {
		// Images the flag resolver already rejected never get a model.
		// That covers the coadd entry when the run is not fitting it
		if flags[i] != 0 {
			continue
		}

		var err error
		switch l.cfg.PSFType {
		case config.PSFTypePSFEx:
			entries[i], err = l.loadPSFExEntry(band, reader, info[i], i)
		case config.PSFTypePIFF:
			entries[i], err = l.loadPIFFEntry(band, info[i], i)
		}
		if err != nil {
			return nil, err
		}

		if entries[i].flags != 0 {
			flags[i] |= entries[i].flags
			flagged++
			psfModelsFlagged.WithLabelValues(l.cfg.PSFType, flagReason(entries[i].flags)).Inc()
		}
	}
	l.log.Infof("band %v: flagged %v/%v psf models", band, flagged, len(info))
	return entries, nil
}

func (l *Loader) loadPSFExEntry(band int, reader meds.Reader, img meds.ImageInfo, idx int) (psfEntry, error) {
	psfPath, err := l.psfexPath(band, reader, img, idx)
	if err != nil {
		return psfEntry{}, err
	}
	entry := psfEntry{path: psfPath}

	// The coadd model has no exposure identity, the control tables only
	// speak to single-epoch entries
	if idx > 0 {
		entry.flags = l.gateFlags(psfPath)
		if entry.flags != 0 {
			return entry, nil
		}
	}

	model, err := LoadPSFEx(l.fs, l.bucket, psfPath)
	if err != nil {
		var missing dataerror.MissingDataError
		if errors.As(err, &missing) {
			// A catalog the main processing lost may exist at the
			// rerun location
			if retryPath, ok := l.rerunRetryPath(psfPath, idx); ok {
				if retried, retryErr := LoadPSFEx(l.fs, l.bucket, retryPath); retryErr == nil {
					entry.path = retryPath
					entry.model = retried
					return entry, nil
				}
			}
		}
		l.log.Errorf("unusable psfex catalog %v: %v", psfPath, err)
		entry.flags = imageflags.PSFFileReadError
		return entry, nil
	}

	entry.model = model
	return entry, nil
}

func (l *Loader) psfexPath(band int, reader meds.Reader, img meds.ImageInfo, idx int) (string, error) {
	if l.psfMap != nil {
		if idx == 0 {
			return l.psfMap.CoaddPath(band)
		}
		meta, err := sefilename.ParseExposureName(img.ImagePath)
		if err != nil {
			return "", err
		}
		key, err := meta.Key()
		if err != nil {
			return "", err
		}
		return l.psfMap.SEPath(key)
	}

	psfPath := PSFExPathForImage(img.ImagePath, reader.Meta().BaseDir, l.cfg.DataDir)
	if l.cfg.UsePSFRerun && !strings.Contains(psfPath, "coadd") {
		return ApplyPSFRerun(psfPath, l.cfg.PSFRerunVersion)
	}
	return psfPath, nil
}

// rerunRetryPath - the rerun location to try when the primary catalog is
// missing. Only single-epoch paths not already rerun shaped qualify
func (l *Loader) rerunRetryPath(psfPath string, idx int) (string, bool) {
	if idx == 0 || len(l.cfg.PSFRerunVersion) == 0 {
		return "", false
	}
	if strings.Contains(psfPath, "psfex-rerun") || strings.Contains(psfPath, "coadd") {
		return "", false
	}
	retryPath, err := ApplyPSFRerun(psfPath, l.cfg.PSFRerunVersion)
	if err != nil {
		return "", false
	}
	return retryPath, true
}

func (l *Loader) gateFlags(psfPath string) int64 {
	keys := candidateKeys(psfPath)

	if l.blacklist != nil && l.blacklist.Contains(keys...) {
		l.log.Infof("    psf in blacklist, flagging: %v", psfPath)
		return imageflags.PSFInBlacklist
	}
	if l.s2n != nil {
		flags := l.s2n.Check(keys...)
		if flags != 0 {
			l.log.Infof("    psf fails s/n gate, flagging: %v", psfPath)
			return flags
		}
	}
	return 0
}

// candidateKeys - both key vintages an exposure may be recorded under,
// run-expname-ccd built from the path and expname-ccd from the file name
func candidateKeys(psfPath string) []string {
	keys := []string{}
	if key, err := sefilename.BlacklistKey(psfPath); err == nil {
		keys = append(keys, key)
	}
	if meta, err := sefilename.ParseExposureName(psfPath); err == nil {
		if key, err := meta.Key(); err == nil {
			keys = append(keys, key)
		}
	}
	return keys
}

func (l *Loader) loadPIFFEntry(band int, img meds.ImageInfo, idx int) (psfEntry, error) {
	if idx == 0 {
		return l.loadPIFFCoaddEntry(band)
	}

	if l.summaries == nil {
		return l.loadPIFFMapEntry(img)
	}

	meta, err := sefilename.ParseExposureName(img.ImagePath)
	if err != nil {
		return psfEntry{}, errors.Wrapf(err, "cannot derive piff identity for %v", img.ImagePath)
	}
	ccdnum, err := meta.CCDNum()
	if err != nil {
		return psfEntry{}, err
	}

	record, err := l.summaries.lookup(meta.Expname, ccdnum)
	if err != nil {
		return psfEntry{}, err
	}
	if record == nil || record.Flag != 0 || record.CCDNum == badAmpCCD {
		return psfEntry{flags: imageflags.PSFInBlacklist}, nil
	}

	return l.openPIFF(piffModelPath(l.cfg.PIFFDataDir, record.PiffFile))
}

func (l *Loader) loadPIFFCoaddEntry(band int) (psfEntry, error) {
	if l.psfMap == nil {
		return psfEntry{}, dataerror.MakeConfigError("fitting the coadd with piff PSFs needs a PSFMap coadd entry")
	}
	modelPath, err := l.psfMap.CoaddPath(band)
	if err != nil {
		return psfEntry{}, err
	}
	return l.openPIFF(modelPath)
}

func (l *Loader) loadPIFFMapEntry(img meds.ImageInfo) (psfEntry, error) {
	if l.psfMap == nil {
		return psfEntry{}, dataerror.MakeConfigError("piff PSFs need a PIFFRun or a PSFMap")
	}
	meta, err := sefilename.ParseExposureName(img.ImagePath)
	if err != nil {
		return psfEntry{}, errors.Wrapf(err, "cannot derive piff identity for %v", img.ImagePath)
	}
	key, err := meta.Key()
	if err != nil {
		return psfEntry{}, err
	}
	modelPath, err := l.psfMap.SEPath(key)
	if err != nil {
		return psfEntry{}, err
	}
	return l.openPIFF(modelPath)
}

// openPIFF - a clean summary record promises an existing model file,
// absence here is broken pipeline state rather than a flaggable exposure
func (l *Loader) openPIFF(modelPath string) (psfEntry, error) {
	exists, err := l.fs.ObjectExists(l.bucket, modelPath)
	if err != nil {
		return psfEntry{}, errors.Wrapf(err, "failed to check piff model %v", modelPath)
	}
	if !exists {
		return psfEntry{}, dataerror.MakeMissingDataError(modelPath, "piff model file missing")
	}

	renderer, err := l.opener.Open(modelPath)
	if err != nil {
		return psfEntry{}, errors.Wrapf(err, "failed to open piff model %v", modelPath)
	}
	return psfEntry{
		model: newPIFFModel(renderer, l.cfg.PIFFStampSize, modelPath),
		path:  modelPath,
	}, nil
}

// Get - the PSF realisation for one epoch of one object, drawn at the
// object position on the original exposure. A gated exposure comes back
// with its sentinel flags and no stamp, never an error
func (l *Loader) Get(band int, iobj int, icut int, row float64, col float64) (Result, error) {
	if band < 0 || band >= len(l.readers) {
		return Result{}, dataerror.MakeConfigError("no band %v (have %v)", band, len(l.readers))
	}
	reader := l.readers[band]

	fileID, err := reader.FileID(iobj, icut)
	if err != nil {
		return Result{}, err
	}
	if fileID < 0 || fileID >= len(l.bands[band]) {
		return Result{}, errors.Errorf("object %v cutout %v file id %v outside image info (%v entries)",
			iobj, icut, fileID, len(l.bands[band]))
	}

	entry := l.bands[band][fileID]
	if entry.flags != 0 {
		return Result{Flags: entry.flags, Path: entry.path}, nil
	}

	model := entry.model
	if l.cfg.PSFType == config.PSFTypeInFile {
		stamp, psfRow, psfCol, err := reader.GetPSF(iobj, icut)
		if err != nil {
			psfLoads.WithLabelValues(l.cfg.PSFType, "error").Inc()
			return Result{}, err
		}
		model = newStampModel(stamp, psfRow, psfCol, reader.Path())
	}
	if model == nil {
		return Result{}, errors.Errorf("no psf model for band %v image %v", band, fileID)
	}

	useRow, useCol := row, col
	// PIFF models center themselves, psfex only centers on request
	if l.cfg.CenterPSF && l.cfg.PSFType == config.PSFTypePSFEx {
		useRow, useCol = math.Round(row), math.Round(col)
	}

	stamp, err := model.Reconstruct(useRow, useCol)
	if err != nil {
		psfLoads.WithLabelValues(l.cfg.PSFType, "error").Inc()
		return Result{}, err
	}
	cen, err := model.Center(useRow, useCol)
	if err != nil {
		return Result{}, err
	}

	// The coadd stamp keeps its full extent for the downstream PSF fit
	if len(l.cfg.TrimPSF) == 2 && icut > 0 {
		stamp, cen, err = trimStamp(stamp, cen, l.cfg.TrimPSF[0], l.cfg.TrimPSF[1])
		if err != nil {
			return Result{}, err
		}
	}

	if err = normalizeStamp(stamp, model.SourcePath()); err != nil {
		psfLoads.WithLabelValues(l.cfg.PSFType, "error").Inc()
		return Result{}, err
	}

	psfLoads.WithLabelValues(l.cfg.PSFType, "loaded").Inc()
	return Result{
		Stamp:  stamp,
		Center: cen,
		Width:  model.Width(),
		Path:   model.SourcePath(),
	}, nil
}
