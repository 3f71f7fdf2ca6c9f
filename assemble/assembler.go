// Package assemble turns cutout files plus configuration into
// fitter-ready bundles: per object, a coadd-only and a multi-epoch
// observation list across all bands, with exposure quality gates
// applied, PSFs attached, photometry moved to the reference zeropoint
// and the configured convention, cross-band star masks propagated and
// object-level checks recorded. Construction does all the per-run work
// (flag resolution, PSF model loading, WCS loading); Object is then a
// pure per-object operation.
package assemble

import (
	"os"
	"strings"

	"github.com/shearfit/obsio/v2/config"
	"github.com/shearfit/obsio/v2/core/dataerror"
	"github.com/shearfit/obsio/v2/core/fileaccess"
	"github.com/shearfit/obsio/v2/core/logger"
	"github.com/shearfit/obsio/v2/imageflags"
	"github.com/shearfit/obsio/v2/maskprop"
	"github.com/shearfit/obsio/v2/meds"
	"github.com/shearfit/obsio/v2/psf"
	"github.com/shearfit/obsio/v2/wcs"
)

// Assembler - one per run of one tile. Holds the per-exposure verdicts
// and models shared by every object
type Assembler struct {
	cfg    config.Config
	fs     fileaccess.FileAccess
	bucket string
	log    logger.ILogger

	readers   []meds.Reader
	infos     [][]meds.ImageInfo
	bandNames []string

	// One resolved flag word per image_info row per band. Starts from the
	// flag resolver's verdicts, PSF gate sentinels are ORed in by the
	// loader
	flags [][]int64

	psfs    *psf.Loader
	stores  []*wcs.Store
	prop    *maskprop.Propagator
	starBit int32

	coaddRun string
	nobj     int
}

// NewAssembler - readers in band order, band 0 is the reference. The
// opener is only consulted for piff PSFs and may be nil otherwise
func NewAssembler(cfg config.Config, fs fileaccess.FileAccess, bucket string, readers []meds.Reader,
	opener psf.RendererOpener, log logger.ILogger) (*Assembler, error) {

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(readers) == 0 {
		return nil, dataerror.MakeConfigError("assembly needs at least one MEDS reader")
	}

	a := &Assembler{
		cfg:     cfg,
		fs:      fs,
		bucket:  bucket,
		log:     log,
		readers: readers,
	}
	if err := a.verifyBands(); err != nil {
		return nil, err
	}

	a.infos = make([][]meds.ImageInfo, len(readers))
	a.bandNames = make([]string, len(readers))
	for band, reader := range readers {
		a.infos[band] = reader.ImageInfo()
		a.bandNames[band] = bandNameFromPath(reader.Path())
	}
	a.coaddRun = coaddRunFromPath(readers[0].Path(), cfg.DataDir, readers[0].Meta().BaseDir)

	scheme, err := imageflags.SchemeByName(cfg.BadpixScheme)
	if err != nil {
		return nil, err
	}
	if a.starBit, err = scheme.Bit("STAR"); err != nil {
		return nil, err
	}

	if err := a.resolveFlags(); err != nil {
		return nil, err
	}
	if a.psfs, err = psf.NewLoader(cfg, fs, bucket, readers, a.flags, opener, log); err != nil {
		return nil, err
	}
	if err := a.loadWCS(); err != nil {
		return nil, err
	}

	if cfg.PropagateStarFlags {
		if a.prop, err = maskprop.NewPropagator(readers, scheme, cfg.IgnoreFlags, log); err != nil {
			return nil, err
		}
		if len(cfg.PreviewDir) > 0 {
			a.prop = a.prop.WithPreviews(maskprop.NewPreviewWriter(fs, bucket, cfg.PreviewDir, log))
		}
	}

	log.Infof("Assembler ready: %v bands %v, %v objects, psf backend %v",
		len(readers), a.bandNames, a.nobj, cfg.PSFType)
	return a, nil
}

// verifyBands - every band's cutout file must describe the same objects
// in the same order, or bundles would silently mix sources
func (a *Assembler) verifyBands() error {
	a.nobj = a.readers[0].NObj()
	for band := 1; band < len(a.readers); band++ {
		if n := a.readers[band].NObj(); n != a.nobj {
			return dataerror.MakeConfigError("band %v MEDS has %v objects, band 0 has %v", band, n, a.nobj)
		}
	}

	for iobj := 0; iobj < a.nobj; iobj++ {
		id0, err := a.readers[0].ID(iobj)
		if err != nil {
			return err
		}
		for band := 1; band < len(a.readers); band++ {
			id, err := a.readers[band].ID(iobj)
			if err != nil {
				return err
			}
			if id != id0 {
				return dataerror.MakeConfigError("object %v id mismatch: band 0 has %v, band %v has %v",
					iobj, id0, band, id)
			}
		}
	}
	return nil
}

// resolveFlags - raw image_flags, through replacement overrides when
// configured, reduced to per-exposure verdicts, then the tiling
// restriction. PSF gates come later and OR into the same words
func (a *Assembler) resolveFlags() error {
	var replacement *imageflags.ReplacementFlags
	if len(a.cfg.ReplacementFlags) > 0 {
		var err error
		replacement, err = imageflags.LoadReplacementFlags(a.fs, a.bucket, a.cfg.ReplacementFlags, a.log)
		if err != nil {
			return err
		}
	}

	a.flags = make([][]int64, len(a.readers))
	for band := range a.readers {
		info := a.infos[band]

		raw := make([]int64, len(info))
		for i := range info {
			raw[i] = info[i].ImageFlags
		}
		if replacement != nil {
			// The coadd keeps its own assessment, overrides only speak to
			// single-epoch images
			for i := 1; i < len(info); i++ {
				raw[i] = replacement.Lookup(info[i].ImagePath, a.cfg.ImageFlags2Check)
			}
		}
		a.flags[band] = imageflags.Reduce(raw, a.cfg.ImageFlags2Check, a.cfg.FitCoadd)

		if len(a.cfg.Tilings) > 0 {
			err := imageflags.RestrictTilings(a.fs, a.bucket, a.localImagePaths(band), a.cfg.Tilings,
				a.flags[band], a.log)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// loadWCS - full transforms per band when the run wants them, eg for
// off-chip neighbor placement. A band's store may hold nil entries for
// exposures whose source was missing; consumers tolerate that
func (a *Assembler) loadWCS() error {
	if !a.cfg.ReadWCS && !a.cfg.ReadMEWCS {
		return nil
	}

	a.stores = make([]*wcs.Store, len(a.readers))
	for band, reader := range a.readers {
		var store *wcs.Store
		var err error
		switch a.cfg.WCSSource {
		case config.WCSSourceFile:
			store, err = wcs.LoadFromTileJSON(a.fs, a.bucket, reader.Path(), a.log)
		case config.WCSSourceMEDS:
			blobs := make([]string, len(a.infos[band]))
			for i, info := range a.infos[band] {
				blobs[i] = info.WCSJSON
			}
			store, err = wcs.LoadFromMEDS(blobs, a.log)
		case config.WCSSourceHeaders:
			store, err = wcs.LoadFromHeaders(a.fs, a.bucket, a.localImagePaths(band), a.cfg.AstromDir, a.log)
		}
		if err != nil {
			return err
		}
		a.stores[band] = store
	}
	return nil
}

// localImagePaths - the band's image_info paths moved from the recorded
// data root to the configured one, with env tokens expanded
func (a *Assembler) localImagePaths(band int) []string {
	base := a.readers[band].Meta().BaseDir
	paths := make([]string, len(a.infos[band]))
	for i, info := range a.infos[band] {
		paths[i] = localPath(info.ImagePath, base, a.cfg.DataDir)
	}
	return paths
}

func localPath(stored string, baseDir string, dataDir string) string {
	p := stored
	if len(baseDir) > 0 && len(dataDir) > 0 {
		p = strings.Replace(p, baseDir, dataDir, 1)
	}
	return os.ExpandEnv(p)
}

// bandNameFromPath - the band token of a cutout file name, the element
// right before "meds" in the dash-separated basename, eg "r" in
// DES0347-5540-r-meds-y3v02.fits.fz. Empty when the name has another
// shape
func bandNameFromPath(medsPath string) string {
	base := medsPath
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[idx+1:]
	}

	parts := strings.Split(base, "-")
	for i := 1; i < len(parts); i++ {
		if parts[i] == "meds" {
			return parts[i-1]
		}
	}
	return ""
}

// coaddRunFromPath - the run directory a cutout file sits under, the
// third path element below the data root. Empty when the path is too
// shallow or lives outside every root
func coaddRunFromPath(medsPath string, roots ...string) string {
	for _, root := range roots {
		if len(root) == 0 || !strings.HasPrefix(medsPath, root) {
			continue
		}

		parts := []string{}
		for _, part := range strings.Split(strings.TrimPrefix(medsPath, root), "/") {
			if len(part) > 0 {
				parts = append(parts, part)
			}
		}
		if len(parts) >= 3 {
			return parts[2]
		}
	}
	return ""
}
