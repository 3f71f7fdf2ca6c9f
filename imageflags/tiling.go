package imageflags

import (
	"github.com/siravan/fits"

	"github.com/shearfit/obsio/v2/core/dataerror"
	"github.com/shearfit/obsio/v2/core/fileaccess"
	"github.com/shearfit/obsio/v2/core/fitsio"
	"github.com/shearfit/obsio/v2/core/logger"
	"github.com/shearfit/obsio/v2/core/utils"
)

// Survey observing runs interleave pointings from several tilings. Cutout
// files don't record which tiling an exposure came from, so when a run is
// restricted to certain tilings the TILING header key has to be read back
// from each single-epoch image.

// RestrictTilings - marks single-epoch exposures whose TILING header value
// is outside the allowed set as unusable. flags entry i goes with
// imagePaths entry i and is updated in place; entry 0 is the coadd, which
// has no tiling. Entries already marked unusable are not read at all, so
// a flagged exposure may be absent from disk without failing the run
func RestrictTilings(fs fileaccess.FileAccess, bucket string, imagePaths []string, allowed []int, flags []int64, log logger.ILogger) error {
	if len(allowed) <= 0 {
		return nil
	}

	restricted := 0
	for i := 1; i < len(imagePaths); i++ {
		if flags[i] != 0 {
			continue
		}

		tiling, err := readTiling(fs, bucket, imagePaths[i])
		if err != nil {
			return err
		}

		if !utils.ItemInSlice(tiling, allowed) {
			log.Debugf("Image tiling %v not in requested tilings %v: %v", tiling, allowed, imagePaths[i])
			flags[i] |= ImageFlagsSet
			restricted++
		}
	}

	if restricted > 0 {
		log.Infof("Tiling restriction %v flagged %v/%v exposures", allowed, restricted, len(imagePaths)-1)
	}
	return nil
}

func readTiling(fs fileaccess.FileAccess, bucket string, imagePath string) (int, error) {
	file, err := fitsio.Open(fs, bucket, imagePath)
	if err != nil {
		return 0, err
	}

	// Single-epoch products carry TILING on the science image HDU, whose
	// position varies with compression history, so scan for it
	var unit *fits.Unit
	for _, u := range file.Units {
		if fitsio.HasHeaderKey(u, "TILING") {
			unit = u
			break
		}
	}
	if unit == nil {
		return 0, dataerror.MakeMissingDataError(imagePath, "no TILING key in any header")
	}
	return fitsio.HeaderInt(unit, "TILING")
}
