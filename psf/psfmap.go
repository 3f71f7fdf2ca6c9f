package psf

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/shearfit/obsio/v2/core/dataerror"
	"github.com/shearfit/obsio/v2/core/fileaccess"
	"github.com/shearfit/obsio/v2/core/logger"
	"github.com/shearfit/obsio/v2/core/sefilename"
)

// The coadd has no exposure number of its own, map files mark its entry
// with this
const coaddMapExpnum = -9999

// Map - exposure key to PSF model path, read from one map file per band.
// Lines are either "key path" or the DESDM "expnum ccdnum path" form,
// where the key is built the same way the model summaries build theirs.
// Each band's map also carries one coadd entry
type Map struct {
	paths map[string]string
	coadd []string
}

// LoadMap - reads all per-band map files into one lookup. Single-epoch
// keys share one namespace because exposures never repeat across bands,
// coadd entries keep band order
func LoadMap(fs fileaccess.FileAccess, bucket string, mapFiles []string, log logger.ILogger) (*Map, error) {
	m := &Map{
		paths: map[string]string{},
	}

	for _, mapFile := range mapFiles {
		log.Infof("reading psf map: %v", mapFile)

		data, err := fs.ReadObject(bucket, mapFile)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read psf map %v", mapFile)
		}

		for _, line := range strings.Split(string(data), "\n") {
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}

			var key, pattern string
			switch len(fields) {
			case 2:
				key = fields[0]
				pattern = fields[1]
			case 3:
				expnum, err := strconv.Atoi(fields[0])
				if err != nil {
					return nil, dataerror.MakeConfigError("badly formatted psf map line: '%v'", strings.TrimSpace(line))
				}
				ccdnum, err := strconv.Atoi(fields[1])
				if err != nil {
					return nil, dataerror.MakeConfigError("badly formatted psf map line: '%v'", strings.TrimSpace(line))
				}
				pattern = fields[2]
				if expnum == coaddMapExpnum {
					m.coadd = append(m.coadd, os.ExpandEnv(pattern))
					continue
				}
				key = sefilename.MakeKey(expnum, ccdnum)
			default:
				return nil, dataerror.MakeConfigError("badly formatted psf map line: '%v'", strings.TrimSpace(line))
			}

			m.paths[key] = os.ExpandEnv(pattern)
		}
	}

	if len(m.coadd) != len(mapFiles) {
		return nil, dataerror.MakeConfigError("psf maps define %v coadd entries for %v map files",
			len(m.coadd), len(mapFiles))
	}

	log.Infof("    %v psf map entries over %v bands", len(m.paths), len(m.coadd))
	return m, nil
}

// SEPath - the model path for a single-epoch exposure key. The map is
// supposed to cover every exposure in the run, a miss means the run was
// assembled against the wrong map
func (m *Map) SEPath(key string) (string, error) {
	psfPath, ok := m.paths[key]
	if !ok {
		return "", dataerror.MakeConfigError("no psf map entry for %v", key)
	}
	return psfPath, nil
}

// CoaddPath - the coadd model path for a band
func (m *Map) CoaddPath(band int) (string, error) {
	if band < 0 || band >= len(m.coadd) {
		return "", dataerror.MakeConfigError("no coadd psf map entry for band %v (have %v)", band, len(m.coadd))
	}
	return m.coadd[band], nil
}
