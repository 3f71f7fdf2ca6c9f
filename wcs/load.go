package wcs

import (
	"encoding/json"
	"path"
	"strings"

	"github.com/pkg/errors"
	"github.com/siravan/fits"

	"github.com/shearfit/obsio/v2/core/dataerror"
	"github.com/shearfit/obsio/v2/core/fileaccess"
	"github.com/shearfit/obsio/v2/core/fitsio"
	"github.com/shearfit/obsio/v2/core/logger"
	"github.com/shearfit/obsio/v2/core/sefilename"
)

// Store - exposure file_id to transform for one band. Exposures whose WCS
// source was missing hold nil; consumers check and degrade
type Store struct {
	transforms map[int]*Transform
}

func NewStore() *Store {
	return &Store{transforms: map[int]*Transform{}}
}

func (s *Store) Set(fileID int, t *Transform) {
	s.transforms[fileID] = t
}

// Get - the transform for an exposure, nil when the source was missing
// or the file_id was never loaded
func (s *Store) Get(fileID int) *Transform {
	return s.transforms[fileID]
}

// Len - how many exposures have entries, nil entries included
func (s *Store) Len() int {
	return len(s.transforms)
}

// TileWCSPath - where the pre-baked per-tile WCS list sits next to a
// cutout file: the meds token becomes meds-wcs and the FITS extension
// becomes .json
func TileWCSPath(medsPath string) string {
	name := strings.Replace(medsPath, "-meds-", "-meds-wcs-", 1)
	name = strings.Replace(name, ".fits.fz", ".fits", 1)
	return strings.Replace(name, ".fits", ".json", 1)
}

// LoadFromTileJSON - reads the per-tile WCS list, a JSON array of header
// maps with entry i belonging to exposure file_id i. The list is written
// alongside the cutout file at MEDS-making time, so a missing or
// malformed list is fatal
func LoadFromTileJSON(fs fileaccess.FileAccess, bucket string, medsPath string, log logger.ILogger) (*Store, error) {
	wcsPath := TileWCSPath(medsPath)
	log.Infof("Loading WCS list from %v", wcsPath)

	headers := []map[string]interface{}{}
	err := fs.ReadJSON(bucket, wcsPath, &headers, false)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read WCS list %v", wcsPath)
	}

	store := NewStore()
	for i, hdr := range headers {
		t, err := NewTransform(hdr)
		if err != nil {
			return nil, errors.Wrapf(err, "Bad WCS entry %v in %v", i, wcsPath)
		}
		store.Set(i, t)
	}
	return store, nil
}

// LoadFromMEDS - builds transforms from the wcs JSON blobs recorded in a
// cutout file's image_info table, in file_id order. An exposure with no
// blob gets a nil entry
func LoadFromMEDS(wcsJSONs []string, log logger.ILogger) (*Store, error) {
	store := NewStore()
	loaded := 0
	for i, blob := range wcsJSONs {
		if len(strings.TrimSpace(blob)) == 0 {
			store.Set(i, nil)
			continue
		}

		hdr := map[string]interface{}{}
		err := json.Unmarshal([]byte(blob), &hdr)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to parse wcs JSON for exposure %v", i)
		}
		t, err := NewTransform(hdr)
		if err != nil {
			return nil, errors.Wrapf(err, "Bad wcs for exposure %v", i)
		}
		store.Set(i, t)
		loaded++
	}
	log.Infof("Loaded %v/%v WCS transforms from image_info", loaded, len(wcsJSONs))
	return store, nil
}

// LoadFromHeaders - reads each exposure's WCS from its original image
// header, taking the first HDU carrying reference keys. When astromDir is
// set and holds a .head file for the image, the refined astrometric cards
// replace the image header solution. A missing image or .head is
// tolerated with a nil entry; a present-but-unreadable one is not
func LoadFromHeaders(fs fileaccess.FileAccess, bucket string, imagePaths []string, astromDir string, log logger.ILogger) (*Store, error) {
	store := NewStore()
	for i, imagePath := range imagePaths {
		t, err := headerTransform(fs, bucket, imagePath, log)
		if err != nil {
			return nil, err
		}

		if len(astromDir) > 0 {
			refined, err := headTransform(fs, bucket, astromDir, imagePath, log)
			if err != nil {
				return nil, err
			}
			if refined != nil {
				t = refined
			}
		}
		store.Set(i, t)
	}
	return store, nil
}

func headerTransform(fs fileaccess.FileAccess, bucket string, imagePath string, log logger.ILogger) (*Transform, error) {
	file, err := fitsio.Open(fs, bucket, imagePath)
	if err != nil {
		var missing dataerror.MissingDataError
		if errors.As(err, &missing) {
			log.Errorf("Missing WCS source image: %v", imagePath)
			return nil, nil
		}
		return nil, err
	}

	var unit *fits.Unit
	for _, u := range file.Units {
		if HasWCSKeys(u) {
			unit = u
			break
		}
	}
	if unit == nil {
		log.Errorf("No WCS keys in any header of %v", imagePath)
		return nil, nil
	}

	t, err := FromFITSHeader(unit)
	if err != nil {
		return nil, errors.Wrapf(err, "Bad WCS header in %v", imagePath)
	}
	return t, nil
}

func headTransform(fs fileaccess.FileAccess, bucket string, astromDir string, imagePath string, log logger.ILogger) (*Transform, error) {
	headPath := path.Join(astromDir, sefilename.StripFITSExtension(imagePath)+".head")

	data, err := fs.ReadObject(bucket, headPath)
	if err != nil {
		if fs.IsNotFoundError(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "Failed to read astrometric head %v", headPath)
	}

	hdr, err := ParseHead(data)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to parse astrometric head %v", headPath)
	}
	t, err := NewTransform(hdr)
	if err != nil {
		return nil, errors.Wrapf(err, "Bad WCS in astrometric head %v", headPath)
	}
	log.Debugf("Refined WCS from %v", headPath)
	return t, nil
}
