package imageflags

import (
	"github.com/shearfit/obsio/v2/core/fileaccess"
	"github.com/shearfit/obsio/v2/core/logger"
	"github.com/shearfit/obsio/v2/core/sefilename"
)

// Post-release flag assessments arrive as a JSON table keyed by image
// basename, the text before the first dot. A single-epoch entry found
// there overrides whatever image_flags the cutout file recorded.
//
//	{"D00239652_i_c31_r2362p01_immasked": 0, "D00503010_r_c45_r2362p01_immasked": 1024}

// ReplacementFlags - per-image flag overrides
type ReplacementFlags struct {
	path  string
	flags map[string]int64
}

// LoadReplacementFlags - reads the override table through FileAccess
func LoadReplacementFlags(fs fileaccess.FileAccess, bucket string, path string, log logger.ILogger) (*ReplacementFlags, error) {
	r := &ReplacementFlags{
		path:  path,
		flags: map[string]int64{},
	}
	err := fs.ReadJSON(bucket, path, &r.flags, false)
	if err != nil {
		return nil, err
	}
	log.Infof("Read %v replacement flag entries from %v", len(r.flags), path)
	return r, nil
}

// Lookup - the override for one image path. A path with no entry gets
// the caller's default, which callers set to the full check mask so an
// unassessed image counts as flagged. Never errors
func (r *ReplacementFlags) Lookup(imagePath string, defaultFlags int64) int64 {
	flags, ok := r.flags[sefilename.StripFITSExtension(imagePath)]
	if !ok {
		return defaultFlags
	}
	return flags
}

// LookupMulti - Lookup over a path list, order preserved
func (r *ReplacementFlags) LookupMulti(imagePaths []string, defaultFlags int64) []int64 {
	flags := make([]int64, len(imagePaths))
	for i, imagePath := range imagePaths {
		flags[i] = r.Lookup(imagePath, defaultFlags)
	}
	return flags
}

// Path - where the table was read from
func (r *ReplacementFlags) Path() string {
	return r.path
}
