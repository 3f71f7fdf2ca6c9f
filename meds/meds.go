// Package meds reads Multi Epoch Data Structure files: per-object postage
// stamp cutouts cut from every exposure that touched an object, stored as
// binary tables (object_data, image_info, metadata) plus flat 1-D image
// extensions addressed by start_row. Epoch 0 of every object is the coadd,
// epochs 1..n are single-epoch exposures.
//
// Reader is the access contract. FITSReader implements it over real files,
// MemReader implements it in memory and doubles as the fixture factory for
// tests all the way up the pipeline.
package meds

import (
	"github.com/shearfit/obsio/v2/core/imggrid"
	"github.com/shearfit/obsio/v2/obs"
)

// Kind - which cutout plane to fetch
type Kind string

const (
	KindImage  Kind = "image"
	KindWeight Kind = "weight"
	KindBmask  Kind = "bmask"
	KindSeg    Kind = "seg"
)

// ImageInfo - one source exposure as enumerated by the image_info table.
// Epoch file_id indexes into this. Flags start as the file's image_flags
// and may be overwritten once by replacement flags before assembly
type ImageInfo struct {
	ImageID        int64
	ImagePath      string
	ImageFlags     int64
	Magzp          float64
	Scale          float64
	WCSJSON        string
	PositionOffset float64
}

// Meta - the metadata table fields we care about
type Meta struct {
	MagzpRef float64
	BaseDir  string // the data root recorded at MEDS-making time, swapped for Config.DataDir
	MedsConf string
}

// Reader - everything the pipeline asks of a MEDS file. All indexes are
// 0-based; icut 0 is the coadd epoch
type Reader interface {
	// NObj - number of objects
	NObj() int
	// ID - catalog id of an object
	ID(iobj int) (int64, error)
	// Number - the object's number in the segmentation maps
	Number(iobj int) (int64, error)
	// NCutout - how many epochs this object has, coadd included
	NCutout(iobj int) (int, error)
	// BoxSize - cutout edge length in pixels
	BoxSize(iobj int) (int, error)
	// FileID - index into ImageInfo() for an epoch
	FileID(iobj int, icut int) (int, error)
	// OrigRowCol - object center on the original exposure
	OrigRowCol(iobj int, icut int) (float64, float64, error)
	// CutoutRowCol - object center within the cutout stamp
	CutoutRowCol(iobj int, icut int) (float64, float64, error)
	// Jacobian - local WCS linearisation at the object center
	Jacobian(iobj int, icut int) (obs.Jacobian, error)
	// Cutout - an image or weight plane
	Cutout(iobj int, icut int, kind Kind) (*imggrid.Float64, error)
	// MaskCutout - a bmask or seg plane
	MaskCutout(iobj int, icut int, kind Kind) (*imggrid.Int32, error)
	// HasPSF - true when the file carries in-file PSF stamps
	HasPSF() bool
	// GetPSF - in-file PSF stamp and its center within the stamp
	GetPSF(iobj int, icut int) (*imggrid.Float64, float64, float64, error)
	// ImageInfo - the exposure list, callers get their own copy
	ImageInfo() []ImageInfo
	// Meta - the metadata fields
	Meta() Meta
	// Path - where this MEDS came from, for messages and path surgery
	Path() string
}
