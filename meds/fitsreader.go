package meds

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/shearfit/obsio/v2/core/fileaccess"
	"github.com/shearfit/obsio/v2/core/fitsio"
	"github.com/shearfit/obsio/v2/core/imggrid"
	"github.com/shearfit/obsio/v2/core/logger"
	"github.com/shearfit/obsio/v2/obs"
)

// Extension names in a MEDS file
const (
	extObjectData = "object_data"
	extImageInfo  = "image_info"
	extMetadata   = "metadata"
	extPSF        = "psf"
)

var cutoutExtNames = map[Kind]string{
	KindImage:  "image_cutouts",
	KindWeight: "weight_cutouts",
	KindBmask:  "bmask_cutouts",
	KindSeg:    "seg_cutouts",
}

// One parsed object_data row. Per-epoch arrays are NMAX wide, only the
// first ncutout entries are meaningful
type objectRow struct {
	id      int64
	number  int64
	ncutout int
	boxSize int

	fileID    []int64
	origRow   []float64
	origCol   []float64
	cutoutRow []float64
	cutoutCol []float64
	dudRow    []float64
	dudCol    []float64
	dvdRow    []float64
	dvdCol    []float64
	startRow  []int64

	psfRowSize   []int64
	psfColSize   []int64
	psfCutoutRow []float64
	psfCutoutCol []float64
	psfStartRow  []int64
}

// FITSReader - Reader over a real MEDS file. The whole file is parsed up
// front (the fits package loads HDUs eagerly anyway), cutout plane
// extensions are converted to typed arrays once on first use
type FITSReader struct {
	path    string
	file    *fitsio.File
	objects []objectRow
	images  []ImageInfo
	meta    Meta
	hasPSF  bool

	floatPlanes map[Kind][]float64
	maskPlanes  map[Kind][]int32
	psfPlane    []float64
}

// OpenFITS - opens and parses a MEDS file through FileAccess
func OpenFITS(fs fileaccess.FileAccess, bucket string, medsPath string, log logger.ILogger) (*FITSReader, error) {
	file, err := fitsio.Open(fs, bucket, medsPath)
	if err != nil {
		return nil, err
	}

	r := &FITSReader{
		path:        medsPath,
		file:        file,
		floatPlanes: map[Kind][]float64{},
		maskPlanes:  map[Kind][]int32{},
	}

	err = r.parseObjects()
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read object_data from %v", medsPath)
	}
	err = r.parseImages()
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read image_info from %v", medsPath)
	}
	err = r.parseMeta()
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read metadata from %v", medsPath)
	}

	log.Infof("Opened MEDS %v: %v objects, %v exposures, in-file PSFs: %v", medsPath, len(r.objects), len(r.images), r.hasPSF)
	return r, nil
}

func (r *FITSReader) parseObjects() error {
	table, err := r.file.HDUByName(extObjectData)
	if err != nil {
		return err
	}

	withPSF := fitsio.HasColumn(table, "psf_start_row")
	if withPSF {
		if _, err := r.file.HDUByName(extPSF); err != nil {
			withPSF = false
		}
	}
	r.hasPSF = withPSF

	// Some files record square stamps as psf_box_size instead of
	// row/col sizes
	psfBoxOnly := withPSF && !fitsio.HasColumn(table, "psf_row_size")

	rows := fitsio.NumRows(table)
	r.objects = make([]objectRow, 0, rows)
	for row := 0; row < rows; row++ {
		var object objectRow
		if object.id, err = fitsio.CellInt64(table, "id", row); err != nil {
			return err
		}
		if object.number, err = fitsio.CellInt64(table, "number", row); err != nil {
			return err
		}

		ncutout, err := fitsio.CellInt64(table, "ncutout", row)
		if err != nil {
			return err
		}
		object.ncutout = int(ncutout)

		boxSize, err := fitsio.CellInt64(table, "box_size", row)
		if err != nil {
			return err
		}
		object.boxSize = int(boxSize)

		if object.fileID, err = fitsio.CellInt64s(table, "file_id", row); err != nil {
			return err
		}
		if object.origRow, err = fitsio.CellFloat64s(table, "orig_row", row); err != nil {
			return err
		}
		if object.origCol, err = fitsio.CellFloat64s(table, "orig_col", row); err != nil {
			return err
		}
		if object.cutoutRow, err = fitsio.CellFloat64s(table, "cutout_row", row); err != nil {
			return err
		}
		if object.cutoutCol, err = fitsio.CellFloat64s(table, "cutout_col", row); err != nil {
			return err
		}
		if object.dudRow, err = fitsio.CellFloat64s(table, "dudrow", row); err != nil {
			return err
		}
		if object.dudCol, err = fitsio.CellFloat64s(table, "dudcol", row); err != nil {
			return err
		}
		if object.dvdRow, err = fitsio.CellFloat64s(table, "dvdrow", row); err != nil {
			return err
		}
		if object.dvdCol, err = fitsio.CellFloat64s(table, "dvdcol", row); err != nil {
			return err
		}
		if object.startRow, err = fitsio.CellInt64s(table, "start_row", row); err != nil {
			return err
		}

		if object.ncutout > len(object.fileID) {
			return fmt.Errorf("object %v claims %v cutouts but arrays hold %v", row, object.ncutout, len(object.fileID))
		}

		if withPSF {
			if psfBoxOnly {
				box, err := fitsio.CellInt64s(table, "psf_box_size", row)
				if err != nil {
					return err
				}
				object.psfRowSize = box
				object.psfColSize = box
			} else {
				if object.psfRowSize, err = fitsio.CellInt64s(table, "psf_row_size", row); err != nil {
					return err
				}
				if object.psfColSize, err = fitsio.CellInt64s(table, "psf_col_size", row); err != nil {
					return err
				}
			}
			if object.psfCutoutRow, err = fitsio.CellFloat64s(table, "psf_cutout_row", row); err != nil {
				return err
			}
			if object.psfCutoutCol, err = fitsio.CellFloat64s(table, "psf_cutout_col", row); err != nil {
				return err
			}
			if object.psfStartRow, err = fitsio.CellInt64s(table, "psf_start_row", row); err != nil {
				return err
			}
		}

		r.objects = append(r.objects, object)
	}
	return nil
}

func (r *FITSReader) parseImages() error {
	table, err := r.file.HDUByName(extImageInfo)
	if err != nil {
		return err
	}

	hasWCS := fitsio.HasColumn(table, "wcs")
	hasOffset := fitsio.HasColumn(table, "position_offset")

	rows := fitsio.NumRows(table)
	r.images = make([]ImageInfo, 0, rows)
	for row := 0; row < rows; row++ {
		var info ImageInfo
		if info.ImageID, err = fitsio.CellInt64(table, "image_id", row); err != nil {
			return err
		}
		if info.ImagePath, err = fitsio.CellString(table, "image_path", row); err != nil {
			return err
		}
		if info.ImageFlags, err = fitsio.CellInt64(table, "image_flags", row); err != nil {
			return err
		}
		if info.Magzp, err = fitsio.CellFloat64(table, "magzp", row); err != nil {
			return err
		}
		if info.Scale, err = fitsio.CellFloat64(table, "scale", row); err != nil {
			return err
		}
		if hasWCS {
			if info.WCSJSON, err = fitsio.CellString(table, "wcs", row); err != nil {
				return err
			}
		}
		if hasOffset {
			if info.PositionOffset, err = fitsio.CellFloat64(table, "position_offset", row); err != nil {
				return err
			}
		}
		r.images = append(r.images, info)
	}
	return nil
}

func (r *FITSReader) parseMeta() error {
	table, err := r.file.HDUByName(extMetadata)
	if err != nil {
		return err
	}
	if fitsio.NumRows(table) <= 0 {
		return fmt.Errorf("metadata table is empty")
	}

	if fitsio.HasColumn(table, "magzp_ref") {
		if r.meta.MagzpRef, err = fitsio.CellFloat64(table, "magzp_ref", 0); err != nil {
			return err
		}
	}
	if fitsio.HasColumn(table, "DESDATA") {
		if r.meta.BaseDir, err = fitsio.CellString(table, "DESDATA", 0); err != nil {
			return err
		}
	}
	if fitsio.HasColumn(table, "medsconf") {
		if r.meta.MedsConf, err = fitsio.CellString(table, "medsconf", 0); err != nil {
			return err
		}
	}
	return nil
}

func (r *FITSReader) object(iobj int) (*objectRow, error) {
	if iobj < 0 || iobj >= len(r.objects) {
		return nil, fmt.Errorf("object %v out of range in %v (have %v)", iobj, r.path, len(r.objects))
	}
	return &r.objects[iobj], nil
}

func (r *FITSReader) cutoutRange(iobj int, icut int) (*objectRow, error) {
	object, err := r.object(iobj)
	if err != nil {
		return nil, err
	}
	if icut < 0 || icut >= object.ncutout {
		return nil, fmt.Errorf("cutout %v out of range for object %v in %v (have %v)", icut, iobj, r.path, object.ncutout)
	}
	return object, nil
}

func (r *FITSReader) NObj() int {
	return len(r.objects)
}

func (r *FITSReader) ID(iobj int) (int64, error) {
	object, err := r.object(iobj)
	if err != nil {
		return 0, err
	}
	return object.id, nil
}

func (r *FITSReader) Number(iobj int) (int64, error) {
	object, err := r.object(iobj)
	if err != nil {
		return 0, err
	}
	return object.number, nil
}

func (r *FITSReader) NCutout(iobj int) (int, error) {
	object, err := r.object(iobj)
	if err != nil {
		return 0, err
	}
	return object.ncutout, nil
}

func (r *FITSReader) BoxSize(iobj int) (int, error) {
	object, err := r.object(iobj)
	if err != nil {
		return 0, err
	}
	return object.boxSize, nil
}

func (r *FITSReader) FileID(iobj int, icut int) (int, error) {
	object, err := r.cutoutRange(iobj, icut)
	if err != nil {
		return 0, err
	}
	return int(object.fileID[icut]), nil
}

func (r *FITSReader) OrigRowCol(iobj int, icut int) (float64, float64, error) {
	object, err := r.cutoutRange(iobj, icut)
	if err != nil {
		return 0, 0, err
	}
	return object.origRow[icut], object.origCol[icut], nil
}

func (r *FITSReader) CutoutRowCol(iobj int, icut int) (float64, float64, error) {
	object, err := r.cutoutRange(iobj, icut)
	if err != nil {
		return 0, 0, err
	}
	return object.cutoutRow[icut], object.cutoutCol[icut], nil
}

func (r *FITSReader) Jacobian(iobj int, icut int) (obs.Jacobian, error) {
	object, err := r.cutoutRange(iobj, icut)
	if err != nil {
		return obs.Jacobian{}, err
	}
	return obs.MakeJacobian(
		object.cutoutRow[icut], object.cutoutCol[icut],
		object.dudRow[icut], object.dudCol[icut],
		object.dvdRow[icut], object.dvdCol[icut])
}

func (r *FITSReader) floatPlane(kind Kind) ([]float64, error) {
	if data, ok := r.floatPlanes[kind]; ok {
		return data, nil
	}
	hdu, err := r.file.HDUByName(cutoutExtNames[kind])
	if err != nil {
		return nil, err
	}
	data, err := fitsio.ImageFloat64(hdu)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read %v extension in %v", cutoutExtNames[kind], r.path)
	}
	r.floatPlanes[kind] = data
	return data, nil
}

func (r *FITSReader) maskPlane(kind Kind) ([]int32, error) {
	if data, ok := r.maskPlanes[kind]; ok {
		return data, nil
	}
	hdu, err := r.file.HDUByName(cutoutExtNames[kind])
	if err != nil {
		return nil, err
	}
	data, err := fitsio.ImageInt32(hdu)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read %v extension in %v", cutoutExtNames[kind], r.path)
	}
	r.maskPlanes[kind] = data
	return data, nil
}

func (r *FITSReader) cutoutSlice(iobj int, icut int, flatLen int) (start int, n int, box int, err error) {
	object, err := r.cutoutRange(iobj, icut)
	if err != nil {
		return 0, 0, 0, err
	}
	box = object.boxSize
	n = box * box
	start = int(object.startRow[icut])
	if start < 0 || start+n > flatLen {
		return 0, 0, 0, fmt.Errorf("cutout %v of object %v at %v..%v is outside the plane data (%v values) in %v", icut, iobj, start, start+n, flatLen, r.path)
	}
	return start, n, box, nil
}

func (r *FITSReader) Cutout(iobj int, icut int, kind Kind) (*imggrid.Float64, error) {
	if kind != KindImage && kind != KindWeight {
		return nil, fmt.Errorf("cutout kind %v is not a float plane", kind)
	}
	flat, err := r.floatPlane(kind)
	if err != nil {
		return nil, err
	}
	start, n, box, err := r.cutoutSlice(iobj, icut, len(flat))
	if err != nil {
		return nil, err
	}
	return imggrid.MakeFloat64FromSlice(box, box, flat[start:start+n])
}

func (r *FITSReader) MaskCutout(iobj int, icut int, kind Kind) (*imggrid.Int32, error) {
	if kind != KindBmask && kind != KindSeg {
		return nil, fmt.Errorf("cutout kind %v is not a mask plane", kind)
	}
	flat, err := r.maskPlane(kind)
	if err != nil {
		return nil, err
	}
	start, n, box, err := r.cutoutSlice(iobj, icut, len(flat))
	if err != nil {
		return nil, err
	}
	return imggrid.MakeInt32FromSlice(box, box, flat[start:start+n])
}

func (r *FITSReader) HasPSF() bool {
	return r.hasPSF
}

func (r *FITSReader) GetPSF(iobj int, icut int) (*imggrid.Float64, float64, float64, error) {
	if !r.hasPSF {
		return nil, 0, 0, fmt.Errorf("MEDS %v carries no in-file PSF stamps", r.path)
	}
	object, err := r.cutoutRange(iobj, icut)
	if err != nil {
		return nil, 0, 0, err
	}

	if r.psfPlane == nil {
		hdu, err := r.file.HDUByName(extPSF)
		if err != nil {
			return nil, 0, 0, err
		}
		r.psfPlane, err = fitsio.ImageFloat64(hdu)
		if err != nil {
			return nil, 0, 0, errors.Wrapf(err, "Failed to read psf extension in %v", r.path)
		}
	}

	rows := int(object.psfRowSize[icut])
	cols := int(object.psfColSize[icut])
	start := int(object.psfStartRow[icut])
	n := rows * cols
	if start < 0 || start+n > len(r.psfPlane) {
		return nil, 0, 0, fmt.Errorf("psf stamp %v of object %v at %v..%v is outside the psf data (%v values) in %v", icut, iobj, start, start+n, len(r.psfPlane), r.path)
	}

	stamp, err := imggrid.MakeFloat64FromSlice(rows, cols, r.psfPlane[start:start+n])
	if err != nil {
		return nil, 0, 0, err
	}
	return stamp, object.psfCutoutRow[icut], object.psfCutoutCol[icut], nil
}

func (r *FITSReader) ImageInfo() []ImageInfo {
	info := make([]ImageInfo, len(r.images))
	copy(info, r.images)
	return info
}

func (r *FITSReader) Meta() Meta {
	return r.meta
}

func (r *FITSReader) Path() string {
	return r.path
}
