package meds

import (
	"fmt"

	"github.com/shearfit/obsio/v2/core/imggrid"
	"github.com/shearfit/obsio/v2/obs"
)

// MemReader - a MEDS held in memory. Fields are exported so tests and
// synthetic pipelines can build one up directly
type MemReader struct {
	Objects    []MemObject
	Images     []ImageInfo
	MetaData   Meta
	SourcePath string
}

// MemObject - one object with its epochs
type MemObject struct {
	ID      int64
	Number  int64
	BoxSize int
	Cutouts []MemCutout
}

// MemCutout - one epoch of one object. Plane grids may be left nil when a
// test doesn't need them
type MemCutout struct {
	FileID               int
	OrigRow, OrigCol     float64
	CutoutRow, CutoutCol float64

	DuDrow, DuDcol float64
	DvDrow, DvDcol float64

	Image  *imggrid.Float64
	Weight *imggrid.Float64
	Bmask  *imggrid.Int32
	Seg    *imggrid.Int32

	PSF            *imggrid.Float64
	PSFRow, PSFCol float64
}

func (m *MemReader) object(iobj int) (*MemObject, error) {
	if iobj < 0 || iobj >= len(m.Objects) {
		return nil, fmt.Errorf("object %v out of range in %v (have %v)", iobj, m.SourcePath, len(m.Objects))
	}
	return &m.Objects[iobj], nil
}

func (m *MemReader) cutout(iobj int, icut int) (*MemCutout, error) {
	object, err := m.object(iobj)
	if err != nil {
		return nil, err
	}
	if icut < 0 || icut >= len(object.Cutouts) {
		return nil, fmt.Errorf("cutout %v out of range for object %v in %v (have %v)", icut, iobj, m.SourcePath, len(object.Cutouts))
	}
	return &object.Cutouts[icut], nil
}

func (m *MemReader) NObj() int {
	return len(m.Objects)
}

func (m *MemReader) ID(iobj int) (int64, error) {
	object, err := m.object(iobj)
	if err != nil {
		return 0, err
	}
	return object.ID, nil
}

func (m *MemReader) Number(iobj int) (int64, error) {
	object, err := m.object(iobj)
	if err != nil {
		return 0, err
	}
	return object.Number, nil
}

func (m *MemReader) NCutout(iobj int) (int, error) {
	object, err := m.object(iobj)
	if err != nil {
		return 0, err
	}
	return len(object.Cutouts), nil
}

func (m *MemReader) BoxSize(iobj int) (int, error) {
	object, err := m.object(iobj)
	if err != nil {
		return 0, err
	}
	return object.BoxSize, nil
}

func (m *MemReader) FileID(iobj int, icut int) (int, error) {
	cut, err := m.cutout(iobj, icut)
	if err != nil {
		return 0, err
	}
	return cut.FileID, nil
}

func (m *MemReader) OrigRowCol(iobj int, icut int) (float64, float64, error) {
	cut, err := m.cutout(iobj, icut)
	if err != nil {
		return 0, 0, err
	}
	return cut.OrigRow, cut.OrigCol, nil
}

func (m *MemReader) CutoutRowCol(iobj int, icut int) (float64, float64, error) {
	cut, err := m.cutout(iobj, icut)
	if err != nil {
		return 0, 0, err
	}
	return cut.CutoutRow, cut.CutoutCol, nil
}

func (m *MemReader) Jacobian(iobj int, icut int) (obs.Jacobian, error) {
	cut, err := m.cutout(iobj, icut)
	if err != nil {
		return obs.Jacobian{}, err
	}
	return obs.MakeJacobian(cut.CutoutRow, cut.CutoutCol, cut.DuDrow, cut.DuDcol, cut.DvDrow, cut.DvDcol)
}

func (m *MemReader) Cutout(iobj int, icut int, kind Kind) (*imggrid.Float64, error) {
	cut, err := m.cutout(iobj, icut)
	if err != nil {
		return nil, err
	}

	var plane *imggrid.Float64
	switch kind {
	case KindImage:
		plane = cut.Image
	case KindWeight:
		plane = cut.Weight
	default:
		return nil, fmt.Errorf("cutout kind %v is not a float plane", kind)
	}
	if plane == nil {
		return nil, fmt.Errorf("object %v cutout %v has no %v plane", iobj, icut, kind)
	}
	return plane.Copy(), nil
}

func (m *MemReader) MaskCutout(iobj int, icut int, kind Kind) (*imggrid.Int32, error) {
	cut, err := m.cutout(iobj, icut)
	if err != nil {
		return nil, err
	}

	var plane *imggrid.Int32
	switch kind {
	case KindBmask:
		plane = cut.Bmask
	case KindSeg:
		plane = cut.Seg
	default:
		return nil, fmt.Errorf("cutout kind %v is not a mask plane", kind)
	}
	if plane == nil {
		return nil, fmt.Errorf("object %v cutout %v has no %v plane", iobj, icut, kind)
	}
	return plane.Copy(), nil
}

func (m *MemReader) HasPSF() bool {
	stamps := 0
	for _, object := range m.Objects {
		for _, cut := range object.Cutouts {
			if cut.PSF == nil {
				return false
			}
			stamps++
		}
	}
	return stamps > 0
}

func (m *MemReader) GetPSF(iobj int, icut int) (*imggrid.Float64, float64, float64, error) {
	cut, err := m.cutout(iobj, icut)
	if err != nil {
		return nil, 0, 0, err
	}
	if cut.PSF == nil {
		return nil, 0, 0, fmt.Errorf("object %v cutout %v has no PSF stamp", iobj, icut)
	}
	return cut.PSF.Copy(), cut.PSFRow, cut.PSFCol, nil
}

func (m *MemReader) ImageInfo() []ImageInfo {
	info := make([]ImageInfo, len(m.Images))
	copy(info, m.Images)
	return info
}

func (m *MemReader) Meta() Meta {
	return m.MetaData
}

func (m *MemReader) Path() string {
	return m.SourcePath
}
