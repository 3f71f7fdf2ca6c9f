package maskprop

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/shearfit/obsio/v2/core/fileaccess"
	"github.com/shearfit/obsio/v2/core/imggrid"
	"github.com/shearfit/obsio/v2/core/logger"
	"github.com/shearfit/obsio/v2/obs"
)

func Test_PreviewWriter(t *testing.T) {
	fs := fileaccess.MakeMemAccess()
	w := NewPreviewWriter(fs, "qa", "previews", &logger.NullLogger{})

	image := imggrid.NewFloat64(8, 8)
	image.Set(4, 4, 10)
	weight := imggrid.NewFloat64(8, 8)
	weight.Fill(1.0)
	mask := imggrid.NewInt32(8, 8)
	mask.Set(2, 2, 1)

	o := &obs.Observation{
		Image:  image,
		Weight: weight,
		Meta:   obs.Meta{ObjectID: 7, Band: 1, Epoch: 2},
	}
	if err := w.WriteObservation(o, mask); err != nil {
		t.Fatalf("WriteObservation failed: %v", err)
	}

	for _, name := range []string{
		"previews/obj7-band1-epoch2-image.png",
		"previews/obj7-band1-epoch2-weight.png",
		"previews/obj7-band1-epoch2-mask.png",
	} {
		data, err := fs.ReadObject("qa", name)
		if err != nil {
			t.Fatalf("preview %v not written: %v", name, err)
		}
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("preview %v is not a PNG: %v", name, err)
		}
		if img.Bounds().Dx() != previewWidth {
			t.Errorf("preview %v is %v wide, want %v", name, img.Bounds().Dx(), previewWidth)
		}
	}
}

// A husk observation with no pixel planes still yields the mask preview
func Test_PreviewWriterNilPlanes(t *testing.T) {
	fs := fileaccess.MakeMemAccess()
	w := NewPreviewWriter(fs, "qa", "previews", &logger.NullLogger{})

	mask := imggrid.NewInt32(4, 4)
	mask.Set(1, 1, 1)
	o := &obs.Observation{Meta: obs.Meta{ObjectID: 9}}

	if err := w.WriteObservation(o, mask); err != nil {
		t.Fatalf("WriteObservation failed: %v", err)
	}
	if _, err := fs.ReadObject("qa", "previews/obj9-band0-epoch0-mask.png"); err != nil {
		t.Errorf("mask preview not written: %v", err)
	}
	if exists, _ := fs.ObjectExists("qa", "previews/obj9-band0-epoch0-image.png"); exists {
		t.Errorf("image preview written for a plane-less observation")
	}
}
