package maskprop

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"path"

	"golang.org/x/image/draw"

	"github.com/shearfit/obsio/v2/core/fileaccess"
	"github.com/shearfit/obsio/v2/core/imggrid"
	"github.com/shearfit/obsio/v2/core/logger"
	"github.com/shearfit/obsio/v2/obs"
)

const previewWidth = 256

// PreviewWriter - QA previews of propagated masks: one grayscale PNG per
// plane of every observation the propagator touched, written through
// FileAccess so they land next to the run outputs whether that is disk
// or S3
type PreviewWriter struct {
	fs     fileaccess.FileAccess
	bucket string
	dir    string
	log    logger.ILogger
}

func NewPreviewWriter(fs fileaccess.FileAccess, bucket string, dir string, log logger.ILogger) *PreviewWriter {
	return &PreviewWriter{fs: fs, bucket: bucket, dir: dir, log: log}
}

// WriteObservation - writes image, weight and applied-mask previews for
// one observation, named from its identity
func (w *PreviewWriter) WriteObservation(o *obs.Observation, mask *imggrid.Int32) error {
	name := fmt.Sprintf("obj%v-band%v-epoch%v", o.Meta.ObjectID, o.Meta.Band, o.Meta.Epoch)

	planes := []struct {
		suffix string
		img    image.Image
		scaler draw.Scaler
	}{
		// Masks stay blocky under NearestNeighbor, which is what you want
		// when checking where pixels were zeroed
		{"image", grayFromFloat(o.Image), draw.ApproxBiLinear},
		{"weight", grayFromFloat(o.Weight), draw.ApproxBiLinear},
		{"mask", grayFromMask(mask), draw.NearestNeighbor},
	}
	for _, plane := range planes {
		if plane.img == nil {
			continue
		}

		data, err := imageBytes(scaleImage(plane.img, previewWidth, plane.scaler))
		if err != nil {
			return err
		}
		objName := fileaccess.MakeValidObjectName(name+"-"+plane.suffix, true) + ".png"
		if err := w.fs.WriteObject(w.bucket, path.Join(w.dir, objName), data); err != nil {
			return err
		}
	}
	w.log.Debugf("Wrote mask previews for %v", name)
	return nil
}

// grayFromFloat - linear min..max stretch to 8-bit grayscale. A flat
// plane comes out black
func grayFromFloat(grid *imggrid.Float64) image.Image {
	if grid == nil {
		return nil
	}

	min, max := grid.Get(0, 0), grid.Get(0, 0)
	for _, v := range grid.Values() {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	span := max - min
	if span <= 0 {
		span = 1
	}

	img := image.NewGray(image.Rect(0, 0, grid.Cols(), grid.Rows()))
	for row := 0; row < grid.Rows(); row++ {
		for col := 0; col < grid.Cols(); col++ {
			img.SetGray(col, row, color.Gray{Y: uint8(255 * (grid.Get(row, col) - min) / span)})
		}
	}
	return img
}

// grayFromMask - nonzero pixels in white
func grayFromMask(mask *imggrid.Int32) image.Image {
	if mask == nil {
		return nil
	}

	img := image.NewGray(image.Rect(0, 0, mask.Cols(), mask.Rows()))
	for row := 0; row < mask.Rows(); row++ {
		for col := 0; col < mask.Cols(); col++ {
			if mask.Get(row, col) != 0 {
				img.SetGray(col, row, color.Gray{Y: 255})
			}
		}
	}
	return img
}

func scaleImage(img image.Image, newWidth int, scaler draw.Scaler) image.Image {
	bounds := img.Bounds()

	// Max newWidth across, preserving the aspect ratio
	w := newWidth
	h := int(float32(bounds.Max.Y) / float32(bounds.Max.X) * float32(w))

	dst := image.NewGray(image.Rect(0, 0, w, h))
	scaler.Scale(dst, dst.Rect, img, img.Bounds(), draw.Over, nil)
	return dst
}

func imageBytes(img image.Image) ([]byte, error) {
	var b bytes.Buffer
	writer := bufio.NewWriter(&b)

	if err := png.Encode(writer, img); err != nil {
		return nil, err
	}
	if err := writer.Flush(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}
