package wcs

import (
	"math"
	"testing"
)

func Test_TangentOffsetAxes(t *testing.T) {
	// Same position, no offset
	u, v := TangentOffset(40, -10, 40, -10)
	if math.Abs(u) > 1e-9 || math.Abs(v) > 1e-9 {
		t.Errorf("zero separation gave (%v, %v)", u, v)
	}

	// A pure dec offset runs along -u, a pure ra offset along +v
	u, v = TangentOffset(0, 0, 0, 0.001)
	if u >= 0 || math.Abs(v) > 1e-9 {
		t.Errorf("+dec offset gave (%v, %v), want u<0 v=0", u, v)
	}
	u, v = TangentOffset(0, 0, 0.001, 0)
	if v <= 0 || math.Abs(u) > 1e-6 {
		t.Errorf("+ra offset gave (%v, %v), want v>0 u~0", u, v)
	}
}

// The projection is gnomonic: a 1 degree dec offset lands at tan(1deg)
// on the plane, not at the naive 3600 arcsec
func Test_TangentOffsetGnomonic(t *testing.T) {
	u, _ := TangentOffset(0, 0, 0, 1)

	want := -math.Tan(1*degToRad) * radToArcsec
	if math.Abs(u-want) > 1e-9 {
		t.Errorf("1 degree dec offset gave u=%v, want %v", u, want)
	}
	if math.Abs(u+3600) < 0.01 {
		t.Errorf("u=%v indistinguishable from a flat-sky offset", u)
	}
}

// An ra offset at high dec shrinks by cos(dec)
func Test_TangentOffsetForeshortening(t *testing.T) {
	u, v := TangentOffset(120, 60, 120.01, 60)

	want := math.Cos(60*degToRad) * 0.01 * 3600
	if math.Abs(v-want) > 1e-4 {
		t.Errorf("ra offset at dec 60 gave v=%v, want about %v", v, want)
	}
	if math.Abs(u) > 0.01 {
		t.Errorf("ra offset leaked %v arcsec into u", u)
	}
}
