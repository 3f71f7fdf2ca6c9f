package obs

import (
	"errors"
	"math"
	"testing"

	"github.com/shearfit/obsio/v2/core/dataerror"
)

const eps = 1e-10

func TestJacobianApplyInvert(t *testing.T) {
	j, err := MakeJacobian(15.5, 16.5, 0.26, 0.01, -0.02, 0.25)
	if err != nil {
		t.Fatalf("MakeJacobian failed: %v", err)
	}

	// At the anchor the offsets are zero
	u, v := j.Apply(15.5, 16.5)
	if u != 0 || v != 0 {
		t.Errorf("Apply at anchor got (%v,%v); want (0,0)", u, v)
	}

	u, v = j.Apply(17.5, 19.5)
	wantU := 0.26*2 + 0.01*3
	wantV := -0.02*2 + 0.25*3
	if math.Abs(u-wantU) > eps || math.Abs(v-wantV) > eps {
		t.Errorf("Apply got (%v,%v); want (%v,%v)", u, v, wantU, wantV)
	}

	// Round-trip back through the inverse
	row, col := j.Invert(u, v)
	if math.Abs(row-17.5) > eps || math.Abs(col-19.5) > eps {
		t.Errorf("Invert got (%v,%v); want (17.5,19.5)", row, col)
	}

	wantDet := 0.26*0.25 - 0.01*(-0.02)
	if math.Abs(j.Det()-wantDet) > eps {
		t.Errorf("Det got %v; want %v", j.Det(), wantDet)
	}
	if math.Abs(j.Scale()-math.Sqrt(wantDet)) > eps {
		t.Errorf("Scale got %v; want %v", j.Scale(), math.Sqrt(wantDet))
	}
}

func TestJacobianSingular(t *testing.T) {
	// Second row is a multiple of the first, no inverse exists
	_, err := MakeJacobian(10, 10, 0.2, 0.1, 0.4, 0.2)
	if err == nil {
		t.Fatalf("expected an error for a singular jacobian")
	}
	var cfgErr dataerror.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("expected a ConfigError, got: %v", err)
	}
}

func TestJacobianWithCenter(t *testing.T) {
	j, err := MakeJacobian(15.5, 16.5, 0.263, 0, 0, 0.263)
	if err != nil {
		t.Fatalf("MakeJacobian failed: %v", err)
	}

	moved := j.WithCenter(100.0, 200.0)
	if moved.Row0 != 100.0 || moved.Col0 != 200.0 {
		t.Errorf("WithCenter anchor got (%v,%v); want (100,200)", moved.Row0, moved.Col0)
	}
	if moved.DudRow != j.DudRow || moved.DvdCol != j.DvdCol {
		t.Errorf("WithCenter should keep the derivatives")
	}
	if u, v := moved.Apply(100.0, 200.0); u != 0 || v != 0 {
		t.Errorf("Apply at moved anchor got (%v,%v); want (0,0)", u, v)
	}

	// The inverse still works on the moved copy
	row, col := moved.Invert(0.263, -0.526)
	if math.Abs(row-101.0) > eps || math.Abs(col-198.0) > eps {
		t.Errorf("moved Invert got (%v,%v); want (101,198)", row, col)
	}

	// The original is untouched
	if j.Row0 != 15.5 || j.Col0 != 16.5 {
		t.Errorf("WithCenter mutated the original: (%v,%v)", j.Row0, j.Col0)
	}
}
