package psf

import (
	"errors"
	"os"
	"testing"

	"github.com/shearfit/obsio/v2/core/dataerror"
	"github.com/shearfit/obsio/v2/core/fileaccess"
	"github.com/shearfit/obsio/v2/core/logger"
	"github.com/shearfit/obsio/v2/core/sefilename"
)

func Test_LoadMap(t *testing.T) {
	os.Setenv("PSF_ROOT", "/models")
	defer os.Unsetenv("PSF_ROOT")

	fs := fileaccess.MakeMemAccess()
	err := fs.WriteObject("data", "maps/r.map", []byte(`
D00239652-31 $PSF_ROOT/a.psf

503010 45 $PSF_ROOT/b.psf
-9999 -1 $PSF_ROOT/coadd_r.psf
`))
	if err != nil {
		t.Fatalf("Error writing map: %v", err)
	}
	err = fs.WriteObject("data", "maps/i.map", []byte(`D00345678-12 /models/c.psf
-9999 -1 /models/coadd_i.psf
`))
	if err != nil {
		t.Fatalf("Error writing map: %v", err)
	}

	m, err := LoadMap(fs, "data", []string{"maps/r.map", "maps/i.map"}, &logger.NullLogger{})
	if err != nil {
		t.Fatalf("LoadMap failed: %v", err)
	}

	cases := []struct {
		key  string
		want string
	}{
		{"D00239652-31", "/models/a.psf"},
		{sefilename.MakeKey(503010, 45), "/models/b.psf"},
		{"D00345678-12", "/models/c.psf"},
	}
	for _, c := range cases {
		got, err := m.SEPath(c.key)
		if err != nil {
			t.Errorf("SEPath(%v) failed: %v", c.key, err)
		} else if got != c.want {
			t.Errorf("SEPath(%v) got %v; want %v", c.key, got, c.want)
		}
	}

	if got, err := m.CoaddPath(0); err != nil || got != "/models/coadd_r.psf" {
		t.Errorf("CoaddPath(0) got %v, %v", got, err)
	}
	if got, err := m.CoaddPath(1); err != nil || got != "/models/coadd_i.psf" {
		t.Errorf("CoaddPath(1) got %v, %v", got, err)
	}

	var confErr dataerror.ConfigError
	_, err = m.CoaddPath(2)
	if !errors.As(err, &confErr) {
		t.Errorf("CoaddPath(2) got %v; want a config error", err)
	}
	_, err = m.SEPath("D00000001-01")
	if !errors.As(err, &confErr) {
		t.Errorf("SEPath on unmapped key got %v; want a config error", err)
	}
}

func Test_LoadMapRejects(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"one field", "lonely\n-9999 -1 c.psf\n"},
		{"four fields", "503010 45 a.psf extra\n-9999 -1 c.psf\n"},
		{"bad expnum", "exp 45 a.psf\n-9999 -1 c.psf\n"},
		{"bad ccdnum", "503010 ccd a.psf\n-9999 -1 c.psf\n"},
		{"no coadd entry", "D00239652-31 a.psf\n"},
	}

	for _, c := range cases {
		fs := fileaccess.MakeMemAccess()
		if err := fs.WriteObject("data", "maps/r.map", []byte(c.content)); err != nil {
			t.Fatalf("Error writing map: %v", err)
		}

		_, err := LoadMap(fs, "data", []string{"maps/r.map"}, &logger.NullLogger{})
		var confErr dataerror.ConfigError
		if !errors.As(err, &confErr) {
			t.Errorf("%v: got %v; want a config error", c.name, err)
		}
	}
}
