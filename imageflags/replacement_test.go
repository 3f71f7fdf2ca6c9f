package imageflags

import (
	"testing"

	"github.com/shearfit/obsio/v2/core/fileaccess"
	"github.com/shearfit/obsio/v2/core/logger"
)

func Test_ReplacementFlagsLookup(t *testing.T) {
	fs := fileaccess.MakeMemAccess()
	table := `{
	"D00239652_i_c31_r2362p01_immasked": 0,
	"D00503010_r_c45_r2362p01_immasked": 1024
}`
	err := fs.WriteObject("data", "flags/y3_replacements.json", []byte(table))
	if err != nil {
		t.Fatalf("Error writing flag table: %v", err)
	}

	r, err := LoadReplacementFlags(fs, "data", "flags/y3_replacements.json", &logger.NullLogger{})
	if err != nil {
		t.Fatalf("Error loading replacement flags: %v", err)
	}

	// Known entries override, unknown paths fall back to the default
	got := r.Lookup("/des/red/D00239652_i_c31_r2362p01_immasked.fits.fz", 2047)
	if got != 0 {
		t.Errorf("known clean entry got %v; want 0", got)
	}
	got = r.Lookup("D00503010_r_c45_r2362p01_immasked.fits", 2047)
	if got != 1024 {
		t.Errorf("known flagged entry got %v; want 1024", got)
	}
	got = r.Lookup("D99999999_z_c01_r0000p01_immasked.fits.fz", 2047)
	if got != 2047 {
		t.Errorf("unknown entry got %v; want the default 2047", got)
	}

	multi := r.LookupMulti([]string{
		"D00503010_r_c45_r2362p01_immasked.fits",
		"D99999999_z_c01_r0000p01_immasked.fits.fz",
	}, 2047)
	if len(multi) != 2 || multi[0] != 1024 || multi[1] != 2047 {
		t.Errorf("LookupMulti got %v; want [1024 2047]", multi)
	}
}

func Test_ReplacementFlagsMissingFile(t *testing.T) {
	fs := fileaccess.MakeMemAccess()
	_, err := LoadReplacementFlags(fs, "data", "flags/notthere.json", &logger.NullLogger{})
	if err == nil {
		t.Errorf("expected an error for a missing flag table")
	}
}
