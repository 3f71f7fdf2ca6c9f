// Package imageflags turns per-exposure quality metadata into the yes/no
// decisions the assembler acts on. Raw image_flags words are reduced to a
// single usable/unusable sentinel, optionally after being overwritten from
// a replacement-flags table, and named bad-pixel categories are resolved
// against a versioned bitmask scheme so configs can say "STAR" instead
// of 32.
package imageflags

import (
	"github.com/shearfit/obsio/v2/core/dataerror"
	"github.com/shearfit/obsio/v2/core/utils"
)

// Exposure-level sentinel flags. Additive: an epoch can be both
// blacklisted and low S2N
const (
	ImageFlagsSet    int64 = 1
	PSFInBlacklist   int64 = 2
	PSFMissingS2N    int64 = 4
	PSFLowS2N        int64 = 8
	PSFFileReadError int64 = 16
)

// PSFGateMask - every sentinel the PSF gates can set
const PSFGateMask = PSFInBlacklist | PSFMissingS2N | PSFLowS2N | PSFFileReadError

// Object-level flags
const (
	ObjFlagStellarHaloMasked int64 = 1
)

// Scheme - one versioned map of defect category name to bitmask bit.
// The bits land in the bmask cutout planes, hence int32
type Scheme struct {
	Name string
	bits map[string]int32
}

var y3Bits = map[string]int32{
	"BPM":       1,    // set in bpm (hot/dead pixel/column)
	"SATURATE":  2,    // saturated pixel
	"INTERP":    4,    // interpolated pixel
	"BADAMP":    8,    // data from non-functional amplifier
	"CRAY":      16,   // cosmic ray pixel
	"STAR":      32,   // bright star pixel
	"TRAIL":     64,   // bleed trail pixel
	"EDGEBLEED": 128,  // edge bleed pixel
	"SSXTALK":   256,  // xtalk from a super-saturated source
	"EDGE":      512,  // CCD glowing edges
	"STREAK":    1024, // satellite/meteor streak
	"SUSPECT":   2048, // nominally useful pixel but not perfect
}

var y4Bits = map[string]int32{
	"FIXED":    4096,  // corrected by pixcorrect
	"NEAREDGE": 8192,  // suspect due to edge proximity
	"TAPEBUMP": 16384, // suspect due to known tape bump
}

func makeScheme(name string, maps ...map[string]int32) Scheme {
	bits := map[string]int32{}
	for _, m := range maps {
		for category, bit := range m {
			bits[category] = bit
		}
	}
	return Scheme{Name: name, bits: bits}
}

var schemes = map[string]Scheme{
	"y3": makeScheme("y3", y3Bits),
	"y4": makeScheme("y4", y3Bits, y4Bits),
}

// SchemeByName - looks up a versioned scheme, eg from Config.BadpixScheme
func SchemeByName(name string) (Scheme, error) {
	scheme, ok := schemes[name]
	if !ok {
		return Scheme{}, dataerror.MakeConfigError("unknown badpix scheme: %v", name)
	}
	return scheme, nil
}

// Bit - the bit for one category name
func (s Scheme) Bit(category string) (int32, error) {
	bit, ok := s.bits[category]
	if !ok {
		return 0, dataerror.MakeConfigError("unknown badpix category %v in scheme %v", category, s.Name)
	}
	return bit, nil
}

// Bits - OR of the bits for several category names, eg a configured
// ignore list. An empty list is mask 0
func (s Scheme) Bits(categories ...string) (int32, error) {
	var mask int32
	for _, category := range categories {
		bit, err := s.Bit(category)
		if err != nil {
			return 0, err
		}
		mask |= bit
	}
	return mask, nil
}

// Categories - all category names in the scheme, sorted
func (s Scheme) Categories() []string {
	return utils.GetSortedMapKeys(s.bits)
}
