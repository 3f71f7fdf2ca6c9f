package imageflags

// Reduce - collapses raw per-exposure flag words to the usable/unusable
// sentinel the assembler checks. Entry 0 is the coadd and keeps its raw
// value, entries 1..n become 0 or ImageFlagsSet depending on whether any
// checked bit is set. When the coadd is not being fit it is marked
// unusable wholesale. The input is not modified
func Reduce(flags []int64, check int64, fitCoadd bool) []int64 {
	reduced := make([]int64, len(flags))
	copy(reduced, flags)

	for i := 1; i < len(reduced); i++ {
		if reduced[i]&check != 0 {
			reduced[i] = ImageFlagsSet
		} else {
			reduced[i] = 0
		}
	}

	if len(reduced) > 0 && !fitCoadd {
		reduced[0] |= ImageFlagsSet
	}
	return reduced
}
