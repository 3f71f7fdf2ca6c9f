package wcs

import (
	"fmt"
	"strconv"
	"strings"
)

// Astrometric refinement ships as .head files: FITS header cards in plain
// text, one solution per CCD, as written by the astrometry recalibration.
// Only the card forms that actually appear in those files are handled.

// ParseHead - parses the first header block of a .head file into a
// key/value map suitable for NewTransform. Parsing stops at the END card
func ParseHead(data []byte) (map[string]interface{}, error) {
	hdr := map[string]interface{}{}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r ")
		if len(line) == 0 {
			continue
		}

		key := line
		if len(key) > 8 {
			key = key[0:8]
		}
		key = strings.TrimSpace(key)

		if key == "END" {
			break
		}
		if key == "HISTORY" || key == "COMMENT" || key == "" {
			continue
		}

		eq := strings.Index(line, "=")
		if eq < 0 {
			continue
		}
		value := strings.TrimSpace(line[eq+1:])

		// Strip the inline comment, minding quoted strings
		if strings.HasPrefix(value, "'") {
			if end := strings.Index(value[1:], "'"); end > -1 {
				hdr[key] = strings.TrimRight(value[1:end+1], " ")
				continue
			}
		}
		if slash := strings.Index(value, "/"); slash > -1 {
			value = strings.TrimSpace(value[0:slash])
		}

		switch value {
		case "T":
			hdr[key] = true
		case "F":
			hdr[key] = false
		default:
			num, err := strconv.ParseFloat(value, 64)
			if err == nil {
				hdr[key] = num
			} else {
				hdr[key] = value
			}
		}
	}

	if len(hdr) == 0 {
		return nil, fmt.Errorf("no header cards found in .head data")
	}
	return hdr, nil
}
