package psf

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shearfit/obsio/v2/imageflags"
)

var (
	psfLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "obsio_psf_loads_total",
		Help: "Number of PSF stamp realisations by backend and outcome.",
	}, []string{"backend", "outcome"})
	psfModelsFlagged = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "obsio_psf_models_flagged_total",
		Help: "Number of PSF models disqualified before loading, by backend and reason.",
	}, []string{"backend", "reason"})
)

func flagReason(flags int64) string {
	switch {
	case flags&imageflags.PSFInBlacklist != 0:
		return "blacklist"
	case flags&imageflags.PSFMissingS2N != 0:
		return "missing_s2n"
	case flags&imageflags.PSFLowS2N != 0:
		return "low_s2n"
	case flags&imageflags.PSFFileReadError != 0:
		return "read_error"
	}
	return "other"
}
