package assemble

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shearfit/obsio/v2/imageflags"
)

var (
	objectsAssembled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "obsio_objects_assembled_total",
		Help: "Number of objects turned into observation bundles.",
	})
	epochsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "obsio_epochs_rejected_total",
		Help: "Number of epochs excluded from bundles, by reason.",
	}, []string{"reason"})
)

func rejectReason(flags int64) string {
	switch {
	case flags&imageflags.ImageFlagsSet != 0:
		return "image_flags"
	case flags&imageflags.PSFInBlacklist != 0:
		return "psf_blacklist"
	case flags&imageflags.PSFMissingS2N != 0:
		return "psf_missing_s2n"
	case flags&imageflags.PSFLowS2N != 0:
		return "psf_low_s2n"
	case flags&imageflags.PSFFileReadError != 0:
		return "psf_read_error"
	}
	return "other"
}
