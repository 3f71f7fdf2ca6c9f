package maskprop

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var weightPixelsZeroed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "obsio_maskprop_weight_pixels_zeroed_total",
	Help: "Number of weight pixels zeroed by cross-band star mask propagation.",
})
