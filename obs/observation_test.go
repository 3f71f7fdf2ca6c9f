package obs

import (
	"fmt"
	"math"

	"github.com/shearfit/obsio/v2/core/imggrid"
)

func Example_weightPlanes() {
	o := &Observation{
		Image:  imggrid.NewFloat64(2, 2),
		Weight: imggrid.NewFloat64(2, 2),
	}
	fmt.Println(len(o.WeightPlanes()))

	o.WeightRaw = imggrid.NewFloat64(2, 2)
	o.WeightUS = imggrid.NewFloat64(2, 2)
	fmt.Println(len(o.WeightPlanes()))

	// All zero weights is degenerate
	fmt.Println(o.HasPositiveWeight())

	// A NaN or an Inf doesn't count as usable
	o.Weight.Set(0, 0, math.NaN())
	o.Weight.Set(0, 1, math.Inf(1))
	fmt.Println(o.HasPositiveWeight())

	o.Weight.Set(1, 1, 0.5)
	fmt.Println(o.HasPositiveWeight())

	// Output:
	// 1
	// 3
	// false
	// false
	// true
}

func Example_multiBandCounts() {
	mb := MultiBandObsList{
		ObsList{&Observation{}, &Observation{}},
		ObsList{&Observation{}},
		ObsList{},
	}
	fmt.Println(len(mb), mb.NumObservations())

	// Output:
	// 3 3
}
