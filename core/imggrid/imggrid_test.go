package imggrid

import "fmt"

func Example_float64Grid() {
	g, err := MakeFloat64FromSlice(2, 3, []float64{1, 2, 3, 4, 5, 6})
	fmt.Printf("%vx%v err=%v\n", g.Rows(), g.Cols(), err)
	fmt.Println(g.Get(0, 0), g.Get(0, 2), g.Get(1, 0))

	c := g.Copy()
	c.Set(1, 0, 40)
	fmt.Println(g.Get(1, 0), c.Get(1, 0))

	c.Scale(0.5)
	fmt.Println(c.Get(0, 1), c.Get(1, 0), c.Sum())

	_, err = MakeFloat64FromSlice(2, 3, []float64{1, 2})
	fmt.Println(err)

	// Output:
	// 2x3 err=<nil>
	// 1 3 4
	// 4 40
	// 1 20 28.5
	// grid data has 2 values, 2x3 needs 6
}

func Example_subGrid() {
	g, _ := MakeFloat64FromSlice(3, 3, []float64{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	})

	sub, err := g.SubGrid(1, 1, 2, 2)
	fmt.Printf("%vx%v err=%v\n", sub.Rows(), sub.Cols(), err)
	fmt.Println(sub.Get(0, 0), sub.Get(0, 1), sub.Get(1, 0), sub.Get(1, 1))

	_, err = g.SubGrid(2, 2, 2, 2)
	fmt.Println(err)

	// Output:
	// 2x2 err=<nil>
	// 5 6 8 9
	// subgrid 2x2 at (2,2) outside 3x3 grid
}

func Example_int32Grid() {
	g, err := MakeInt32FromSlice(2, 2, []int32{0, 2, 6, 32})
	fmt.Printf("%vx%v err=%v\n", g.Rows(), g.Cols(), err)
	fmt.Println(g.Get(0, 1), g.Get(1, 1))

	// How many pixels carry the 2 bit, and how many are non-zero at all
	fmt.Println(g.CountSet(2), g.CountSet(0))

	c := g.Copy()
	c.Set(0, 0, 1)
	fmt.Println(g.Get(0, 0), c.Get(0, 0))

	// Output:
	// 2x2 err=<nil>
	// 2 32
	// 2 3
	// 0 1
}
