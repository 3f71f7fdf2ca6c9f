package imageflags

import "fmt"

func Example_schemeByName() {
	y3, _ := SchemeByName("y3")
	y4, _ := SchemeByName("y4")
	fmt.Printf("%v has %v categories\n", y3.Name, len(y3.Categories()))
	fmt.Printf("%v has %v categories\n", y4.Name, len(y4.Categories()))

	_, err := SchemeByName("y9")
	fmt.Println(err)

	// Output:
	// y3 has 12 categories
	// y4 has 15 categories
	// config error: unknown badpix scheme: y9
}

func Example_schemeBits() {
	y4, _ := SchemeByName("y4")

	mask, _ := y4.Bits("EDGE", "SSXTALK")
	fmt.Println(mask)

	star, _ := y4.Bit("STAR")
	tapebump, _ := y4.Bit("TAPEBUMP")
	fmt.Println(star, tapebump)

	mask, _ = y4.Bits()
	fmt.Println(mask)

	y3, _ := SchemeByName("y3")
	_, err := y3.Bits("EDGE", "TAPEBUMP")
	fmt.Println(err)

	// Output:
	// 768
	// 32 16384
	// 0
	// config error: unknown badpix category TAPEBUMP in scheme y3
}

// Every bit must be a distinct power of two or OR-ing categories would
// alias
func Example_schemeBitsDistinct() {
	for _, name := range []string{"y3", "y4"} {
		scheme, _ := SchemeByName(name)
		var seen int32
		ok := true
		for _, category := range scheme.Categories() {
			bit, _ := scheme.Bit(category)
			if bit&(bit-1) != 0 || seen&bit != 0 {
				ok = false
			}
			seen |= bit
		}
		fmt.Printf("%v distinct power-of-two bits: %v\n", name, ok)
	}

	// Output:
	// y3 distinct power-of-two bits: true
	// y4 distinct power-of-two bits: true
}

func Example_reduce() {
	// Raw flags: coadd, clean SE, flagged SE, SE flagged outside the check
	raw := []int64{0, 0, 1536, 4096}

	fmt.Println(Reduce(raw, 2047, true))
	fmt.Println(Reduce(raw, 2047, false))
	fmt.Println(Reduce(raw, 4096, true))
	fmt.Println(raw)

	// Output:
	// [0 0 1 0]
	// [1 0 1 0]
	// [0 0 0 1]
	// [0 0 1536 4096]
}

// The coadd entry is exempt from reduction, it keeps its raw word
func Example_reduceCoaddExempt() {
	raw := []int64{1536, 0}
	fmt.Println(Reduce(raw, 2047, true))
	fmt.Println(Reduce(raw, 2047, false))

	// Output:
	// [1536 0]
	// [1537 0]
}
