package interval_test

import (
	"fmt"

	"github.com/MasoumehVahedi/IntervalCracking/interval"
)

func ExampleIndex() {
	partitions := interval.NewIndex[string]()

	partitions.Add(interval.New(1, 5), "first")
	partitions.Add(interval.New(7, 10), "second")
	partitions.Add(interval.New(1, 2), "third")

	found, ok := partitions.Intersecting(interval.New(5, 8))

	fmt.Printf("Found intersecting values: %t\n", ok)

	if ok {
		fmt.Printf("Values: %v", found)
	}

	// Output:
	// Found intersecting values: true
	// Values: [first second]
}
