// netcheck runs the differential tests of the netbuilder operations outside of `go test`, and prints a report.
//
// Example:
//
//	netcheck run --target=cuda --seed=7
//	netcheck targets
//	netcheck lower --shape=2,3,4 --axes=0,2,4
package main

import (
	"fmt"
	"os"

	"k8s.io/klog/v2"
)

func main() {
	err := NewRootCmd().Execute()
	klog.Flush()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
