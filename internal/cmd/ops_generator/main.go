// ops_generator generates the element-wise operations of the netbuilder package (gen_ops.go) from the
// operations sets defined in the shapeinference package.
package main

import (
	"flag"
	"fmt"

	"k8s.io/klog/v2"
)

const fileName = "gen_ops.go"

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	fmt.Println("\tinternal/cmd/ops_generator:")
	GenerateOps()
}
