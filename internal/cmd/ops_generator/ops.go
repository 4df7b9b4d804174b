package main

import (
	"cmp"
	"fmt"
	"maps"
	"os"
	"os/exec"
	"path"
	"slices"
	"text/template"

	"github.com/gomlx/netbuilder/internal/optypes"
	"github.com/gomlx/netbuilder/internal/utils"
	"github.com/gomlx/netbuilder/shapeinference"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"
)

// OpInfo is the data for one generated operation.
type OpInfo struct {
	Name, Doc string
}

// Data passed to the template.
type Data struct {
	BinaryOps, UnaryOps []OpInfo
}

// docs of the generated operations, without the function name.
var docs = map[optypes.OpType]string{
	optypes.Add:      "returns the element-wise sum of lhs and rhs, which must have the same shape.",
	optypes.Subtract: "returns the element-wise difference lhs - rhs, which must have the same shape.",
	optypes.Multiply: "returns the element-wise product of lhs and rhs, which must have the same shape.",
	optypes.Negate:   "returns the element-wise negation of x.",
	optypes.Abs:      "returns the element-wise absolute value of x.",
}

func opsInfo(set utils.Set[optypes.OpType]) []OpInfo {
	opTypes := slices.SortedFunc(maps.Keys(set), func(a, b optypes.OpType) int {
		return cmp.Compare(a.String(), b.String())
	})
	ops := make([]OpInfo, 0, len(opTypes))
	for _, opType := range opTypes {
		doc, found := docs[opType]
		if !found {
			klog.Fatalf("No documentation for operation %s, please add it to ops_generator", opType)
		}
		ops = append(ops, OpInfo{Name: opType.String(), Doc: doc})
	}
	return ops
}

var opsTemplate = template.Must(template.New(fileName).Parse(`// Code generated by internal/cmd/ops_generator. DO NOT EDIT.

package netbuilder

import (
	"github.com/gomlx/netbuilder/internal/optypes"
)
{{range .BinaryOps}}
// {{.Name}} {{.Doc}}
func {{.Name}}(lhs, rhs *Value) (*Value, error) {
	return binaryOp(optypes.{{.Name}}, lhs, rhs)
}
{{end}}{{range .UnaryOps}}
// {{.Name}} {{.Doc}}
func {{.Name}}(x *Value) (*Value, error) {
	return unaryOp(optypes.{{.Name}}, x)
}
{{end}}`))

// GenerateOps writes gen_ops.go in the current directory, with the standard binary and unary operations.
func GenerateOps() {
	data := Data{
		BinaryOps: opsInfo(shapeinference.StandardBinaryOperations),
		UnaryOps:  opsInfo(shapeinference.StandardUnaryOperations),
	}
	fullPath := path.Join(must.M1(os.Getwd()), fileName)
	f := must.M1(os.Create(fullPath))
	must.M(opsTemplate.Execute(f, data))
	must.M(f.Close())

	cmd := exec.Command("gofmt", "-w", fullPath)
	klog.V(1).Infof("\t%s\n", cmd)
	must.M(cmd.Run())
	fmt.Printf("✅ ops_generator:  \tsuccessfully generated %s\n", fullPath)
}
