package main

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/netbuilder"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newLowerCmd() *cobra.Command {
	var (
		shape     []int
		axes      []int
		dtypeName string
	)
	cmd := &cobra.Command{
		Use:   "lower",
		Short: "Print the StableHLO program of an expand_dims operation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			code, err := lowerExpandDims(dtypeName, shape, axes)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(code)
			return err
		},
	}
	cmd.Flags().IntSliceVar(&shape, "shape", []int{2, 3, 4}, "Dimensions of the input")
	cmd.Flags().IntSliceVar(&axes, "axes", []int{0, 2, 4}, "Axes to insert, in order")
	cmd.Flags().StringVar(&dtypeName, "dtype", "Float32", "DType of the input")
	return cmd
}

// lowerExpandDims returns the StableHLO code of a program that expands the dimensions of its input.
func lowerExpandDims(dtypeName string, shape, axes []int) ([]byte, error) {
	dtype, err := dtypes.DTypeString(dtypeName)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid dtype %q", dtypeName)
	}
	b := netbuilder.New("expand_dims")
	x := b.CreateInput(dtype, shape, "x")
	y, err := netbuilder.ExpandDims(x, axes...)
	if err != nil {
		return nil, err
	}
	program, err := b.Build()
	if err != nil {
		return nil, err
	}
	return program.StableHLO(y)
}
