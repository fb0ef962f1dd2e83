// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pgslice/pgslice/cmd/flags"
	"github.com/pgslice/pgslice/pkg/configschema"
	"github.com/pgslice/pgslice/pkg/transform"
)

func transformFieldCmd() *cobra.Command {
	transformFieldCmd := &cobra.Command{
		Use:   "transform-field <value>",
		Short: "Apply one named transform to a single field value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransformField(args[0])
		},
	}

	flags.TransformFieldFlags(transformFieldCmd)
	return transformFieldCmd
}

func runTransformField(value string) error {
	if flags.TransformFile() == "" {
		return fmt.Errorf("--transform is required")
	}
	if flags.TransformName() == "" {
		return fmt.Errorf("--name is required")
	}

	data, err := os.ReadFile(flags.TransformFile())
	if err != nil {
		return fmt.Errorf("reading transform file: %w", err)
	}
	doc, err := configschema.ParseTransformDoc(data)
	if err != nil {
		return fmt.Errorf("parsing transform file: %w", err)
	}

	specs := make(map[string]transform.Spec, len(doc.Transforms))
	for name, t := range doc.Transforms {
		specs[name] = transform.Spec{Class: t.Class, Config: t.Config}
	}
	tctx := transform.NewContext(specs, []byte(flags.Pepper()))

	t, err := tctx.GetTransform(flags.TransformName())
	if err != nil {
		return fmt.Errorf("building transform %q: %w", flags.TransformName(), err)
	}

	out, err := t.Transform(&value)
	if err != nil {
		return fmt.Errorf("applying transform %q: %w", flags.TransformName(), err)
	}
	if out == nil {
		fmt.Println("<null>")
		return nil
	}

	fmt.Println(*out)
	return nil
}
