package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/kddbench/dataset"
	"github.com/YuminosukeSato/kddbench/pkg/errors"
)

func inspectCmd() *cobra.Command {
	var class string
	cmd := &cobra.Command{
		Use:   "inspect <file.arff>",
		Short: "Print the schema and class distribution of an ARFF file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := dataset.LoadARFF(args[0])
			if err != nil {
				return err
			}
			idx := d.NumAttributes() - 1
			if class != "" {
				if idx = d.AttributeIndex(class); idx < 0 {
					return errors.NewConfigurationError("inspect", class, "no such attribute")
				}
			}
			if d, err = d.WithClassIndex(idx); err != nil {
				return err
			}
			return describe(cmd, d)
		},
	}
	cmd.Flags().StringVar(&class, "class", "", "class attribute (default: last attribute)")
	return cmd
}

func describe(cmd *cobra.Command, d *dataset.Dataset) error {
	out := cmd.OutOrStdout()
	fmt.Fprint(out, d.Describe())

	a, _ := d.ClassAttribute()
	if a.Type != dataset.Nominal {
		fmt.Fprintf(out, "\nclass %q is %s, no distribution\n", a.Name, a.Type)
		return nil
	}
	counts, err := d.ClassCounts()
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, sectionStyle.Render("Class distribution"))
	total := 0
	for _, c := range counts {
		total += c
	}
	for i, c := range counts {
		pct := 0.0
		if total > 0 {
			pct = 100 * float64(c) / float64(total)
		}
		fmt.Fprintf(out, "  %-20s %8d  %6.2f%%\n", a.Labels[i], c, pct)
	}
	if missing := d.NumRows() - total; missing > 0 {
		fmt.Fprintf(out, "  %-20s %8d\n", "?", missing)
	}
	return nil
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
