package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newModelsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models the inference engine may load",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := newRegistry(opts.cfg.Inference)
			if err != nil {
				return err
			}
			def := reg.Default().ID
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSIZE\tNAME\tDEFAULT")
			for _, m := range reg.Models() {
				mark := ""
				if m.ID == def {
					mark = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.ID, m.SizeClass, m.Name, mark)
			}
			return tw.Flush()
		},
	}
}
