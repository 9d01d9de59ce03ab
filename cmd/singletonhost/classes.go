package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/l1jgo/worldsingleton/internal/class"
	"github.com/spf13/cobra"
)

func newClassesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "classes",
		Short: "List the classes known to the host",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			tbl, err := loadClasses(cfg.Host.ClassesFile)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tKIND\tSUPER\tPATH")
			tbl.Each(func(c *class.Class) {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Name(), c.Kind(), c.Super(), c.Path())
			})
			return tw.Flush()
		},
	}
}

// loadClasses reads the class list, or returns just the builtins when no
// file is configured.
func loadClasses(path string) (*class.Table, error) {
	if path == "" {
		return class.NewTable(), nil
	}
	tbl, err := class.LoadTable(path)
	if err != nil {
		return nil, fmt.Errorf("load classes: %w", err)
	}
	return tbl, nil
}
