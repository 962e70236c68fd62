package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hupe1980/taskmesh/core"
)

var workersCmd = &cobra.Command{
	Use:   "workers",
	Short: "List the configured workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		bold := color.New(color.Bold)
		fmt.Fprintln(w, bold.Sprint("NAME\tKIND\tTOPIC\tDESCRIPTION"))
		for _, wc := range cfg.Workers {
			desc := core.WorkerDescriptor{Name: wc.Name, Topic: wc.Topic, Description: wc.Description}.Normalize()
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", desc.Name, wc.Kind, desc.Topic, desc.Description)
		}
		return w.Flush()
	},
}
