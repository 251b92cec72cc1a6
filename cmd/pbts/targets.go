package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wham/pbts/pkg/typescript"
)

var targets = []struct {
	name        string
	description string
}{
	{"typescript", typescript.Description},
}

func newTargetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "List output targets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, t := range targets {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", t.name, t.description)
			}
			return nil
		},
	}
}
