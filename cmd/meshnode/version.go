package main

import (
	"fmt"

	"github.com/spf13/cobra"

	udpmesh "github.com/dep2p/go-udpmesh"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "显示版本信息",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), udpmesh.VersionInfo())
		},
	}
}
