package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.4.0"

// versionCmd prints the kojibot version
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the kojibot version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("kojibot %s\n", version)
	},
}
