package main

import (
	"runtime/debug"

	"github.com/spf13/cobra"
	"github.com/swadhinbiswas/opencodehub/pkg/version"
)

var (
	dataPath string

	rootCmd = &cobra.Command{
		Use:          "opencodehub",
		Short:        "A self-hostable git server with tiered repository storage",
		Long:         "OpenCodeHub serves git repositories over smart HTTP with Git LFS support,\nstoring them on the local disk or in a remote object store.",
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&dataPath, "data-path", "d", "data", "path to the data directory")
	rootCmd.AddCommand(serveCmd)
	rootCmd.CompletionOptions.HiddenDefaultCmd = true

	if version.Version == "" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Sum != "" {
			version.Version = info.Main.Version
		} else {
			version.Version = "unknown (built from source)"
		}
	}

	rootCmd.Version = version.Version
	if len(version.CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + version.CommitSHA[0:7] + ")\n")
	}
}
