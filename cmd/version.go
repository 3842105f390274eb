package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sudhan30/my-blog-site-cluster-infra-sub001/internal/updater"
)

// Version is stamped by the release build via -ldflags.
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the hpa-verify version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("hpa-verify %s\n", Version)

		if Version == "dev" {
			return
		}

		info, err := updater.Check(Version)
		if err != nil {
			fmt.Printf("update check failed: %v\n", err)
			return
		}
		if info.Available {
			fmt.Printf("new version available: %s -> %s\n", info.CurrentVersion, info.LatestVersion)
			fmt.Printf("download: %s\n", info.ReleaseURL)
		} else {
			fmt.Println("up to date")
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
