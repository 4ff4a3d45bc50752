package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/unisphere-campus/server/internal/api"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func currentBuild() api.BuildInfo {
	return api.BuildInfo{Version: Version, GitCommit: GitCommit, BuildDate: BuildDate}.WithDefaults()
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print the version number, git commit, build date, and Go runtime version.`,
		Run: func(cmd *cobra.Command, args []string) {
			build := currentBuild()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "UniSphere Server\n")
			fmt.Fprintf(out, "Version:    %s\n", build.Version)
			fmt.Fprintf(out, "Git commit: %s\n", build.GitCommit)
			fmt.Fprintf(out, "Build date: %s\n", build.BuildDate)
			fmt.Fprintf(out, "Go version: %s\n", build.GoVersion)
			fmt.Fprintf(out, "Platform:   %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
