package cli

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
)

// Build information, injected with -ldflags "-X ...cli.Version=...".
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// BuildInfo is what the version command reports.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// CurrentBuild describes the running binary.
func CurrentBuild() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := CurrentBuild()
		return Render(cmd, info, func(w io.Writer) {
			fmt.Fprintf(w, "cohort %s (%s, built %s)\n", info.Version, info.Commit, info.BuildDate)
			fmt.Fprintf(w, "%s %s\n", info.GoVersion, info.Platform)
		})
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
