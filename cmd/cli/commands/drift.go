package commands

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/modelreg/modelreg/pkg/models"
)

func NewDriftCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "drift <version>",
		Short: "Check a deployed version for performance drift",
		Long: `Compare a version's current performance against the baseline captured at
its deployment and report the drift score, indicators and confidence.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDrift(args[0], asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full result as JSON")

	return cmd
}

func runDrift(version string, asJSON bool) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	var result models.DriftResult
	path := "/models/" + url.PathEscape(version) + "/drift"
	if err := c.do("GET", path, nil, "", &result); err != nil {
		return err
	}

	if asJSON {
		return printJSON(result)
	}

	verdict := "stable"
	if result.DriftDetected {
		verdict = "DRIFTING"
	}
	fmt.Printf("%s: %s (score %.3f, confidence %.2f)\n", version, verdict, result.DriftScore, result.Confidence)
	if result.Recommendation != "" {
		fmt.Printf("  %s\n", result.Recommendation)
	}
	return nil
}
