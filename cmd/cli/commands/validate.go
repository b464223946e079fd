package commands

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/modelreg/modelreg/pkg/models"
)

func NewValidateCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "validate <version>",
		Short: "Validate a model version's quality metrics",
		Long: `Run the quality assessment for a model version. The result is computed
from the version's stored evaluation metrics and is deterministic per version.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(args[0], asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full result as JSON")

	return cmd
}

func runValidate(version string, asJSON bool) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	var result models.ValidationResult
	path := "/models/" + url.PathEscape(version) + "/validate"
	if err := c.doJSON("POST", path, nil, &result); err != nil {
		return err
	}

	if asJSON {
		return printJSON(result)
	}

	verdict := "INVALID"
	if result.IsValid {
		verdict = "VALID"
	}
	fmt.Printf("%s: %s (score %.3f)\n", version, verdict, result.Score)

	for _, e := range result.Errors {
		fmt.Printf("  error: %s\n", e)
	}
	for _, w := range result.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
	for _, rec := range result.Recommendations {
		fmt.Printf("  recommendation: %s\n", rec)
	}
	return nil
}
