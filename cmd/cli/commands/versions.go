package commands

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/modelreg/modelreg/pkg/models"
)

func NewVersionsCmd() *cobra.Command {
	var version string

	cmd := &cobra.Command{
		Use:   "versions",
		Short: "List registered model versions",
		Example: `  # List every version
  modelreg-cli versions

  # Show one version in full
  modelreg-cli versions --version v2.1.0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersions(version)
		},
	}

	cmd.Flags().StringVar(&version, "version", "", "Show a single version in detail")

	return cmd
}

func runVersions(version string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	if version != "" {
		var v models.ModelVersion
		if err := c.do("GET", "/models/"+url.PathEscape(version), nil, "", &v); err != nil {
			return err
		}
		return printJSON(v)
	}

	var response struct {
		Versions []*models.ModelVersion `json:"versions"`
		Total    int                    `json:"total"`
	}
	if err := c.do("GET", "/models", nil, "", &response); err != nil {
		return err
	}

	if response.Total == 0 {
		fmt.Println("No model versions registered.")
		return nil
	}

	fmt.Printf("%-20s %-12s %-24s\n", "VERSION", "STATUS", "CREATED")
	for _, v := range response.Versions {
		fmt.Printf("%-20s %-12s %-24s\n", v.Version, v.Status, v.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
