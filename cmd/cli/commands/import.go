package commands

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/modelreg/modelreg/pkg/models"
)

type ImportOptions struct {
	BundleFile string
}

func NewImportCmd() *cobra.Command {
	opts := &ImportOptions{}

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a model deployment bundle",
		Long: `Upload a model deployment bundle to the registry. The bundle filename
must follow the model_<version>_deployment.<ext> convention.`,
		Example: `  # Import a packaged model
  modelreg-cli import --bundle model_v2.1.0_deployment.zip`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.BundleFile, "bundle", "b", "", "Bundle file to import (required)")
	cmd.MarkFlagRequired("bundle")

	return cmd
}

func runImport(opts *ImportOptions) error {
	data, err := os.ReadFile(opts.BundleFile)
	if err != nil {
		return fmt.Errorf("failed to read bundle: %w", err)
	}

	c, err := newClient()
	if err != nil {
		return err
	}

	filename := filepath.Base(opts.BundleFile)
	path := "/models?filename=" + url.QueryEscape(filename)

	var response struct {
		Summary *models.PackageSummary `json:"summary"`
	}
	if err := c.do("POST", path, bytes.NewReader(data), "application/octet-stream", &response); err != nil {
		return err
	}

	fmt.Printf("Imported %s\n", response.Summary.Version)
	for _, warning := range response.Summary.Warnings {
		fmt.Printf("  warning: %s\n", warning)
	}
	return nil
}
