package commands

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

func NewDeployCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy <version>",
		Short: "Deploy a model version",
		Long: `Promote an available model version to deployed. The currently deployed
version, if any, is demoted back to available in the same step.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLifecycle("deploy", args[0])
		},
	}
	return cmd
}

func NewRollbackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rollback <version>",
		Short: "Roll back to a previously deployed version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLifecycle("rollback", args[0])
		},
	}
	return cmd
}

func runLifecycle(action, version string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	var response map[string]string
	path := "/models/" + url.PathEscape(version) + "/" + action
	if err := c.doJSON("POST", path, nil, &response); err != nil {
		return err
	}

	fmt.Printf("%s is now %s\n", version, response["status"])
	return nil
}

func NewRetireCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retire <version>",
		Short: "Retire a model version",
		Long: `Retire a version so it can no longer be deployed. Deployed versions and
versions still referenced by detection agents are refused.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}

			var response map[string]string
			if err := c.do("DELETE", "/models/"+url.PathEscape(args[0]), nil, "", &response); err != nil {
				return err
			}

			fmt.Printf("%s is now %s\n", args[0], response["status"])
			return nil
		},
	}
	return cmd
}
