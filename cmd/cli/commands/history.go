package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modelreg/modelreg/pkg/models"
)

func NewHistoryCmd() *cobra.Command {
	var offset, limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the deployment transfer history",
		Example: `  # Latest 20 events
  modelreg-cli history --limit 20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(offset, limit)
		},
	}

	cmd.Flags().IntVar(&offset, "offset", 0, "Events to skip")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum events to show")

	return cmd
}

func runHistory(offset, limit int) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	var response struct {
		Events []*models.DeploymentEvent `json:"events"`
		Total  int                       `json:"total"`
	}
	path := fmt.Sprintf("/deployments/history?offset=%d&limit=%d", offset, limit)
	if err := c.do("GET", path, nil, "", &response); err != nil {
		return err
	}

	if response.Total == 0 {
		fmt.Println("No deployment events recorded.")
		return nil
	}

	fmt.Printf("%-24s %-12s %-20s %-20s %-12s\n", "TIMESTAMP", "ACTION", "VERSION", "PREVIOUS", "ACTOR")
	for _, e := range response.Events {
		fmt.Printf("%-24s %-12s %-20s %-20s %-12s\n",
			e.Timestamp.Format("2006-01-02 15:04:05"), e.Action, e.Version, e.PreviousVersion, e.Actor)
	}
	fmt.Printf("\n%d of %d events\n", len(response.Events), response.Total)
	return nil
}
