// Package statuscmder provides the status command for checking that the RAG
// backend is reachable and ready to answer.
package statuscmder

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/ragtube/cmd/ragtube/bootstrap"
	"github.com/papercomputeco/ragtube/pkg/cliui"
	"github.com/papercomputeco/ragtube/pkg/config"
	"github.com/papercomputeco/ragtube/pkg/rag"
)

// ConnectFailure is printed when the readiness check fails.
const ConnectFailure = "Failed to connect to the API. Please check if the backend is running."

const statusLongDesc string = `Check that the RAG backend is reachable.

Calls the backend readiness endpoint and reports the result. Exits non-zero
when the backend is down or answers with an error.

Examples:
  ragtube status
  ragtube status --api-target http://localhost:5000`

const statusShortDesc string = "Check that the RAG backend is ready"

type statusCommander struct {
	apiTarget string
}

func NewStatusCmd() *cobra.Command {
	cmder := &statusCommander{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: statusShortDesc,
		Long:  statusLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := bootstrap.LoadConfig(cmd, config.FlagAPITarget)
			if err != nil {
				return err
			}

			client, err := bootstrap.NewClient(cfg, bootstrap.ConfigDir(cmd), bootstrap.Logger(cmd))
			if err != nil {
				return err
			}

			return CheckReadiness(cmd.Context(), cmd.OutOrStdout(), client)
		},
	}

	config.AddStringFlag(cmd, config.Registry, config.FlagAPITarget, &cmder.apiTarget)

	return cmd
}

// Readier is the readiness half of the RAG client.
type Readier interface {
	BaseURL() string
	Readiness(ctx context.Context) (*rag.ReadinessStatus, error)
}

// CheckReadiness runs the readiness check as a spinner step. Any failure is
// returned as an error carrying ConnectFailure.
func CheckReadiness(ctx context.Context, w io.Writer, client Readier) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var status *rag.ReadinessStatus
	err := cliui.Step(w, "Connecting to "+client.BaseURL(), func() error {
		var err error
		status, err = client.Readiness(ctx)
		if err != nil {
			return err
		}
		if !status.OK() {
			return fmt.Errorf("backend reported status %q", status.Status)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", ConnectFailure, err)
	}

	return nil
}
