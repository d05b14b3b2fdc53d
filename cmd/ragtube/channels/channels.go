// Package channelscmder provides the channels command for listing the
// channels a question can be filtered by.
package channelscmder

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/ragtube/cmd/ragtube/bootstrap"
	"github.com/papercomputeco/ragtube/pkg/chat"
	"github.com/papercomputeco/ragtube/pkg/cliui"
	"github.com/papercomputeco/ragtube/pkg/config"
)

const channelsLongDesc string = `List the YouTube channels indexed by the RAG backend.

Pass a channel id to "ragtube chat --channel" or "ragtube ask --channel" to
restrict answers to that channel's videos.

Examples:
  ragtube channels`

const channelsShortDesc string = "List indexed channels"

type channelsCommander struct {
	apiTarget string
}

func NewChannelsCmd() *cobra.Command {
	cmder := &channelsCommander{}

	cmd := &cobra.Command{
		Use:   "channels",
		Short: channelsShortDesc,
		Long:  channelsLongDesc,
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

			return ListChannels(cmd.Context(), cmd.OutOrStdout(), client, cfg.Client.ChannelID)
		},
	}

	config.AddStringFlag(cmd, config.Registry, config.FlagAPITarget, &cmder.apiTarget)

	return cmd
}

// ListChannels prints every channel, marking the selected one.
func ListChannels(ctx context.Context, w io.Writer, lister chat.ChannelLister, selected string) error {
	channels, err := lister.Channels(ctx)
	if err != nil {
		return fmt.Errorf("failed to load channels: %w", err)
	}

	if len(channels) == 0 {
		fmt.Fprintf(w, "\n  %s No channels indexed yet.\n\n", cliui.DimStyle.Render("●"))
		return nil
	}

	fmt.Fprintf(w, "\n  %s\n\n", cliui.HeaderStyle.Render(fmt.Sprintf("Channels (%d)", len(channels))))
	for _, ch := range channels {
		mark := " "
		if ch.ID == selected {
			mark = cliui.SuccessMark
		}
		fmt.Fprintf(w, "  %s %s  %s\n",
			mark,
			cliui.ValueStyle.Render(ch.Title),
			cliui.IDStyle.Render(ch.ID),
		)
	}
	fmt.Fprintln(w)

	return nil
}
