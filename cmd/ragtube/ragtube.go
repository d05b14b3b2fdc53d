// Package ragtubecmder builds the root ragtube command.
package ragtubecmder

import (
	"github.com/spf13/cobra"

	askcmder "github.com/papercomputeco/ragtube/cmd/ragtube/ask"
	authcmder "github.com/papercomputeco/ragtube/cmd/ragtube/auth"
	channelscmder "github.com/papercomputeco/ragtube/cmd/ragtube/channels"
	chatcmder "github.com/papercomputeco/ragtube/cmd/ragtube/chat"
	configcmder "github.com/papercomputeco/ragtube/cmd/ragtube/config"
	historycmder "github.com/papercomputeco/ragtube/cmd/ragtube/history"
	servecmder "github.com/papercomputeco/ragtube/cmd/ragtube/serve"
	statuscmder "github.com/papercomputeco/ragtube/cmd/ragtube/status"
	versioncmder "github.com/papercomputeco/ragtube/cmd/version"
)

const ragtubeLongDesc string = `ragtube asks questions about YouTube channels from your terminal.

Answers are generated by a RAG backend from video transcripts and streamed
as they are written, together with the transcripts they are based on.

Get started:
  ragtube status       Check that the backend is reachable
  ragtube chat         Start an interactive chat
  ragtube ask "..."    Ask a single question
  ragtube serve        Serve stored chat history over HTTP and MCP`

const ragtubeShortDesc string = "ragtube - Chat with YouTube transcripts"

func NewRagtubeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "ragtube",
		Short:        ragtubeShortDesc,
		Long:         ragtubeLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .ragtube/ config directory")

	// Add subcommands
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(askcmder.NewAskCmd())
	cmd.AddCommand(channelscmder.NewChannelsCmd())
	cmd.AddCommand(statuscmder.NewStatusCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(historycmder.NewHistoryCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
