package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"socdash/chatbot"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
)

func newAskCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Ask the chatbot a single question",
		Long: `Ask the chatbot a single question and print the answer.

Examples:
  socdash ask "show me the latest critical alerts"
  socdash ask "what do we know about 203.0.113.7"
  socdash ask --json "top 5 attackers this week"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), defaultTimeout)
			defer cancel()

			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Shutdown()

			var s *spinner.Spinner
			if !outputJSON && !quiet {
				s = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
				s.Suffix = " Thinking..."
				s.Start()
			}

			resp, err := app.Chatbot.Chat(ctx, chatbot.ChatRequest{
				Message:   strings.Join(args, " "),
				SessionID: sessionID,
			})

			if s != nil {
				s.Stop()
			}

			if err != nil {
				return fmt.Errorf("chat failed: %w", err)
			}

			if outputJSON {
				return outputAsJSON(cmd.OutOrStdout(), resp)
			}
			renderChatResponse(cmd.OutOrStdout(), resp)
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID to continue a conversation")

	return cmd
}

// renderChatResponse prints the answer followed by a dim footer
func renderChatResponse(w io.Writer, resp *chatbot.ChatResponse) {
	fmt.Fprintln(w, resp.Response)
	if quiet {
		return
	}

	fmt.Fprintln(w)
	source := "conversation"
	if resp.ToolUsed != nil {
		source = "tool " + *resp.ToolUsed
	}
	fmt.Fprintln(w, infoColor.Sprintf("[%s | session %s]", source, resp.SessionID))
}
