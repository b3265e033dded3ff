package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"copydesk/internal/agent"
	"copydesk/internal/auth"
	"copydesk/internal/chat"
)

func newChatCmd() *cobra.Command {
	var token, message, agentName string
	var fresh bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Send one message and print the reply",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			scope, err := auth.NewService(0).Scope(token)
			if err != nil {
				return err
			}
			orch := a.orchestrator(scope, token)
			orch.Init(ctx, chat.InitOptions{Fresh: fresh})
			if agentName != "" {
				orch.SelectAgent(ctx, agentName)
			}
			reply, err := orch.Send(ctx, message)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "session %s\n", orch.Session().SessionID)
			fmt.Fprintln(os.Stdout, reply.Content)
			return nil
		},
	}
	cmd.Flags().StringVarP(&token, "token", "t", os.Getenv("COPYDESK_TOKEN"), "access token")
	cmd.Flags().StringVarP(&message, "message", "m", "", "message to send (required)")
	cmd.Flags().StringVarP(&agentName, "agent", "a", "", "agent display name")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "start a new conversation")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func newAgentsCmd() *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "List the agents available to a token",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			registry := agent.NewRegistry(a.client.WithToken(token), a.log)
			registry.Refresh(cmd.Context())
			selected, _ := registry.Selected()

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "\tNAME\tID\tDESCRIPTION")
			for _, ag := range registry.Agents() {
				mark := ""
				if ag.Name == selected.Name {
					mark = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", mark, ag.Name, ag.ID, ag.Description)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&token, "token", "t", os.Getenv("COPYDESK_TOKEN"), "access token")
	return cmd
}
