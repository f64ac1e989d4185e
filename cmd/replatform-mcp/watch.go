package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	rpnats "github.com/Strob0t/replatform-mcp/internal/adapter/nats"
	"github.com/Strob0t/replatform-mcp/internal/adapter/ws"
	"github.com/Strob0t/replatform-mcp/internal/domain/agent"
)

func newWatchCmd() *cobra.Command {
	var (
		url      string
		natsURL  string
		prefix   string
		agentID  string
		rawFrame bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print the live event stream of a running server",
		Long: `Watch connects to a dashboard WebSocket and prints every frame, or, with
--nats, follows the events published to NATS.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if natsURL != "" {
				return watchNATS(cmd.Context(), out, natsURL, prefix, agentID)
			}
			return ws.Subscribe(cmd.Context(), url, func(msg ws.Message) error {
				if rawFrame {
					data, err := json.Marshal(msg)
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(out, string(data))
					return err
				}
				_, err := fmt.Fprintf(out, "%s %-16s %s\n", msg.Timestamp.Format("15:04:05.000"), msg.Type, msg.Data)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&url, "url", "ws://localhost:8080/ws", "Dashboard WebSocket URL")
	cmd.Flags().BoolVar(&rawFrame, "raw", false, "Print frames as raw JSON")
	cmd.Flags().StringVar(&natsURL, "nats", "", "Follow events on this NATS server instead of the WebSocket")
	cmd.Flags().StringVar(&prefix, "subject-prefix", "agents.events", "NATS subject prefix")
	cmd.Flags().StringVar(&agentID, "agent", "", "Only follow this agent (NATS only)")

	return cmd
}

func watchNATS(ctx context.Context, out io.Writer, url, prefix, agentID string) error {
	nc, err := rpnats.Connect(ctx, url, prefix)
	if err != nil {
		return err
	}
	defer func() { _ = nc.Close() }()

	stop, err := nc.Subscribe(ctx, agentID, func(ev agent.Event) {
		_, _ = fmt.Fprintf(out, "%s %-10s %-10s %s\n", ev.Timestamp.Format("15:04:05.000"), ev.AgentID, ev.Kind, ev.Message)
	})
	if err != nil {
		return err
	}
	defer stop()

	<-ctx.Done()
	return nil
}
