package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corvid-labs/ago/pkg/client"
	"github.com/corvid-labs/ago/pkg/codec"
)

var chatCmd = &cobra.Command{
	Use:   "chat <agent> <message>",
	Short: "Send a message to an agent and print its turn outcome",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := streamContext()
		defer cancel()
		return client.New(controlSocketPath()).Chat(ctx, args[0], args[1], printChatEvent)
	},
}

func printChatEvent(ev codec.Event) {
	var outcome struct {
		Text       string `json:"text,omitempty"`
		Iterations int    `json:"iterations"`
	}
	switch ev.EventKind {
	case codec.EventTurnComplete:
		_ = json.Unmarshal(ev.Payload, &outcome)
		fmt.Println(outcome.Text)
	case codec.EventTurnTruncated:
		_ = json.Unmarshal(ev.Payload, &outcome)
		fmt.Printf("(turn truncated after %d iterations without a final answer)\n", outcome.Iterations)
	default:
		fmt.Printf("%s: %s\n", ev.EventKind, string(ev.Payload))
	}
}
