package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fwojciec/relay"
)

// listConversations writes one line per conversation, newest first.
func listConversations(ctx context.Context, lister relay.Lister, w io.Writer) error {
	convs, err := lister.List(ctx)
	if err != nil {
		return fmt.Errorf("list conversations: %w", err)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tAGENT\tCREATED")
	for _, c := range convs {
		agent := c.AgentRef
		if agent == "" {
			agent = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ID, agent, c.CreatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}
