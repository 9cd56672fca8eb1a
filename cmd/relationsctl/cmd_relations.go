package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Zereker/relations/internal/api/client"
	"github.com/Zereker/relations/internal/domain"
)

func init() {
	rootCmd.AddCommand(relationsCmd)

	f := relationsCmd.Flags()
	f.Uint32Var(&relationsFlags.limit, "limit", 0, "page size; the server default applies when unset")
	f.StringVar(&relationsFlags.from, "from", "", "resume from this token")
	f.StringVar(&relationsFlags.to, "to", "", "stop before this token")
	f.BoolVar(&relationsFlags.singlePage, "single-page", false, "fetch one page and print its next_batch")
}

var relationsFlags struct {
	limit      uint32
	from       string
	to         string
	singlePage bool
}

var relationsCmd = &cobra.Command{
	Use:   "relations <room_id> <event_id> <rel_type> <event_type>",
	Short: "Print events relating to a parent event, one JSON object per line",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := buildRequest(cmd, args)
		if err != nil {
			return err
		}

		c, err := newClient()
		if err != nil {
			return err
		}

		return printRelations(cmd.Context(), c, req, relationsFlags.singlePage, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func buildRequest(cmd *cobra.Command, args []string) (domain.RelationsRequest, error) {
	req := domain.NewRelationsRequest(
		domain.RoomID(args[0]),
		domain.EventID(args[1]),
		domain.NewRelationType(args[2]),
		domain.NewEventType(args[3]),
	)

	if err := req.RoomID.Validate(); err != nil {
		return req, err
	}
	if err := req.EventID.Validate(); err != nil {
		return req, err
	}

	if cmd.Flags().Changed("limit") {
		req = req.WithLimit(relationsFlags.limit)
	}
	if relationsFlags.from != "" {
		var t domain.Token
		if err := t.UnmarshalText([]byte(relationsFlags.from)); err != nil {
			return req, fmt.Errorf("from: %w", err)
		}
		req = req.WithFrom(t)
	}
	if relationsFlags.to != "" {
		var t domain.Token
		if err := t.UnmarshalText([]byte(relationsFlags.to)); err != nil {
			return req, fmt.Errorf("to: %w", err)
		}
		req = req.WithTo(t)
	}
	return req, nil
}

// printRelations writes every chunk entry as a compact JSON line to out. In
// single page mode the page's next_batch, when present, goes to errOut.
func printRelations(ctx context.Context, c *client.Client, req domain.RelationsRequest, singlePage bool, out, errOut io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	write := func(resp *domain.RelationsResponse) error {
		for _, raw := range resp.Chunk {
			var buf bytes.Buffer
			if err := json.Compact(&buf, raw); err != nil {
				return fmt.Errorf("event is not valid JSON: %w", err)
			}
			buf.WriteByte('\n')
			if _, err := out.Write(buf.Bytes()); err != nil {
				return err
			}
		}
		return nil
	}

	if !singlePage {
		return c.Walk(ctx, req, write)
	}

	resp, err := c.GetRelatingEvents(ctx, req)
	if err != nil {
		return err
	}
	if err := write(resp); err != nil {
		return err
	}
	if resp.HasMoreForward() {
		next, err := resp.NextBatch.MarshalText()
		if err != nil {
			return err
		}
		fmt.Fprintf(errOut, "next_batch: %s\n", next)
	}
	return nil
}
