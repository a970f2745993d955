package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"pkt.systems/pslog"

	"github.com/fragmede/threadview/internal/config"
	"github.com/fragmede/threadview/internal/render"
	"github.com/fragmede/threadview/internal/thread"
)

const previewWidth = 100

func newDumpCmd(cfgPath *string) *cobra.Command {
	var (
		order  string
		expand bool
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "dump <item-id>",
		Short: "Load a thread headlessly and print its comments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			return runDump(cmd.Context(), cmd.OutOrStdout(), cfg, args[0], dumpOptions{
				order:  order,
				expand: expand,
				limit:  limit,
			})
		},
	}
	cmd.Flags().StringVarP(&order, "order", "o", "", "order: popular or newest")
	cmd.Flags().BoolVarP(&expand, "expand", "e", false, "load every reply list")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "print at most n root comments (0 for all)")
	return cmd
}

type dumpOptions struct {
	order  string
	expand bool
	limit  int
}

func runDump(ctx context.Context, w io.Writer, cfg config.Config, arg string, do dumpOptions) error {
	logger := pslog.Ctx(ctx)
	e, err := newEnv(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer e.Close()

	header, err := e.loadHeader(ctx, arg)
	if err != nil {
		return err
	}
	opts, err := e.threadOptions(header, do.order)
	if err != nil {
		return err
	}
	loop := thread.NewLoop(ctx)
	defer loop.Close()
	opts.Scheduler = loop
	th, err := thread.New(opts)
	if err != nil {
		return err
	}
	defer th.Close()

	if err := th.Open(); err != nil {
		return err
	}
	if err := loop.Drain(ctx); err != nil {
		return err
	}

	// Widen the window until every wanted root is loaded; the total may
	// still grow while pages arrive.
	for {
		n := th.Len(thread.RootList)
		if do.limit > 0 && n > do.limit {
			n = do.limit
		}
		if n == 0 || th.Stats().Filled >= n {
			break
		}
		before := th.Stats()
		if err := th.OnWindowChanged(thread.RootList, 0, n-1); err != nil {
			return err
		}
		if err := loop.Drain(ctx); err != nil {
			return err
		}
		after := th.Stats()
		if after.Filled == before.Filled && after.Total == before.Total {
			break
		}
	}

	n := th.Len(thread.RootList)
	if do.limit > 0 && n > do.limit {
		n = do.limit
	}
	if do.expand {
		if err := expandAll(ctx, th, loop, n); err != nil {
			return err
		}
	}

	if header.Title != "" {
		fmt.Fprintf(w, "%s\n", header.Title)
	}
	s := th.Stats()
	fmt.Fprintf(w, "%d comments · %s · %s\n\n", s.Total, s.Ordering, s.Phase)
	now := time.Now()
	for i := 0; i < n; i++ {
		writeSlot(w, th.Slot(thread.RootList, i), i+1, "", now)
		c, ok := th.Slot(thread.RootList, i).Comment()
		if !ok || !th.Expanded(c.ID) {
			continue
		}
		list := thread.ListID(c.ID)
		for j := 0; j < th.Len(list); j++ {
			writeSlot(w, th.Slot(list, j), j+1, "    ", now)
		}
	}
	return nil
}

// expandAll opens the reply list of each of the first n roots and loads
// it to the end.
func expandAll(ctx context.Context, th *thread.Thread, loop *thread.Loop, n int) error {
	for i := 0; i < n; i++ {
		c, ok := th.Slot(thread.RootList, i).Comment()
		if !ok || c.ReplyCount == 0 {
			continue
		}
		if err := th.OnExpand(c.ID); err != nil {
			return err
		}
	}
	if err := loop.Drain(ctx); err != nil {
		return err
	}
	for _, list := range th.Replies() {
		id := thread.ID(list)
		for th.CanLoadMore(id) {
			before := th.Window(list)
			if err := th.LoadMore(id); err != nil {
				return err
			}
			if err := loop.Drain(ctx); err != nil {
				return err
			}
			if th.Window(list) == before && th.CanLoadMore(id) {
				break
			}
		}
	}
	return nil
}

func writeSlot(w io.Writer, s thread.Slot, n int, indent string, now time.Time) {
	c, ok := s.Comment()
	if !ok {
		label := "not loaded"
		if k, ok := s.Placeholder(); ok {
			label = k.String()
		}
		fmt.Fprintf(w, "%s%d. [%s]\n", indent, n, label)
		return
	}
	if c.Deleted {
		fmt.Fprintf(w, "%s%d. [deleted]\n", indent, n)
		return
	}
	meta := fmt.Sprintf("%s · %s", c.Author, render.TimeAgo(c.CreatedAt, now))
	if c.RepliedTo != "" {
		meta += " → " + c.RepliedTo
	}
	if c.ReplyCount > 0 {
		meta += fmt.Sprintf(" · %d replies", c.ReplyCount)
	}
	fmt.Fprintf(w, "%s%d. %s\n%s   %s\n", indent, n, meta, indent, render.Preview(c.Text, previewWidth))
}
