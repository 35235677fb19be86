package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tbourn/go-study-backend/pkg/client"
)

func newHistoryCmd(connect connectFunc) *cobra.Command {
	var p client.HistoryParams
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List conversations, most recent first",
		Args:  cobra.NoArgs,
		RunE: withApp(connect, func(cmd *cobra.Command, a *app, _ []string) error {
			page, err := a.api.History(cmd.Context(), p)
			if err != nil {
				return err
			}
			if p.Group {
				for _, g := range page.Groups {
					fmt.Fprintf(a.out, "%s\n", g.Label)
					printPreviews(a.out, g.Conversations)
					fmt.Fprintln(a.out)
				}
			} else {
				printPreviews(a.out, page.Data)
			}
			pg := page.Pagination
			fmt.Fprintf(a.out, "page %d/%d, %d conversations\n", pg.Page, pg.TotalPages, pg.Total)
			return nil
		}),
	}
	f := cmd.Flags()
	f.IntVar(&p.Page, "page", 1, "page number")
	f.IntVar(&p.Limit, "limit", 20, "page size")
	f.StringVar(&p.Status, "status", "", "active (default), archived or all")
	f.StringVar(&p.Subject, "subject", "", "only this subject")
	f.IntVar(&p.Grade, "grade", 0, "only this grade")
	f.BoolVar(&p.Group, "group", false, "group by Today, Yesterday, Last 7 Days and Older")
	return cmd
}

func printPreviews(w io.Writer, list []client.Preview) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, c := range list {
		fmt.Fprintf(tw, "%s\t%s\t%d/%s\t%d msgs\t%s\n",
			c.ID, c.Title, c.Metadata.Grade, c.Metadata.Subject, c.MessageCount, c.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	_ = tw.Flush()
}

func newShowCmd(connect connectFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "show CONVERSATION_ID",
		Short: "Print a conversation with all its messages",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(connect, func(cmd *cobra.Command, a *app, args []string) error {
			c, err := a.api.Conversation(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if _, err := a.api.HydrateFeedback(cmd.Context(), c.ID); err != nil {
				a.log.Debug().Err(err).Msg("feedback hydration skipped")
			}
			fmt.Fprintf(a.out, "%s  [%s]  grade %d, %s, %s\n\n", c.Title, c.Status, c.Metadata.Grade, c.Metadata.Subject, c.Metadata.Language)
			for i, m := range c.Messages {
				fmt.Fprintf(a.out, "#%d %s:\n%s\n", i, m.Role, m.Content)
				for _, ct := range m.Citations {
					fmt.Fprintf(a.out, "  [%d] %s, %s p.%d\n", ct.Number, ct.Source, ct.Chapter, ct.Page)
				}
				fmt.Fprintln(a.out)
			}
			return nil
		}),
	}
}

func newArchiveCmd(connect connectFunc, restore bool) *cobra.Command {
	use, short := "archive", "Archive a conversation"
	if restore {
		use, short = "restore", "Restore an archived conversation"
	}
	return &cobra.Command{
		Use:   use + " CONVERSATION_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: withApp(connect, func(cmd *cobra.Command, a *app, args []string) error {
			var err error
			if restore {
				err = a.api.Restore(cmd.Context(), args[0])
			} else {
				err = a.api.Archive(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%sd %s\n", use, args[0])
			return nil
		}),
	}
}
