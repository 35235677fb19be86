package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-study-backend/internal/sysutil"
	"github.com/tbourn/go-study-backend/pkg/client"
)

type askOpts struct {
	grade        int
	subject      string
	language     string
	conversation string
	topK         int
	mode         string
	key          string
}

func newAskCmd(connect connectFunc) *cobra.Command {
	var o askOpts
	cmd := &cobra.Command{
		Use:   "ask QUESTION...",
		Short: "Ask a question and print the answer as it arrives",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(connect, func(cmd *cobra.Command, a *app, args []string) error {
			q := client.QueryRequest{
				Query:          strings.Join(args, " "),
				Grade:          o.grade,
				Subject:        o.subject,
				Language:       o.language,
				ConversationID: o.conversation,
				TopK:           o.topK,
				IdempotencyKey: o.key,
			}
			if q.IdempotencyKey == "" {
				q.IdempotencyKey = uuid.NewString()
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runAsk(ctx, a, q, o.mode)
		}),
	}
	f := cmd.Flags()
	f.IntVarP(&o.grade, "grade", "g", 8, "class level (5-10)")
	f.StringVarP(&o.subject, "subject", "s", "science", "science, mathematics or social_science")
	f.StringVarP(&o.language, "language", "l", "", "english or hindi")
	f.StringVarP(&o.conversation, "conversation", "c", "", "continue this conversation")
	f.IntVar(&o.topK, "top-k", 0, "retrieval depth (1-10)")
	f.StringVar(&o.mode, "mode", sysutil.FirstNonEmpty(os.Getenv("STUDY_ASK_MODE"), "auto"), "auto, stream, emulate or plain")
	f.StringVar(&o.key, "idempotency-key", "", "replay key (default random)")
	return cmd
}

func runAsk(ctx context.Context, a *app, q client.QueryRequest, mode string) error {
	var (
		s   *client.Stream
		err error
	)
	switch mode {
	case "auto":
		s, err = a.api.Ask(ctx, q)
	case "stream":
		s, err = a.api.StreamQuery(ctx, q)
	case "emulate", "plain":
		var res *client.Result
		if res, err = a.api.Query(ctx, q); err == nil {
			if mode == "plain" {
				printResult(a.out, res, true)
				return nil
			}
			s = a.api.Emulate(ctx, res)
		}
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
	if err != nil {
		return describeErr(err)
	}

	var result *client.Result
	err = s.Handle(client.Handler{
		OnChunk:    func(delta, _ string) { fmt.Fprint(a.out, delta) },
		OnComplete: func(r *client.Result) { result = r },
	})
	fmt.Fprintln(a.out)
	if err != nil {
		return describeErr(err)
	}
	if result == nil {
		fmt.Fprintln(a.out, "(cancelled)")
		return nil
	}
	if result.Replayed {
		a.log.Debug().Str("conversation", result.ConversationID).Msg("answer replayed")
	}
	printResult(a.out, result, false)
	return nil
}

func printResult(w io.Writer, r *client.Result, withAnswer bool) {
	if withAnswer {
		fmt.Fprintln(w, r.Answer)
	}
	if !r.InScope {
		fmt.Fprintln(w, "(outside the syllabus)")
	}
	for _, c := range r.Citations {
		fmt.Fprintf(w, "[%d] %s, %s p.%d (%d%%)\n", c.Number, c.Source, c.Chapter, c.Page, c.RelevancePercent)
	}
	fmt.Fprintf(w, "conversation %s  message %d  language %s\n", r.ConversationID, r.MessageIndex, r.Language)
}

// describeErr adds the retry hint for answers that failed upstream.
func describeErr(err error) error {
	var ae *client.APIError
	if errors.As(err, &ae) && ae.Code == client.CodeUpstreamUnavailable && ae.ConversationID != "" {
		return fmt.Errorf("%w\nyour question was saved; retry with --conversation %s", err, ae.ConversationID)
	}
	return err
}
