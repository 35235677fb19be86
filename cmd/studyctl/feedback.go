package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tbourn/go-study-backend/pkg/client"
)

func newRateCmd(connect connectFunc) *cobra.Command {
	var comment string
	cmd := &cobra.Command{
		Use:   "rate CONVERSATION_ID MESSAGE_INDEX positive|negative",
		Short: "Rate an answer",
		Args:  cobra.ExactArgs(3),
		RunE: withApp(connect, func(cmd *cobra.Command, a *app, args []string) error {
			idx, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("message index %q is not a number", args[1])
			}
			out, err := a.api.SubmitFeedback(cmd.Context(), client.FeedbackRequest{
				ConversationID: args[0],
				MessageIndex:   idx,
				Rating:         args[2],
				Comment:        comment,
			})
			if err != nil {
				return err
			}
			if out.AlreadyRated {
				fmt.Fprintf(a.out, "already rated: %s\n", out.ExistingRating)
				return nil
			}
			fmt.Fprintf(a.out, "rated %s (%s)\n", out.Feedback.Rating, out.Feedback.ID)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&comment, "comment", "m", "", "optional comment (up to 500 characters)")
	return cmd
}

func newFeedbackCmd(connect connectFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Manage your ratings",
	}

	var (
		page, limit int
		rating      string
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List your ratings",
		Args:  cobra.NoArgs,
		RunE: withApp(connect, func(cmd *cobra.Command, a *app, _ []string) error {
			res, err := a.api.MyFeedback(cmd.Context(), page, limit, rating)
			if err != nil {
				return err
			}
			for _, f := range res.Data {
				fmt.Fprintf(a.out, "%s  %s #%d  %s  %s\n", f.ID, f.ConversationID, f.MessageIndex, f.Rating, f.Comment)
			}
			fmt.Fprintf(a.out, "page %d/%d, %d ratings\n", res.Pagination.Page, res.Pagination.TotalPages, res.Pagination.Total)
			return nil
		}),
	}
	list.Flags().IntVar(&page, "page", 1, "page number")
	list.Flags().IntVar(&limit, "limit", 20, "page size")
	list.Flags().StringVar(&rating, "rating", "", "only positive or negative")

	var comment string
	update := &cobra.Command{
		Use:   "update FEEDBACK_ID positive|negative",
		Short: "Change a rating",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(connect, func(cmd *cobra.Command, a *app, args []string) error {
			f, err := a.api.UpdateFeedback(cmd.Context(), client.Feedback{ID: args[0], Rating: args[1], Comment: comment})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "updated %s: %s\n", f.ID, f.Rating)
			return nil
		}),
	}
	update.Flags().StringVarP(&comment, "comment", "m", "", "new comment")

	withdraw := &cobra.Command{
		Use:   "delete CONVERSATION_ID MESSAGE_INDEX",
		Short: "Withdraw the rating of an answer",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(connect, func(cmd *cobra.Command, a *app, args []string) error {
			idx, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("message index %q is not a number", args[1])
			}
			list, err := a.api.ConversationFeedback(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, f := range list {
				if f.MessageIndex == idx {
					if err := a.api.DeleteFeedback(cmd.Context(), f); err != nil {
						return err
					}
					fmt.Fprintf(a.out, "deleted %s\n", f.ID)
					return nil
				}
			}
			return fmt.Errorf("message %d of %s is not rated", idx, args[0])
		}),
	}

	cmd.AddCommand(list, update, withdraw)
	return cmd
}

func newProfileCmd(connect connectFunc) *cobra.Command {
	var language string
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show your profile, or set the preferred language with --language",
		Args:  cobra.NoArgs,
		RunE: withApp(connect, func(cmd *cobra.Command, a *app, _ []string) error {
			var (
				p   *client.Profile
				err error
			)
			if cmd.Flags().Changed("language") {
				p, err = a.api.SetPreferredLanguage(cmd.Context(), language)
			} else {
				p, err = a.api.Profile(cmd.Context())
			}
			if err != nil {
				return err
			}
			lang := p.PreferredLanguage
			if lang == "" {
				lang = "(server default)"
			}
			fmt.Fprintf(a.out, "user %s\npreferred language %s\n", p.UserID, lang)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&language, "language", "l", "", "english or hindi; empty clears it")
	return cmd
}
