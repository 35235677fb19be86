package client

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/tbourn/go-study-backend/pkg/feedbackcache"
)

func keyOf(conversationID string, messageIndex int) feedbackcache.Key {
	return feedbackcache.Key{ConversationID: conversationID, MessageIndex: messageIndex}
}

func entryOf(f *Feedback) feedbackcache.Entry {
	at := f.CreatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return feedbackcache.Entry{FeedbackID: f.ID, Rating: f.Rating, Comment: f.Comment, RatedAt: at}
}

// SubmitFeedback rates an assistant message. A message the cache knows as
// rated is answered without a request. A duplicate reported by the server is
// not an error: the outcome carries the existing rating and the cache
// learns it.
func (c *Client) SubmitFeedback(ctx context.Context, in FeedbackRequest) (*FeedbackOutcome, error) {
	key := keyOf(in.ConversationID, in.MessageIndex)
	if e, ok, err := c.cache.Get(ctx, key); err == nil && ok {
		return &FeedbackOutcome{
			AlreadyRated:   true,
			ExistingRating: e.Rating,
			FromCache:      true,
			Feedback: &Feedback{
				ID:             e.FeedbackID,
				ConversationID: in.ConversationID,
				MessageIndex:   in.MessageIndex,
				Rating:         e.Rating,
				Comment:        e.Comment,
				CreatedAt:      e.RatedAt,
			},
		}, nil
	}

	var env dataEnvelope[Feedback]
	resp, err := c.req(ctx).SetBody(in).SetResult(&env).Post("/feedback")
	if err != nil {
		return nil, err
	}
	if err := check(resp); err != nil {
		var ae *APIError
		if errors.As(err, &ae) && ae.Status == http.StatusConflict && ae.ExistingRating != "" {
			existing := ae.Existing
			if existing == nil {
				existing = &Feedback{ConversationID: in.ConversationID, MessageIndex: in.MessageIndex, Rating: ae.ExistingRating}
			}
			_ = c.cache.Put(ctx, key, entryOf(existing))
			return &FeedbackOutcome{Feedback: existing, AlreadyRated: true, ExistingRating: ae.ExistingRating}, nil
		}
		return nil, err
	}

	fb := env.Data
	_ = c.cache.Put(ctx, key, entryOf(&fb))
	return &FeedbackOutcome{Feedback: &fb}, nil
}

// UpdateFeedback changes the rating and comment of fb.ID.
func (c *Client) UpdateFeedback(ctx context.Context, fb Feedback) (*Feedback, error) {
	var env dataEnvelope[Feedback]
	resp, err := c.req(ctx).
		SetPathParam("id", fb.ID).
		SetBody(map[string]string{"rating": fb.Rating, "comment": fb.Comment}).
		SetResult(&env).
		Put("/feedback/{id}")
	if err != nil {
		return nil, err
	}
	if err := check(resp); err != nil {
		return nil, err
	}
	out := env.Data
	_ = c.cache.Put(ctx, keyOf(out.ConversationID, out.MessageIndex), entryOf(&out))
	return &out, nil
}

// DeleteFeedback withdraws fb so the message can be rated again.
func (c *Client) DeleteFeedback(ctx context.Context, fb Feedback) error {
	resp, err := c.req(ctx).SetPathParam("id", fb.ID).Delete("/feedback/{id}")
	if err != nil {
		return err
	}
	if err := check(resp); err != nil && StatusOf(err) != http.StatusNotFound {
		return err
	}
	_ = c.cache.Delete(ctx, keyOf(fb.ConversationID, fb.MessageIndex))
	return nil
}

// ConversationFeedback lists the caller's ratings in one conversation.
func (c *Client) ConversationFeedback(ctx context.Context, conversationID string) ([]Feedback, error) {
	var env dataEnvelope[[]Feedback]
	resp, err := c.req(ctx).SetPathParam("id", conversationID).SetResult(&env).Get("/feedback/conversation/{id}")
	if err != nil {
		return nil, err
	}
	if err := check(resp); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// HydrateFeedback loads the caller's ratings of a conversation into the
// cache and returns how many there were.
func (c *Client) HydrateFeedback(ctx context.Context, conversationID string) (int, error) {
	list, err := c.ConversationFeedback(ctx, conversationID)
	if err != nil {
		return 0, err
	}
	for i := range list {
		if err := c.cache.Put(ctx, keyOf(list[i].ConversationID, list[i].MessageIndex), entryOf(&list[i])); err != nil {
			return i, err
		}
	}
	return len(list), nil
}

// MyFeedback returns a page of the caller's ratings, optionally filtered by
// rating.
func (c *Client) MyFeedback(ctx context.Context, page, limit int, rating string) (*FeedbackPage, error) {
	r := c.req(ctx)
	if page > 0 {
		r.SetQueryParam("page", strconv.Itoa(page))
	}
	if limit > 0 {
		r.SetQueryParam("limit", strconv.Itoa(limit))
	}
	if rating != "" {
		r.SetQueryParam("rating", rating)
	}
	var out FeedbackPage
	resp, err := r.SetResult(&out).Get("/feedback/my-feedback")
	if err != nil {
		return nil, err
	}
	if err := check(resp); err != nil {
		return nil, err
	}
	return &out, nil
}
