package gmail

import (
	"context"
	"errors"
	"fmt"

	"mailintel/internal/aggregate"
	"mailintel/internal/model"
	"mailintel/pkg/logger"
	"mailintel/pkg/metrics"
	"mailintel/pkg/util"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	gmailv1 "google.golang.org/api/gmail/v1"
)

// ListSenders lists up to limit threads and groups them by the From header
// of each thread's lead message. Threads whose metadata cannot be fetched
// are skipped. Groups keep retrieval order.
func (c *Client) ListSenders(ctx context.Context, cred string, limit int) ([]model.SenderGroup, error) {
	if limit <= 0 {
		limit = c.cfg.ThreadLimit
	}
	svc, err := c.service(ctx, cred)
	if err != nil {
		return nil, err
	}

	var threadIDs []string
	err = c.call(ctx, "threads.list", func(ctx context.Context) error {
		resp, err := svc.Users.Threads.List(user).MaxResults(int64(limit)).Context(ctx).Do()
		if err != nil {
			return err
		}
		for _, t := range resp.Threads {
			threadIDs = append(threadIDs, t.Id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}

	senders := make([]string, len(threadIDs))
	ok := make([]bool, len(threadIDs))
	c.fanOut(ctx, threadIDs, func(ctx context.Context, i int, id string) error {
		thread, err := c.getThread(ctx, svc, id, "metadata")
		if err != nil {
			return err
		}
		senders[i] = leadSender(thread)
		ok[i] = true
		return nil
	}, "metadata")

	idx := aggregate.NewSenderIndex()
	for i, id := range threadIDs {
		if ok[i] {
			idx.Add(senders[i], id)
		}
	}
	return idx.Groups(), nil
}

// FetchMessages fetches every thread in full and returns all messages sorted
// ascending by date. Failed threads are skipped; an error is returned only
// when threadIDs is empty or every fetch failed.
func (c *Client) FetchMessages(ctx context.Context, cred string, threadIDs []string) ([]model.Message, error) {
	if len(threadIDs) == 0 {
		return nil, ErrNoThreads
	}
	svc, err := c.service(ctx, cred)
	if err != nil {
		return nil, err
	}

	slots := make([][]model.Message, len(threadIDs))
	failed, firstErr := c.fanOut(ctx, threadIDs, func(ctx context.Context, i int, id string) error {
		thread, err := c.getThread(ctx, svc, id, "full")
		if err != nil {
			return err
		}
		msgs := make([]model.Message, 0, len(thread.Messages))
		for _, m := range thread.Messages {
			msgs = append(msgs, toMessage(m, id))
		}
		slots[i] = msgs
		return nil
	}, "full")

	if failed == len(threadIDs) {
		return nil, fmt.Errorf("%w: %w", ErrAllThreadsFailed, firstErr)
	}

	var all []model.Message
	for _, msgs := range slots {
		all = append(all, msgs...)
	}
	return aggregate.SortByDate(all), nil
}

// FetchThreadSubjects returns the lead subject of each thread. Threads that
// fail to fetch are absent from the result.
func (c *Client) FetchThreadSubjects(ctx context.Context, cred string, threadIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(threadIDs))
	if len(threadIDs) == 0 {
		return out, nil
	}
	svc, err := c.service(ctx, cred)
	if err != nil {
		return nil, err
	}

	subjects := make([]*string, len(threadIDs))
	c.fanOut(ctx, threadIDs, func(ctx context.Context, i int, id string) error {
		thread, err := c.getThread(ctx, svc, id, "metadata")
		if err != nil {
			return err
		}
		s := model.HeaderMissing
		if len(thread.Messages) > 0 {
			s = headerOr(thread.Messages[0].Payload, "Subject", model.HeaderMissing)
		}
		subjects[i] = &s
		return nil
	}, "subjects")

	for i, id := range threadIDs {
		if subjects[i] != nil {
			out[id] = *subjects[i]
		}
	}
	return out, nil
}

// fanOut runs fn for every id with bounded concurrency. Per-id errors are
// logged and counted, never returned by the group.
func (c *Client) fanOut(ctx context.Context, ids []string, fn func(ctx context.Context, i int, id string) error, op string) (int, error) {
	log := logger.WithTrace(ctx, c.logger)

	results := make([]error, len(ids))
	g := new(errgroup.Group)
	g.SetLimit(c.cfg.Concurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			if err := fn(ctx, i, id); err != nil {
				results[i] = err
				_, errType := util.ClassifyError(err)
				log.Warn("Skipping thread",
					zap.String("thread_id", id),
					zap.String("op", op),
					zap.String("error_type", errType),
					zap.Error(err),
				)
				metrics.IncrementThreadFetch(op, "failed")
				return nil
			}
			metrics.IncrementThreadFetch(op, "success")
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	var firstErr error
	for _, err := range results {
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return failed, firstErr
}

func (c *Client) getThread(ctx context.Context, svc *gmailv1.Service, id, format string) (*gmailv1.Thread, error) {
	var thread *gmailv1.Thread
	err := c.call(ctx, "threads.get."+format, func(ctx context.Context) error {
		call := svc.Users.Threads.Get(user, id).Format(format).Context(ctx)
		if format == "metadata" {
			call = call.MetadataHeaders("From", "Subject", "Date")
		}
		var err error
		thread, err = call.Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	if thread == nil {
		return nil, errors.New("empty thread response")
	}
	return thread, nil
}

func leadSender(t *gmailv1.Thread) string {
	if len(t.Messages) == 0 {
		return model.UnknownSender
	}
	return headerOr(t.Messages[0].Payload, "From", model.UnknownSender)
}
