package gmail

import (
	"context"
	"fmt"

	gmailv1 "google.golang.org/api/gmail/v1"
)

// SendMessage transmits an already encoded raw message. threadID may be
// empty. The call is attempted once and any failure is returned.
func (c *Client) SendMessage(ctx context.Context, cred, raw, threadID string) (string, error) {
	svc, err := c.service(ctx, cred)
	if err != nil {
		return "", err
	}

	var sent *gmailv1.Message
	err = c.call(ctx, "messages.send", func(ctx context.Context) error {
		var err error
		sent, err = svc.Users.Messages.Send(user, &gmailv1.Message{Raw: raw, ThreadId: threadID}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	return sent.Id, nil
}
