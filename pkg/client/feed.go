package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Sternrassler/catalog-client/pkg/resource"
)

// ChangeNotificationsVersion is the media type requested from the feed.
const ChangeNotificationsVersion = "application/vnd.hedtech.change-notifications.v2+json"

// Batch is one page of pending change notifications, in feed order.
type Batch struct {
	Notifications []resource.ChangeNotification

	// Remaining is the feed-reported number of notifications still
	// pending after this batch, or -1 when the feed did not say.
	Remaining int
}

// Consume fetches up to limit pending notifications. The feed owns its
// cursor; consuming acknowledges the previous batch upstream. The limit is
// passed through unchecked, the feed rejects values outside its range.
func (c *Client) Consume(ctx context.Context, limit int) (*Batch, error) {
	u := c.baseURL + "/consume?limit=" + strconv.Itoa(limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", ChangeNotificationsVersion)

	resp, err := c.do(req, "consume", nil)
	if err != nil {
		return nil, err
	}

	r, err := readResponse(resp)
	if err != nil {
		return nil, err
	}

	batch := &Batch{Remaining: -1}
	if n, ok := headerInt(r.Header, HeaderRemaining); ok {
		batch.Remaining = n
	}

	body := bytes.TrimSpace(r.Body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return batch, nil
	}

	if err := json.Unmarshal(body, &batch.Notifications); err != nil {
		return nil, fmt.Errorf("decode change notifications: %w", err)
	}

	c.logger.Debug().
		Int("count", len(batch.Notifications)).
		Int("remaining", batch.Remaining).
		Msg("Consumed change notifications")

	return batch, nil
}
