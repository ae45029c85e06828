// services/feed_client.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"
)

// FeedAuthor is the upstream identity of a post's author.
type FeedAuthor struct {
	ExternalID string
	Name       string
	AvatarURL  string
}

// FeedItem is one entry of a feed page. Pages only carry the message body
// and timestamp; everything else needs a detail fetch.
type FeedItem struct {
	ExternalID string
	Message    string
	UpdatedAt  time.Time
}

// FeedPage is one page of the event feed. NextCursor is an opaque token;
// empty means the feed is exhausted.
type FeedPage struct {
	Items      []FeedItem
	NextCursor string
}

// PostDetail is the full view of a single post.
type PostDetail struct {
	ExternalID string
	Message    string
	PhotoURL   string
	Likes      int
	PostedAt   time.Time
	Author     FeedAuthor
}

// FeedClient is the capability the reconciler needs from the upstream feed
// API. Transport failures surface as errors; retry policy belongs to the
// scheduled probe cadence, not to the client.
type FeedClient interface {
	FetchFirstPage(ctx context.Context) (*FeedPage, error)
	FetchPage(ctx context.Context, cursor string) (*FeedPage, error)
	FetchPostDetail(ctx context.Context, externalID string) (*PostDetail, error)
}

// GraphFeedClient talks to a Graph-style paginated JSON API: one feed
// endpoint per event, paging.next URLs as cursors, per-post detail lookups.
type GraphFeedClient struct {
	BaseURL     string
	EventID     string
	AccessToken string
	PageLimit   int
	Client      *http.Client
}

func NewGraphFeedClient(baseURL, eventID, accessToken string, pageLimit int) *GraphFeedClient {
	if pageLimit <= 0 {
		pageLimit = 300
	}
	return &GraphFeedClient{
		BaseURL:     baseURL,
		EventID:     eventID,
		AccessToken: accessToken,
		PageLimit:   pageLimit,
		Client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Wire shapes. The upstream encodes the access token into paging URLs
// itself, so cursors are fetched verbatim.
type feedEnvelope struct {
	Data []struct {
		ID          string    `json:"id"`
		Message     string    `json:"message"`
		UpdatedTime time.Time `json:"updated_time"`
	} `json:"data"`
	Paging *struct {
		Next string `json:"next"`
	} `json:"paging"`
}

type postDetailEnvelope struct {
	ID          string    `json:"id"`
	Message     string    `json:"message"`
	FullPicture string    `json:"full_picture"`
	CreatedTime time.Time `json:"created_time"`
	From        struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Picture struct {
			Data struct {
				URL string `json:"url"`
			} `json:"data"`
		} `json:"picture"`
	} `json:"from"`
	Likes *struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	} `json:"likes"`
}

func (c *GraphFeedClient) FetchFirstPage(ctx context.Context) (*FeedPage, error) {
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid feed base URL %q: %w", c.BaseURL, err)
	}
	endpoint := base.JoinPath(c.EventID, "feed")
	q := endpoint.Query()
	q.Set("limit", fmt.Sprintf("%d", c.PageLimit))
	q.Set("access_token", c.AccessToken)
	endpoint.RawQuery = q.Encode()

	return c.fetchPage(ctx, endpoint.String())
}

func (c *GraphFeedClient) FetchPage(ctx context.Context, cursor string) (*FeedPage, error) {
	return c.fetchPage(ctx, cursor)
}

func (c *GraphFeedClient) fetchPage(ctx context.Context, pageURL string) (*FeedPage, error) {
	var envelope feedEnvelope
	if err := c.getJSON(ctx, pageURL, &envelope); err != nil {
		return nil, err
	}

	page := &FeedPage{Items: make([]FeedItem, 0, len(envelope.Data))}
	for _, item := range envelope.Data {
		page.Items = append(page.Items, FeedItem{
			ExternalID: item.ID,
			Message:    item.Message,
			UpdatedAt:  item.UpdatedTime,
		})
	}
	if envelope.Paging != nil {
		page.NextCursor = envelope.Paging.Next
	}
	return page, nil
}

func (c *GraphFeedClient) FetchPostDetail(ctx context.Context, externalID string) (*PostDetail, error) {
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid feed base URL %q: %w", c.BaseURL, err)
	}
	endpoint := base.JoinPath(externalID)
	q := endpoint.Query()
	q.Set("fields", "message,from{name,picture},full_picture,likes,created_time")
	q.Set("access_token", c.AccessToken)
	endpoint.RawQuery = q.Encode()

	var envelope postDetailEnvelope
	if err := c.getJSON(ctx, endpoint.String(), &envelope); err != nil {
		return nil, err
	}

	detail := &PostDetail{
		ExternalID: envelope.ID,
		Message:    envelope.Message,
		PhotoURL:   envelope.FullPicture,
		PostedAt:   envelope.CreatedTime,
		Author: FeedAuthor{
			ExternalID: envelope.From.ID,
			Name:       envelope.From.Name,
			AvatarURL:  envelope.From.Picture.Data.URL,
		},
	}
	if envelope.Likes != nil {
		detail.Likes = len(envelope.Likes.Data)
	}
	return detail, nil
}

func (c *GraphFeedClient) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create feed request: %w", err)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("feed request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		log.Debugf("[FEED] non-200 from upstream: %d %s", resp.StatusCode, string(body))
		return fmt.Errorf("feed returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode feed response: %w", err)
	}
	return nil
}
