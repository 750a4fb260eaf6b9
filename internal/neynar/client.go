package neynar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const (
	// APIBaseURL is the Neynar v2 REST API.
	APIBaseURL = "https://api.neynar.com/v2/farcaster"
	// HubBaseURL is the Neynar-hosted Farcaster hub.
	HubBaseURL = "https://hub-api.neynar.com/v1"

	hubPageSize = 1000
)

// Client talks to the Neynar API and hub. All calls are synchronous and
// sequential; the per-page delay keeps the client under the per-key rate
// limit without a limiter.
type Client struct {
	httpClient  *http.Client
	apiKey      string
	apiBase     string
	hubBase     string
	logger      *zap.Logger
	maxAttempts int
	baseDelay   time.Duration
	pageDelay   time.Duration
	sleep       func(time.Duration)
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURLs overrides the API and hub base URLs, for tests.
func WithBaseURLs(apiBase, hubBase string) Option {
	return func(c *Client) {
		c.apiBase = apiBase
		c.hubBase = hubBase
	}
}

// WithRetry overrides the per-page retry budget and backoff base.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(c *Client) {
		c.maxAttempts = maxAttempts
		c.baseDelay = baseDelay
	}
}

// WithPageDelay overrides the polite delay between page requests.
func WithPageDelay(d time.Duration) Option {
	return func(c *Client) {
		c.pageDelay = d
	}
}

// NewClient creates a Neynar client
func NewClient(apiKey string, log *zap.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient:  &http.Client{},
		apiKey:      apiKey,
		apiBase:     APIBaseURL,
		hubBase:     HubBaseURL,
		logger:      log,
		maxAttempts: 3,
		baseDelay:   time.Second,
		pageDelay:   100 * time.Millisecond,
		sleep:       time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SearchChannel looks a channel up by name and returns the best match.
func (c *Client) SearchChannel(ctx context.Context, name string) (*Channel, error) {
	params := url.Values{}
	params.Set("q", name)
	params.Set("limit", "20")

	items := c.Paginate(ctx, c.apiBase, "/channel/search", params, PaginateOptions{})
	channels := decodeItems[Channel](items, c.logger, "channel")
	if len(channels) == 0 {
		return nil, nil
	}
	return &channels[0], nil
}

// ChannelMembers returns every member of a channel.
func (c *Client) ChannelMembers(ctx context.Context, channelID string) []Member {
	params := url.Values{}
	params.Set("channel_id", channelID)
	params.Set("limit", "100")

	items := c.Paginate(ctx, c.apiBase, "/channel/member/list", params, PaginateOptions{})
	return decodeItems[Member](items, c.logger, "member")
}

// ChannelFollowers returns every follower of a channel.
func (c *Client) ChannelFollowers(ctx context.Context, channelID string) []User {
	params := url.Values{}
	params.Set("id", channelID)
	params.Set("limit", "1000")

	items := c.Paginate(ctx, c.apiBase, "/channel/followers", params, PaginateOptions{})
	return decodeItems[User](items, c.logger, "follower")
}

// UserChannelCasts returns a user's casts in one channel, bounded below by
// the cutoff.
func (c *Client) UserChannelCasts(ctx context.Context, fid int64, channelID string, cutoff time.Time) []Cast {
	params := url.Values{}
	params.Set("fid", strconv.FormatInt(fid, 10))
	params.Set("channel_id", channelID)
	params.Set("limit", "100")

	items := c.Paginate(ctx, c.apiBase, "/feed/user/casts", params, PaginateOptions{Cutoff: &cutoff})
	return decodeItems[Cast](items, c.logger, "cast")
}

// UserChannels returns the channels a user is active in.
func (c *Client) UserChannels(ctx context.Context, fid int64) []Channel {
	params := url.Values{}
	params.Set("fid", strconv.FormatInt(fid, 10))
	params.Set("limit", "100")

	items := c.Paginate(ctx, c.apiBase, "/user/channels", params, PaginateOptions{})
	return decodeItems[Channel](items, c.logger, "channel")
}

// UserFollowLinks returns a user's outbound follow links from the hub.
func (c *Client) UserFollowLinks(ctx context.Context, fid int64) []LinkMessage {
	params := url.Values{}
	params.Set("fid", strconv.FormatInt(fid, 10))
	params.Set("link_type", "follow")
	params.Set("pageSize", strconv.Itoa(hubPageSize))

	items := c.Paginate(ctx, c.hubBase, "/linksByFid", params, PaginateOptions{CursorParam: "pageToken"})
	return decodeItems[LinkMessage](items, c.logger, "link")
}

// decodeItems unmarshals raw page items into typed values, dropping the
// undecodable ones.
func decodeItems[T any](items []json.RawMessage, log *zap.Logger, kind string) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			log.Debug("dropping undecodable item", zap.String("kind", kind), zap.Error(err))
			continue
		}
		out = append(out, v)
	}
	return out
}
