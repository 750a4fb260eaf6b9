// Package harvest orchestrates one incremental harvest run: for each
// configured channel it collects metadata, members, followers, recent
// casts and per-user context, and assembles everything into a single
// snapshot.
package harvest

import (
	"context"
	"strconv"
	"time"

	"github.com/TogetherCrew/farcaster/internal/neynar"
	"github.com/TogetherCrew/farcaster/internal/snapshot"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Fetcher is the slice of the API client the harvester needs. Fetch
// methods degrade to partial (possibly empty) results instead of failing;
// see the paginator's retry contract.
type Fetcher interface {
	SearchChannel(ctx context.Context, name string) (*neynar.Channel, error)
	ChannelMembers(ctx context.Context, channelID string) []neynar.Member
	ChannelFollowers(ctx context.Context, channelID string) []neynar.User
	UserChannelCasts(ctx context.Context, fid int64, channelID string, cutoff time.Time) []neynar.Cast
	UserChannels(ctx context.Context, fid int64) []neynar.Channel
	UserFollowLinks(ctx context.Context, fid int64) []neynar.LinkMessage
}

// Harvester collects one snapshot per run. Channels are processed one at
// a time; there is no shared state beyond the snapshot being assembled.
type Harvester struct {
	fetcher  Fetcher
	channels []string
	logger   *zap.Logger
	now      func() time.Time
}

// NewHarvester creates a harvester for the configured channels
func NewHarvester(fetcher Fetcher, channels []string, log *zap.Logger) *Harvester {
	return &Harvester{
		fetcher:  fetcher,
		channels: channels,
		logger:   log,
		now:      time.Now,
	}
}

// CutoffTimestamp resolves the lower bound of the harvest window: the
// last-run marker when one exists, otherwise a fixed day-count window
// ending now.
func CutoffTimestamp(marker *time.Time, fallbackDays int, now time.Time) time.Time {
	if marker != nil {
		return *marker
	}
	return now.AddDate(0, 0, -fallbackDays)
}

// Run harvests every configured channel into one snapshot. Sub-fetches
// that degrade leave their slice empty; the run itself always completes.
func (h *Harvester) Run(ctx context.Context, cutoff time.Time) *snapshot.Snapshot {
	startedAt := h.now().UTC()
	snap := snapshot.New("farcaster", uuid.NewString(), startedAt)

	h.logger.Info("starting harvest",
		zap.Strings("channels", h.channels),
		zap.Time("cutoff", cutoff),
	)

	for _, channelID := range h.channels {
		snap.Channels[channelID] = h.harvestChannel(ctx, channelID, cutoff)
	}

	h.logger.Info("harvest complete",
		zap.String("run_id", snap.RunID),
		zap.Int("channels", len(snap.Channels)),
	)
	return snap
}

// harvestChannel collects everything for one channel, sequentially.
func (h *Harvester) harvestChannel(ctx context.Context, channelID string, cutoff time.Time) *snapshot.ChannelData {
	log := h.logger.With(zap.String("channel", channelID))
	data := &snapshot.ChannelData{
		MemberChannels: make(map[string][]neynar.Channel),
	}

	metadata, err := h.fetcher.SearchChannel(ctx, channelID)
	if err != nil {
		log.Error("failed to fetch channel metadata", zap.Error(err))
	}
	data.Metadata = metadata

	data.Members = h.fetcher.ChannelMembers(ctx, channelID)
	log.Info("members fetched", zap.Int("count", len(data.Members)))

	data.Followers = h.fetcher.ChannelFollowers(ctx, channelID)
	log.Info("followers fetched", zap.Int("count", len(data.Followers)))

	for _, fid := range h.channelFids(data) {
		casts := h.fetcher.UserChannelCasts(ctx, fid, channelID, cutoff)
		data.Casts = append(data.Casts, casts...)

		channels := h.fetcher.UserChannels(ctx, fid)
		if len(channels) > 0 {
			data.MemberChannels[strconv.FormatInt(fid, 10)] = channels
		}

		links := h.fetcher.UserFollowLinks(ctx, fid)
		data.Follows = append(data.Follows, links...)
	}

	log.Info("channel harvested",
		zap.Int("casts", len(data.Casts)),
		zap.Int("follows", len(data.Follows)),
	)
	return data
}

// channelFids unions member and follower fids, deduplicated, in first-seen
// order.
func (h *Harvester) channelFids(data *snapshot.ChannelData) []int64 {
	seen := make(map[int64]bool)
	var fids []int64

	add := func(fid int64) {
		if fid == 0 || seen[fid] {
			return
		}
		seen[fid] = true
		fids = append(fids, fid)
	}

	for _, member := range data.Members {
		add(member.User.Fid)
	}
	for _, follower := range data.Followers {
		add(follower.Fid)
	}
	return fids
}
