// Package snapshot defines the shape of one harvest run's output: a
// single immutable document holding everything fetched for the configured
// channels, keyed by channel id.
package snapshot

import (
	"time"

	"github.com/TogetherCrew/farcaster/internal/neynar"
)

// Snapshot is one complete harvest run
type Snapshot struct {
	Source    string                  `json:"source"`
	RunID     string                  `json:"run_id"`
	StartedAt time.Time               `json:"started_at"`
	Channels  map[string]*ChannelData `json:"channels_data"`
}

// ChannelData is everything harvested for one channel
type ChannelData struct {
	Metadata  *neynar.Channel `json:"metadata"`
	Members   []neynar.Member `json:"members"`
	Followers []neynar.User   `json:"followers"`
	Casts     []neynar.Cast   `json:"casts"`
	// MemberChannels maps a fid (as a decimal string, JSON object keys
	// cannot be numbers) to the other channels that user is active in.
	MemberChannels map[string][]neynar.Channel `json:"member_channels"`
	Follows        []neynar.LinkMessage        `json:"follows"`
}

// New creates an empty snapshot for a run starting now
func New(source, runID string, startedAt time.Time) *Snapshot {
	return &Snapshot{
		Source:    source,
		RunID:     runID,
		StartedAt: startedAt,
		Channels:  make(map[string]*ChannelData),
	}
}
