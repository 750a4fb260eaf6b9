package resolve

import (
	"testing"
	"time"

	"github.com/TogetherCrew/farcaster/internal/neynar"
	"github.com/TogetherCrew/farcaster/internal/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func fid(v int64) *int64 { return &v }

func snapWith(data *snapshot.ChannelData) *snapshot.Snapshot {
	snap := snapshot.New("farcaster", "test-run", time.Now())
	snap.Channels["test"] = data
	return snap
}

func TestResolveFollowsDropsMalformed(t *testing.T) {
	ts := int64(1000)
	data := &snapshot.ChannelData{
		Follows: []neynar.LinkMessage{
			// Valid.
			{Data: &neynar.LinkData{Fid: fid(1), Timestamp: &ts, LinkBody: &neynar.LinkBody{Type: "follow", TargetFid: fid(2)}}},
			// No link body at all.
			{Data: &neynar.LinkData{Fid: fid(3), Timestamp: &ts}},
			// Link body without a target fid.
			{Data: &neynar.LinkData{Fid: fid(4), Timestamp: &ts, LinkBody: &neynar.LinkBody{Type: "follow"}}},
			// No timestamp.
			{Data: &neynar.LinkData{Fid: fid(5), LinkBody: &neynar.LinkBody{Type: "follow", TargetFid: fid(6)}}},
			// Empty message.
			{},
		},
	}

	result := NewResolver(zaptest.NewLogger(t)).Resolve(snapWith(data))

	require.Len(t, result.Follows, 1)
	assert.Equal(t, "1", result.Follows[0].Source)
	assert.Equal(t, "2", result.Follows[0].Target)
	assert.Equal(t, neynar.HubTime(1000).Unix(), result.Follows[0].Timestamp)

	assert.Equal(t, 4, result.Summary.Dropped[EdgeFollow])
	assert.Equal(t, 1, result.Summary.Resolved[EdgeFollow])
}

func TestResolveReactions(t *testing.T) {
	data := &snapshot.ChannelData{
		Casts: []neynar.Cast{
			{
				Hash:      "0xAB",
				Author:    neynar.User{Fid: 9},
				Timestamp: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
				Reactions: neynar.Reactions{
					Likes:   []neynar.Reaction{{Fid: fid(1)}, {Fname: "no-fid"}},
					Recasts: []neynar.Reaction{{Fid: fid(2)}},
				},
			},
		},
	}

	result := NewResolver(zaptest.NewLogger(t)).Resolve(snapWith(data))

	require.Len(t, result.Likes, 1)
	assert.Equal(t, "1", result.Likes[0].Source)
	assert.Equal(t, "0xab", result.Likes[0].TargetHash, "hashes are canonicalized to lower case")
	assert.Equal(t, 1, result.Summary.Dropped[EdgeLiked])

	require.Len(t, result.Recasts, 1)
	assert.Equal(t, "2", result.Recasts[0].Source)

	require.Len(t, result.Posts, 1)
	assert.Equal(t, "9", result.Posts[0].Source)
	assert.Equal(t, "0xab", result.Posts[0].TargetHash)
}

func TestResolveReplies(t *testing.T) {
	data := &snapshot.ChannelData{
		Casts: []neynar.Cast{
			{Hash: "A", ThreadHash: "T", Author: neynar.User{Fid: 1}},
			{Hash: "B", ThreadHash: "T", ParentHash: "A", Author: neynar.User{Fid: 2}},
			// Parent hash matches nothing in the cast set.
			{Hash: "C", ThreadHash: "T", ParentHash: "Z", Author: neynar.User{Fid: 3}},
			// Parent exists but in a different thread.
			{Hash: "D", ThreadHash: "U", ParentHash: "A", Author: neynar.User{Fid: 4}},
		},
	}

	result := NewResolver(zaptest.NewLogger(t)).Resolve(snapWith(data))

	require.Len(t, result.Replies, 1)
	assert.Equal(t, "b", result.Replies[0].Source)
	assert.Equal(t, "a", result.Replies[0].Target)
	assert.Equal(t, EdgeReplied, result.Replies[0].Type)
}

func TestResolveEmptySnapshot(t *testing.T) {
	result := NewResolver(zaptest.NewLogger(t)).Resolve(snapWith(&snapshot.ChannelData{}))

	assert.Empty(t, result.Follows)
	assert.Empty(t, result.Likes)
	assert.Empty(t, result.Recasts)
	assert.Empty(t, result.Replies)
	assert.Empty(t, result.Posts)
}

func TestCanonicalForms(t *testing.T) {
	assert.Equal(t, "42", CanonicalFid(42))
	assert.Equal(t, "0xdeadbeef", CanonicalHash(" 0xDEADBEEF "))
	assert.Equal(t, "", CanonicalHash(""))
}
