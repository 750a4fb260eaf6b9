// Package resolve flattens the nested event records of a snapshot into
// uniform edge records. It is a pure transformation: malformed records
// are dropped and counted, never fatal, and nothing here touches the
// network or a store.
package resolve

import (
	"strconv"
	"strings"

	"github.com/TogetherCrew/farcaster/internal/neynar"
	"github.com/TogetherCrew/farcaster/internal/snapshot"
	"go.uber.org/zap"
)

// Edge kinds emitted by the resolver.
const (
	EdgeFollow   = "FOLLOW"
	EdgeLiked    = "LIKED"
	EdgeRecasted = "RECASTED"
	EdgeReplied  = "REPLIED"
	EdgePosted   = "POSTED"
)

// Edge is one flattened relationship. Source and Target are canonical
// string ids (decimal fid or lowercased hash); TargetHash is set for
// reactions against casts.
type Edge struct {
	Source     string
	Target     string
	TargetHash string
	Timestamp  int64
	Type       string
}

// Summary counts what the resolver produced and what it had to drop.
type Summary struct {
	Resolved map[string]int
	Dropped  map[string]int
}

func newSummary() Summary {
	return Summary{
		Resolved: make(map[string]int),
		Dropped:  make(map[string]int),
	}
}

// Result holds every resolved edge set, per kind.
type Result struct {
	Follows []Edge
	Likes   []Edge
	Recasts []Edge
	Replies []Edge
	Posts   []Edge
	Summary Summary
}

// Resolver flattens snapshots into edge records
type Resolver struct {
	logger *zap.Logger
}

// NewResolver creates a resolver
func NewResolver(log *zap.Logger) *Resolver {
	return &Resolver{logger: log}
}

// Resolve flattens every channel's event records in the snapshot.
func (r *Resolver) Resolve(snap *snapshot.Snapshot) *Result {
	result := &Result{Summary: newSummary()}

	for _, data := range snap.Channels {
		r.resolveFollows(data.Follows, result)
		r.resolveReactions(data.Casts, result)
		r.resolvePosts(data.Casts, result)
		r.resolveReplies(data.Casts, result)
	}

	r.logger.Info("relationships resolved",
		zap.Int("follows", len(result.Follows)),
		zap.Int("likes", len(result.Likes)),
		zap.Int("recasts", len(result.Recasts)),
		zap.Int("replies", len(result.Replies)),
		zap.Int("posts", len(result.Posts)),
		zap.Any("dropped", result.Summary.Dropped),
	)
	return result
}

// resolveFollows flattens hub link messages. A valid follow carries a
// link body with a target fid and a timestamp; anything less is dropped.
func (r *Resolver) resolveFollows(msgs []neynar.LinkMessage, result *Result) {
	for _, msg := range msgs {
		data := msg.Data
		if data == nil || data.Fid == nil || data.Timestamp == nil ||
			data.LinkBody == nil || data.LinkBody.TargetFid == nil {
			result.Summary.Dropped[EdgeFollow]++
			continue
		}
		result.Follows = append(result.Follows, Edge{
			Source:    CanonicalFid(*data.Fid),
			Target:    CanonicalFid(*data.LinkBody.TargetFid),
			Timestamp: neynar.HubTime(*data.Timestamp).Unix(),
			Type:      EdgeFollow,
		})
		result.Summary.Resolved[EdgeFollow]++
	}
}

// resolveReactions flattens each cast's like and recast lists.
func (r *Resolver) resolveReactions(casts []neynar.Cast, result *Result) {
	for _, cast := range casts {
		hash := CanonicalHash(cast.Hash)
		if hash == "" {
			if len(cast.Reactions.Likes) > 0 {
				result.Summary.Dropped[EdgeLiked] += len(cast.Reactions.Likes)
			}
			if len(cast.Reactions.Recasts) > 0 {
				result.Summary.Dropped[EdgeRecasted] += len(cast.Reactions.Recasts)
			}
			continue
		}
		ts := cast.Timestamp.Unix()

		for _, like := range cast.Reactions.Likes {
			if like.Fid == nil {
				result.Summary.Dropped[EdgeLiked]++
				continue
			}
			result.Likes = append(result.Likes, Edge{
				Source:     CanonicalFid(*like.Fid),
				TargetHash: hash,
				Timestamp:  ts,
				Type:       EdgeLiked,
			})
			result.Summary.Resolved[EdgeLiked]++
		}

		for _, recast := range cast.Reactions.Recasts {
			if recast.Fid == nil {
				result.Summary.Dropped[EdgeRecasted]++
				continue
			}
			result.Recasts = append(result.Recasts, Edge{
				Source:     CanonicalFid(*recast.Fid),
				TargetHash: hash,
				Timestamp:  ts,
				Type:       EdgeRecasted,
			})
			result.Summary.Resolved[EdgeRecasted]++
		}
	}
}

// resolvePosts derives authorship edges from the cast set.
func (r *Resolver) resolvePosts(casts []neynar.Cast, result *Result) {
	for _, cast := range casts {
		hash := CanonicalHash(cast.Hash)
		if hash == "" || cast.Author.Fid == 0 {
			result.Summary.Dropped[EdgePosted]++
			continue
		}
		result.Posts = append(result.Posts, Edge{
			Source:     CanonicalFid(cast.Author.Fid),
			TargetHash: hash,
			Timestamp:  cast.Timestamp.Unix(),
			Type:       EdgePosted,
		})
		result.Summary.Resolved[EdgePosted]++
	}
}

// resolveReplies matches each cast's parentHash against an index of the
// cast set keyed by hash. A reply edge requires both casts to share a
// thread; a parentHash with no matching cast produces no edge.
func (r *Resolver) resolveReplies(casts []neynar.Cast, result *Result) {
	byHash := make(map[string]neynar.Cast, len(casts))
	for _, cast := range casts {
		if hash := CanonicalHash(cast.Hash); hash != "" {
			byHash[hash] = cast
		}
	}

	for _, cast := range casts {
		child := CanonicalHash(cast.Hash)
		parent := CanonicalHash(cast.ParentHash)
		if child == "" || parent == "" {
			continue
		}
		parentCast, ok := byHash[parent]
		if !ok || parentCast.ThreadHash != cast.ThreadHash {
			// Dangling parent reference, tolerated.
			continue
		}
		result.Replies = append(result.Replies, Edge{
			Source:    child,
			Target:    parent,
			Timestamp: cast.Timestamp.Unix(),
			Type:      EdgeReplied,
		})
		result.Summary.Resolved[EdgeReplied]++
	}
}

// CanonicalFid renders a fid as its canonical decimal string.
func CanonicalFid(fid int64) string {
	return strconv.FormatInt(fid, 10)
}

// CanonicalHash lowercases a hash or address.
func CanonicalHash(hash string) string {
	return strings.ToLower(strings.TrimSpace(hash))
}
