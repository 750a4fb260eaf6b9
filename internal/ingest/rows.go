package ingest

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/TogetherCrew/farcaster/internal/neynar"
	"github.com/TogetherCrew/farcaster/internal/resolve"
	"github.com/TogetherCrew/farcaster/internal/snapshot"
)

// batch is one tabular entity or edge set, ready for CSV staging.
type batch struct {
	entity string
	header []string
	rows   [][]string
}

// SanitizeText strips control characters, quotes and backslashes so a
// value cannot break the staged CSV or the statement loading it.
func SanitizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '"' || r == '\'' || r == '`' || r == '\\':
		case unicode.IsControl(r):
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// channelBatch collects every channel seen anywhere in the snapshot,
// deduplicated by channel id.
func channelBatch(snap *snapshot.Snapshot) batch {
	b := batch{entity: "channels", header: []string{"id", "url", "name", "description"}}
	seen := make(map[string]bool)

	add := func(ch *neynar.Channel) {
		if ch == nil || ch.ID == "" || seen[ch.ID] {
			return
		}
		seen[ch.ID] = true
		b.rows = append(b.rows, []string{
			ch.ID,
			ch.URL,
			SanitizeText(ch.Name),
			SanitizeText(ch.Description),
		})
	}

	for _, data := range snap.Channels {
		add(data.Metadata)
		for _, member := range data.Members {
			ch := member.Channel
			add(&ch)
		}
		for _, channels := range data.MemberChannels {
			for i := range channels {
				add(&channels[i])
			}
		}
	}
	return b
}

// userBatch unions members, followers and cast authors, deduplicated by
// fid. The richer profile wins when the same fid appears twice.
func userBatch(snap *snapshot.Snapshot) batch {
	b := batch{entity: "users", header: []string{"fid", "username", "display_name", "bio", "power_badge", "verified_accounts"}}
	byFid := make(map[int64]neynar.User)
	var order []int64

	add := func(u neynar.User) {
		if u.Fid == 0 {
			return
		}
		existing, ok := byFid[u.Fid]
		if !ok {
			byFid[u.Fid] = u
			order = append(order, u.Fid)
			return
		}
		if existing.Username == "" && u.Username != "" {
			byFid[u.Fid] = u
		}
	}

	for _, data := range snap.Channels {
		for _, member := range data.Members {
			add(member.User)
		}
		for _, follower := range data.Followers {
			add(follower)
		}
		for _, cast := range data.Casts {
			add(cast.Author)
		}
	}

	for _, fid := range order {
		u := byFid[fid]
		b.rows = append(b.rows, []string{
			resolve.CanonicalFid(fid),
			SanitizeText(u.Username),
			SanitizeText(u.DisplayName),
			SanitizeText(u.Profile.Bio.Text),
			fmt.Sprintf("%t", u.PowerBadge),
			verifiedAccounts(u),
		})
	}
	return b
}

func verifiedAccounts(u neynar.User) string {
	var parts []string
	for _, acct := range u.VerifiedAccounts {
		parts = append(parts, SanitizeText(acct.Platform+":"+acct.Username))
	}
	return strings.Join(parts, ",")
}

// walletBatch pairs each user with their custody wallet.
func walletBatch(snap *snapshot.Snapshot) batch {
	b := batch{entity: "wallets", header: []string{"fid", "custody_address"}}
	seen := make(map[string]bool)

	add := func(u neynar.User) {
		addr := resolve.CanonicalHash(u.CustodyAddress)
		if u.Fid == 0 || addr == "" {
			return
		}
		key := resolve.CanonicalFid(u.Fid) + "|" + addr
		if seen[key] {
			return
		}
		seen[key] = true
		b.rows = append(b.rows, []string{resolve.CanonicalFid(u.Fid), addr})
	}

	for _, data := range snap.Channels {
		for _, member := range data.Members {
			add(member.User)
		}
		for _, follower := range data.Followers {
			add(follower)
		}
		for _, cast := range data.Casts {
			add(cast.Author)
		}
	}
	return b
}

// castBatch flattens the cast set, deduplicated by hash.
func castBatch(snap *snapshot.Snapshot) batch {
	b := batch{entity: "casts", header: []string{"hash", "author_fid", "thread_hash", "parent_hash", "text", "timestamp"}}
	seen := make(map[string]bool)

	for _, data := range snap.Channels {
		for _, cast := range data.Casts {
			hash := resolve.CanonicalHash(cast.Hash)
			if hash == "" || seen[hash] {
				continue
			}
			seen[hash] = true
			b.rows = append(b.rows, []string{
				hash,
				resolve.CanonicalFid(cast.Author.Fid),
				resolve.CanonicalHash(cast.ThreadHash),
				resolve.CanonicalHash(cast.ParentHash),
				SanitizeText(cast.Text),
				cast.Timestamp.UTC().Format(time.RFC3339),
			})
		}
	}
	return b
}

// memberBatch links member fids to their channel.
func memberBatch(snap *snapshot.Snapshot) batch {
	b := batch{entity: "channel_members", header: []string{"fid", "channel"}}
	for channelID, data := range snap.Channels {
		for _, member := range data.Members {
			if member.User.Fid == 0 {
				continue
			}
			ch := member.Channel.ID
			if ch == "" {
				ch = channelID
			}
			b.rows = append(b.rows, []string{resolve.CanonicalFid(member.User.Fid), ch})
		}
	}
	return b
}

// moderatorBatch explodes each channel's moderator fid list.
func moderatorBatch(snap *snapshot.Snapshot) batch {
	b := batch{entity: "channel_moderators", header: []string{"fid", "channel"}}
	for _, data := range snap.Channels {
		if data.Metadata == nil || data.Metadata.ID == "" {
			continue
		}
		for _, fid := range data.Metadata.ModeratorFids {
			if fid == 0 {
				continue
			}
			b.rows = append(b.rows, []string{resolve.CanonicalFid(fid), data.Metadata.ID})
		}
	}
	return b
}

// channelFollowerBatch links follower fids to the channel they follow.
func channelFollowerBatch(snap *snapshot.Snapshot) batch {
	b := batch{entity: "channel_followers", header: []string{"fid", "channel"}}
	for channelID, data := range snap.Channels {
		for _, follower := range data.Followers {
			if follower.Fid == 0 {
				continue
			}
			b.rows = append(b.rows, []string{resolve.CanonicalFid(follower.Fid), channelID})
		}
	}
	return b
}

// edgeBatch renders resolved edges into a uniform tabular shape.
func edgeBatch(entity string, edges []resolve.Edge) batch {
	b := batch{entity: entity, header: []string{"source", "target", "target_hash", "timestamp"}}
	for _, e := range edges {
		b.rows = append(b.rows, []string{
			e.Source,
			e.Target,
			e.TargetHash,
			fmt.Sprintf("%d", e.Timestamp),
		})
	}
	return b
}
