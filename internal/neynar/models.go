package neynar

import "time"

// FarcasterEpoch is the zero point for hub message timestamps. Hub
// timestamps are seconds since this instant, not since the Unix epoch.
var FarcasterEpoch = time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

// Channel is a Farcaster channel as returned by the v2 API
type Channel struct {
	ID            string  `json:"id"`
	URL           string  `json:"url"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	ModeratorFids []int64 `json:"moderator_fids"`
}

// User is a Farcaster user profile
type User struct {
	Fid              int64             `json:"fid"`
	Username         string            `json:"username"`
	DisplayName      string            `json:"display_name"`
	CustodyAddress   string            `json:"custody_address"`
	Profile          Profile           `json:"profile"`
	Verifications    []string          `json:"verifications"`
	VerifiedAccounts []VerifiedAccount `json:"verified_accounts"`
	PowerBadge       bool              `json:"power_badge"`
}

type Profile struct {
	Bio Bio `json:"bio"`
}

type Bio struct {
	Text string `json:"text"`
}

type VerifiedAccount struct {
	Platform string `json:"platform"`
	Username string `json:"username"`
}

// Member links a user to a channel they are a member of
type Member struct {
	User    User    `json:"user"`
	Channel Channel `json:"channel"`
}

// Cast is a single post, with its reaction lists inlined
type Cast struct {
	Hash       string    `json:"hash"`
	ThreadHash string    `json:"thread_hash"`
	ParentHash string    `json:"parent_hash"`
	Author     User      `json:"author"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
	Reactions  Reactions `json:"reactions"`
}

type Reactions struct {
	Likes   []Reaction `json:"likes"`
	Recasts []Reaction `json:"recasts"`
}

// Reaction carries the reacting user's fid. The fid is a pointer so a
// malformed record with no fid can be told apart from fid 0.
type Reaction struct {
	Fid   *int64 `json:"fid"`
	Fname string `json:"fname"`
}

// LinkMessage is a hub follow event. All nested fields are optional on
// the wire; consumers must check for nil before use.
type LinkMessage struct {
	Data *LinkData `json:"data"`
}

type LinkData struct {
	Fid       *int64    `json:"fid"`
	Timestamp *int64    `json:"timestamp"`
	LinkBody  *LinkBody `json:"linkBody"`
}

type LinkBody struct {
	Type      string `json:"type"`
	TargetFid *int64 `json:"targetFid"`
}

// HubTime converts a hub message timestamp to wall-clock time.
func HubTime(ts int64) time.Time {
	return FarcasterEpoch.Add(time.Duration(ts) * time.Second)
}
