package game

import (
	"time"
)

const (
	InitialPoints    = 1000
	DefaultWagerCost = 100
	MinWagerCost     = 10
	MaxWagerCost     = 1000
	DefaultUndoGrace = 10 * time.Second
	DefaultRoomTTL   = 24 * time.Hour
)

type RoomStatus string

const (
	RoomWaiting  RoomStatus = "waiting"
	RoomActive   RoomStatus = "active"
	RoomFinished RoomStatus = "finished"
)

type BetStatus string

const (
	BetPending  BetStatus = "pending"
	BetOpen     BetStatus = "open"
	BetLocked   BetStatus = "locked"
	BetResolved BetStatus = "resolved"
)

// Room is one group session, identified by its short code.
type Room struct {
	Code              string     `json:"code"`
	EventTemplate     string     `json:"eventTemplate"`
	EventName         string     `json:"eventName,omitempty"`
	Status            RoomStatus `json:"status"`
	HostID            string     `json:"hostId"`
	AutomationEnabled bool       `json:"automationEnabled"`
	CreatedAt         time.Time  `json:"createdAt"`
	ExpiresAt         time.Time  `json:"expiresAt"`
	Version           int64      `json:"version"`
}

func (r *Room) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Participant is a user's membership in one room. Points are only changed
// by wager placement and settlement.
type Participant struct {
	UserID   string    `json:"userId"`
	RoomCode string    `json:"roomCode"`
	Nickname string    `json:"nickname"`
	Points   int       `json:"points"`
	IsHost   bool      `json:"isHost"`
	JoinedAt time.Time `json:"joinedAt"`
	Version  int64     `json:"version"`
}

type Bet struct {
	ID              string     `json:"betId"`
	RoomCode        string     `json:"roomCode"`
	Question        string     `json:"question"`
	Options         []string   `json:"options"`
	Origin          BetOrigin  `json:"origin"`
	Status          BetStatus  `json:"status"`
	WagerCost       int        `json:"wagerCost"`
	TimerSeconds    int        `json:"timerSeconds"`
	OpenPatterns    []string   `json:"openPatterns,omitempty"`
	ResolvePatterns []string   `json:"resolvePatterns,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	OpenedAt        *time.Time `json:"openedAt,omitempty"`
	LockedAt        *time.Time `json:"lockedAt,omitempty"`
	ResolvedAt      *time.Time `json:"resolvedAt,omitempty"`
	// WinningOption is empty until the bet is resolved.
	WinningOption string     `json:"winningOption,omitempty"`
	CanUndoUntil  *time.Time `json:"canUndoUntil,omitempty"`
	Version       int64      `json:"version"`
}

// Wager is a participant's commitment to one bet. PointsWon stays nil
// until the bet resolves.
type Wager struct {
	BetID          string    `json:"betId"`
	UserID         string    `json:"userId"`
	RoomCode       string    `json:"roomCode"`
	SelectedOption string    `json:"selectedOption"`
	PlacedAt       time.Time `json:"placedAt"`
	PointsWon      *int      `json:"pointsWon"`
	Version        int64     `json:"version"`
}

type TranscriptEntry struct {
	ID        string    `json:"entryId"`
	RoomCode  string    `json:"roomCode"`
	Text      string    `json:"text"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

type LeaderboardEntry struct {
	UserID   string `json:"userId"`
	Nickname string `json:"nickname"`
	Points   int    `json:"points"`
	Rank     int    `json:"rank"`
	IsHost   bool   `json:"isHost"`
}
