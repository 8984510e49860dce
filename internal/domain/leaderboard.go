package domain

import (
	"github.com/shopspring/decimal"
)

// WinningsEntry is a row of the all-time prize money leaderboard
type WinningsEntry struct {
	Rank     int64           `json:"rank"`
	UserID   string          `json:"user_id"`
	Username string          `json:"username,omitempty"`
	Winnings decimal.Decimal `json:"winnings"`
}

// Cache keys shared by the server cache, the change feed and the client store.
const (
	KeyTournaments = "tournaments"
	KeyLeaderboard = "leaderboard"
	KeyAllTxns     = "transactions"
)

// Change feed topics
const (
	TopicTournaments = "tournaments"
	TopicAdmin       = "admin"
)

// TournamentKey is the cache key of a single tournament.
func TournamentKey(id string) string { return "tournament:" + id }

// ResultsKey is the cache key of a tournament's results.
func ResultsKey(id string) string { return "tournament:" + id + ":results" }

// UserKey is the cache key of a profile.
func UserKey(id string) string { return "user:" + id }

// TransactionsKey is the cache key of a user's transaction history.
func TransactionsKey(userID string) string { return "transactions:" + userID }

// NotificationsKey is the cache key of a user's notifications.
func NotificationsKey(userID string) string { return "notifications:" + userID }

// UserTopic is the change feed topic private to one user.
func UserTopic(userID string) string { return "user:" + userID }
