package game

import (
	"sort"
)

// Leaderboard ranks participants by points, earlier joiners first on ties.
func Leaderboard(participants []*Participant) []LeaderboardEntry {
	sorted := make([]*Participant, len(participants))
	copy(sorted, participants)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Points != sorted[j].Points {
			return sorted[i].Points > sorted[j].Points
		}
		return sorted[i].JoinedAt.Before(sorted[j].JoinedAt)
	})
	out := make([]LeaderboardEntry, 0, len(sorted))
	for i, p := range sorted {
		out = append(out, LeaderboardEntry{
			UserID:   p.UserID,
			Nickname: p.Nickname,
			Points:   p.Points,
			Rank:     i + 1,
			IsHost:   p.IsHost,
		})
	}
	return out
}
