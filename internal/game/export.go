package game

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ExportResolution appends the outcome of a resolved bet to a text file.
func ExportResolution(room *Room, bet *Bet, wagers []*Wager, participants []*Participant, filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	names := make(map[string]string, len(participants))
	for _, p := range participants {
		names[p.UserID] = p.Nickname
	}
	name := func(id string) string {
		if n, ok := names[id]; ok {
			return n
		}
		return "Unknown"
	}

	var sb strings.Builder
	resolvedAt := time.Now()
	if bet.ResolvedAt != nil {
		resolvedAt = *bet.ResolvedAt
	}
	sb.WriteString(fmt.Sprintf("Room %s (%s) - %s\n", room.Code, room.EventTemplate, resolvedAt.Format("2006-01-02 15:04:05")))
	sb.WriteString(fmt.Sprintf("Bet: %q\n", bet.Question))
	sb.WriteString(strings.Repeat("-", 40) + "\n")
	sb.WriteString(fmt.Sprintf("Winner: %s\n", bet.WinningOption))
	sb.WriteString(fmt.Sprintf("Pot: %d from %d wager(s)\n", Pot(bet, len(wagers)), len(wagers)))

	if len(wagers) > 0 {
		sb.WriteString("\nWagers:\n")
		for _, w := range wagers {
			won := 0
			if w.PointsWon != nil {
				won = *w.PointsWon
			}
			sb.WriteString(fmt.Sprintf("- %s: %s (+%d)\n", name(w.UserID), w.SelectedOption, won))
		}
	}

	if len(participants) > 0 {
		sb.WriteString("\nStandings:\n")
		for _, e := range Leaderboard(participants) {
			sb.WriteString(fmt.Sprintf("%d. %s: %d points\n", e.Rank, e.Nickname, e.Points))
		}
	}
	sb.WriteString("\n")

	if _, err := file.WriteString(sb.String()); err != nil {
		return fmt.Errorf("failed to write to file: %w", err)
	}
	return nil
}
