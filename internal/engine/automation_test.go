package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/ravigummadi/smallbets.live/internal/game"
	"github.com/ravigummadi/smallbets.live/internal/transcript"
)

func TestAutomationOpensAndResolves(t *testing.T) {
	e, _, pub := newEngine(t, DefaultOptions())
	ctx := context.Background()
	created, err := e.CreateRoom(ctx, CreateRoomRequest{EventTemplate: "oscars-2026", HostNickname: "Host"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	code, host := created.Room.Code, created.Host.UserID
	picture := created.Bets[0]
	guest, err := e.JoinRoom(ctx, code, "guest")
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	res, err := e.IngestTranscript(ctx, code, "And now... Best Picture!", "captions")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.Decision.Action != transcript.ActionIgnored || res.Applied {
		t.Fatalf("automation is off, got %+v", res.Decision)
	}

	if _, err := e.SetAutomation(ctx, code, guest.UserID, true); !errors.Is(err, game.ErrNotHost) {
		t.Fatalf("expected ErrNotHost, got %v", err)
	}
	if _, err := e.SetAutomation(ctx, code, host, true); err != nil {
		t.Fatalf("enable automation: %v", err)
	}

	res, err = e.IngestTranscript(ctx, code, "And now... Best Picture!", "captions")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.Decision.Action != transcript.ActionOpenBet || !res.Applied || res.Decision.BetID != picture.ID {
		t.Fatalf("expected best picture to open, got %+v", res.Decision)
	}

	if _, err := e.PlaceWager(ctx, code, picture.ID, host, "Oppenheimer"); err != nil {
		t.Fatalf("host wager: %v", err)
	}
	if _, err := e.PlaceWager(ctx, code, picture.ID, guest.UserID, "Barbie"); err != nil {
		t.Fatalf("guest wager: %v", err)
	}

	res, err = e.IngestTranscript(ctx, code, "And the Oscar goes to... Oppenheimer!", "")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.Decision.Action != transcript.ActionResolveBet || res.Decision.Candidate != "Oppenheimer" || !res.Applied {
		t.Fatalf("expected resolve to Oppenheimer, got %+v", res.Decision)
	}
	if res.Entry.Source != DefaultSource {
		t.Fatalf("source not defaulted: %q", res.Entry.Source)
	}

	bet, err := e.GetBet(ctx, code, picture.ID)
	if err != nil {
		t.Fatalf("get bet: %v", err)
	}
	if bet.Status != game.BetResolved || bet.WinningOption != "Oppenheimer" || bet.LockedAt == nil {
		t.Fatalf("unexpected bet after automation: %+v", bet)
	}
	lb, err := e.Leaderboard(ctx, code)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if lb[0].UserID != host || lb[0].Points != 1100 || lb[1].Points != 900 {
		t.Fatalf("unexpected standings: %+v", lb)
	}

	records, err := e.AutomationLog(ctx, code, host, 0)
	if err != nil {
		t.Fatalf("automation log: %v", err)
	}
	if len(records) != 2 || records[0].Decision.Action != transcript.ActionResolveBet || records[1].Decision.Action != transcript.ActionOpenBet {
		t.Fatalf("unexpected audit log: %+v", records)
	}
	if _, err := e.AutomationLog(ctx, code, guest.UserID, 0); !errors.Is(err, game.ErrNotHost) {
		t.Fatalf("audit log is host only, got %v", err)
	}

	entries, err := e.Transcript(ctx, code, 2)
	if err != nil {
		t.Fatalf("transcript: %v", err)
	}
	if len(entries) != 2 || entries[0].Text != "And the Oscar goes to... Oppenheimer!" {
		t.Fatalf("unexpected transcript tail: %+v", entries)
	}
	if pub.count(EventAutomation) != 2 {
		t.Fatalf("expected 2 automation events, got %d", pub.count(EventAutomation))
	}
}

func TestAutomationFlagsAmbiguousWinner(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	b := f.bet(t, 100, "Barbie", "Oppenheimer")
	f.open(t, b.ID)
	if _, err := f.e.SetAutomation(ctx, f.code, f.host, true); err != nil {
		t.Fatalf("enable: %v", err)
	}

	res, err := f.e.IngestTranscript(ctx, f.code, "and the winner is barbie oppenheimer", "")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.Decision.Action != transcript.ActionIgnored || !res.Decision.NeedsReview || res.Applied {
		t.Fatalf("expected review flag without action, got %+v", res.Decision)
	}
	bet, _ := f.e.GetBet(ctx, f.code, b.ID)
	if bet.Status != game.BetOpen {
		t.Fatalf("ambiguous text must not change the bet, status %s", bet.Status)
	}
}

func TestAutomationWithNothingPending(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	if _, err := f.e.SetAutomation(ctx, f.code, f.host, true); err != nil {
		t.Fatalf("enable: %v", err)
	}
	res, err := f.e.IngestTranscript(ctx, f.code, "next category", "")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.Decision.Action != transcript.ActionIgnored || res.Decision.Reason != "no pending bet" {
		t.Fatalf("unexpected decision: %+v", res.Decision)
	}
	if _, err := f.e.IngestTranscript(ctx, f.code, "   ", ""); !errors.Is(err, game.ErrEmptyTranscript) {
		t.Fatalf("expected ErrEmptyTranscript, got %v", err)
	}
}

func TestAutomationOpensNextBetWhileOneIsLocked(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	first := f.bet(t, 100, "Barbie", "Oppenheimer")
	second := f.bet(t, 100, "Emma Stone", "Lily Gladstone")
	f.open(t, first.ID)
	f.lock(t, first.ID)
	if _, err := f.e.SetAutomation(ctx, f.code, f.host, true); err != nil {
		t.Fatalf("enable: %v", err)
	}

	res, err := f.e.IngestTranscript(ctx, f.code, "Next category!", "")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.Decision.Action != transcript.ActionOpenBet || res.Decision.BetID != second.ID || !res.Applied {
		t.Fatalf("expected the next bet to open, got %+v", res.Decision)
	}
	bet, _ := f.e.GetBet(ctx, f.code, second.ID)
	if bet.Status != game.BetOpen {
		t.Fatalf("expected open, got %s", bet.Status)
	}

	// the open bet now takes priority; the locked one still resolves by hand
	res, err = f.e.IngestTranscript(ctx, f.code, "next category", "")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.Decision.Action != transcript.ActionIgnored || res.Decision.BetID != second.ID {
		t.Fatalf("expected the open bet to be checked for a winner, got %+v", res.Decision)
	}
	if _, err := f.e.ResolveBet(ctx, f.code, first.ID, f.host, "Barbie", 0); err != nil {
		t.Fatalf("resolve locked bet: %v", err)
	}
}

func TestAutomationKeepsResolveDecisionForLockedBet(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	first := f.bet(t, 100, "Barbie", "Oppenheimer")
	f.bet(t, 100, "A", "B")
	f.open(t, first.ID)
	f.lock(t, first.ID)
	if _, err := f.e.SetAutomation(ctx, f.code, f.host, true); err != nil {
		t.Fatalf("enable: %v", err)
	}

	res, err := f.e.IngestTranscript(ctx, f.code, "welcome back everyone", "")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.Decision.Action != transcript.ActionIgnored || res.Decision.BetID != first.ID ||
		res.Decision.Reason != transcript.ReasonNoResolvePattern {
		t.Fatalf("expected the locked bet's resolve decision, got %+v", res.Decision)
	}
}

func TestAutomationResolveOfOpenBetCountsBothTransitions(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	b := f.bet(t, 100, "Barbie", "Oppenheimer")
	f.open(t, b.ID)
	if _, err := f.e.SetAutomation(ctx, f.code, f.host, true); err != nil {
		t.Fatalf("enable: %v", err)
	}
	before, _ := f.e.GetBet(ctx, f.code, b.ID)

	res, err := f.e.IngestTranscript(ctx, f.code, "And the winner is... Barbie!", "")
	if err != nil || !res.Applied {
		t.Fatalf("expected automation to resolve: %+v %v", res, err)
	}
	after, _ := f.e.GetBet(ctx, f.code, b.ID)
	if after.Status != game.BetResolved || after.Version != before.Version+2 {
		t.Fatalf("expected lock and resolve to bump the version twice: %d -> %d", before.Version, after.Version)
	}
}
