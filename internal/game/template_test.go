package game

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestTemplates(t *testing.T) {
	ids := TemplateIDs()
	if len(ids) < 2 {
		t.Fatalf("expected bundled templates, got %v", ids)
	}
	for _, id := range ids {
		tpl, err := LoadTemplate(id)
		if err != nil {
			t.Fatalf("load %s: %v", id, err)
		}
		if tpl.ID != id || len(tpl.Bets) == 0 {
			t.Fatalf("%s: unexpected template %+v", id, tpl)
		}
		for _, spec := range tpl.Specs() {
			if err := spec.Normalize().Validate(); err != nil {
				t.Fatalf("%s: bet %q invalid: %v", id, spec.Question, err)
			}
			if spec.Origin != OriginTemplate || len(spec.ResolvePatterns) == 0 {
				t.Fatalf("%s: bet %q missing template defaults", id, spec.Question)
			}
		}
	}

	for _, id := range []string{"", "nope", "../secret", "oscars-2026.json"} {
		if _, err := LoadTemplate(id); !errors.Is(err, ErrTemplateNotFound) {
			t.Fatalf("%q: expected not found, got %v", id, err)
		}
	}
}

func TestGrammysFallsBackToTemplateTriggers(t *testing.T) {
	tpl, err := LoadTemplate("grammys-2026")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	specs := tpl.Specs()
	// Record of the Year only defines open patterns of its own
	if got := specs[1].ResolvePatterns; len(got) == 0 || got[0] != "and the grammy goes to" {
		t.Fatalf("expected template resolve patterns, got %v", got)
	}
	if got := specs[1].OpenPatterns; len(got) != 1 || got[0] != "record of the year" {
		t.Fatalf("bet open patterns should win, got %v", got)
	}
}

func TestBetSpecValidate(t *testing.T) {
	cases := []struct {
		name string
		spec BetSpec
		ok   bool
	}{
		{"valid", BetSpec{Question: "Q?", Options: []string{"A", "B"}}, true},
		{"blank question", BetSpec{Question: "  ", Options: []string{"A", "B"}}, false},
		{"one option", BetSpec{Question: "Q?", Options: []string{"A"}}, false},
		{"duplicate after trim", BetSpec{Question: "Q?", Options: []string{"A", " A "}}, false},
		{"empty option", BetSpec{Question: "Q?", Options: []string{"A", ""}}, false},
		{"cost too low", BetSpec{Question: "Q?", Options: []string{"A", "B"}, WagerCost: 5}, false},
		{"cost too high", BetSpec{Question: "Q?", Options: []string{"A", "B"}, WagerCost: 1001}, false},
		{"negative timer", BetSpec{Question: "Q?", Options: []string{"A", "B"}, TimerSeconds: -1}, false},
		{"unknown origin", BetSpec{Origin: "ai", Question: "Q?", Options: []string{"A", "B"}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewBet("AB23", tc.spec, t0)
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrInvalidBet) {
				t.Fatalf("expected invalid bet, got %v", err)
			}
		})
	}
}

func TestRoomCodesAndNicknames(t *testing.T) {
	for i := 0; i < 100; i++ {
		if err := ValidateRoomCode(RandomRoomCode()); err != nil {
			t.Fatalf("generated code rejected: %v", err)
		}
	}
	for _, bad := range []string{"", "ABC", "ABCDE", "AB0C", "abcd"} {
		if err := ValidateRoomCode(bad); !errors.Is(err, ErrInvalidRoomCode) {
			t.Fatalf("%q: expected invalid code, got %v", bad, err)
		}
	}
	if err := ValidateNickname("Zoë"); err != nil {
		t.Fatalf("valid nickname rejected: %v", err)
	}
	for _, bad := range []string{"", "   ", strings.Repeat("x", MaxNicknameLength+1)} {
		if err := ValidateNickname(bad); !errors.Is(err, ErrInvalidNickname) {
			t.Fatalf("%q: expected invalid nickname, got %v", bad, err)
		}
	}
}

func TestExportResolution(t *testing.T) {
	file := filepath.Join(t.TempDir(), "nested", "results.txt")
	room := &Room{Code: "AB23", EventTemplate: "custom"}
	bet := &Bet{Question: "Who wins?", WagerCost: 100, WinningOption: "A", ResolvedAt: &t0}
	won, lost := 200, 0
	wagers := []*Wager{
		{UserID: "u1", SelectedOption: "A", PointsWon: &won},
		{UserID: "u2", SelectedOption: "B", PointsWon: &lost},
	}
	ps := []*Participant{
		{UserID: "u1", Nickname: "Alice", Points: 1100},
		{UserID: "u2", Nickname: "Bob", Points: 900},
	}
	for i := 0; i < 2; i++ {
		if err := ExportResolution(room, bet, wagers, ps, file); err != nil {
			t.Fatalf("export: %v", err)
		}
	}
	b, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	out := string(b)
	for _, want := range []string{"Room AB23 (custom)", "Winner: A", "Pot: 200 from 2 wager(s)", "- Alice: A (+200)", "- Bob: B (+0)", "1. Alice: 1100 points"} {
		if !strings.Contains(out, want) {
			t.Fatalf("export missing %q:\n%s", want, out)
		}
	}
	if strings.Count(out, "Winner: A") != 2 {
		t.Fatalf("export should append")
	}
}
