// Package transcript decides, from short caption fragments, whether the
// next bet should open or the current one should resolve. It never touches
// bet state itself.
package transcript

import (
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/ravigummadi/smallbets.live/internal/game"
)

type Action string

const (
	ActionOpenBet    Action = "open_bet"
	ActionResolveBet Action = "resolve_bet"
	ActionIgnored    Action = "ignored"
)

// ReasonNoResolvePattern marks text that announced no winner at all.
const ReasonNoResolvePattern = "no resolve pattern"

type Config struct {
	OpenThreshold    float64
	ResolveThreshold float64
	// ReviewThreshold is the lower bound of the ambiguous band: resolve
	// candidates scoring between it and ResolveThreshold are flagged for
	// the host instead of acted on.
	ReviewThreshold float64
	// PatternThreshold gates resolve evaluation: text must look like an
	// announcement before option extraction runs.
	PatternThreshold float64

	DefaultOpenPatterns    []string
	DefaultResolvePatterns []string
}

func DefaultConfig() Config {
	return Config{
		OpenThreshold:          0.80,
		ResolveThreshold:       0.85,
		ReviewThreshold:        0.60,
		PatternThreshold:       0.60,
		DefaultOpenPatterns:    []string{"and the nominees are", "next category", "envelope please"},
		DefaultResolvePatterns: []string{"and the winner is", "grammy goes to", "oscar goes to"},
	}
}

// Decision is the outcome of one evaluation. Every decision is logged,
// including ignored ones.
type Decision struct {
	Action      Action  `json:"action"`
	Confidence  float64 `json:"confidence"`
	BetID       string  `json:"betId,omitempty"`
	Pattern     string  `json:"pattern,omitempty"`
	Candidate   string  `json:"candidate,omitempty"`
	NeedsReview bool    `json:"needsReview,omitempty"`
	Reason      string  `json:"reason,omitempty"`
}

type Classifier struct {
	cfg Config

	mu      sync.Mutex
	regexps map[string]*regexp.Regexp // nil value: not a valid regexp
}

func New(cfg Config) *Classifier {
	return &Classifier{cfg: cfg, regexps: make(map[string]*regexp.Regexp)}
}

func (c *Classifier) Config() Config { return c.cfg }

func (c *Classifier) compile(pattern string) *regexp.Regexp {
	c.mu.Lock()
	defer c.mu.Unlock()
	if re, ok := c.regexps[pattern]; ok {
		return re
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		re = nil
	}
	c.regexps[pattern] = re
	return re
}

// MatchPatterns scores text against patterns and returns the best score and
// the pattern that produced it. Patterns are tried longest first and a
// regexp hit on the normalized text wins outright.
func (c *Classifier) MatchPatterns(text string, patterns []string) (float64, string) {
	if len(patterns) == 0 {
		return 0, ""
	}
	sorted := make([]string, len(patterns))
	copy(sorted, patterns)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })

	normalized := Normalize(text)
	best, bestPattern := 0.0, ""
	for _, p := range sorted {
		if strings.TrimSpace(p) == "" {
			continue
		}
		if re := c.compile(p); re != nil && re.MatchString(normalized) {
			return 1, p
		}
		if s := Similarity(text, p); s > best {
			best, bestPattern = s, p
		}
	}
	return best, bestPattern
}

// EvaluateOpen scores text against the open patterns of a pending bet.
func (c *Classifier) EvaluateOpen(text string, bet *game.Bet) Decision {
	d := Decision{Action: ActionIgnored, BetID: bet.ID}
	patterns := bet.OpenPatterns
	if len(patterns) == 0 {
		patterns = c.cfg.DefaultOpenPatterns
	}
	score, pattern := c.MatchPatterns(text, patterns)
	d.Confidence = score
	d.Pattern = pattern
	if score >= c.cfg.OpenThreshold {
		d.Action = ActionOpenBet
		return d
	}
	d.Reason = "below open threshold"
	return d
}

// EvaluateResolve checks whether text announces a winner for bet and, if
// so, which option won. The confidence is the mean of the announcement
// pattern score and the option extraction score.
func (c *Classifier) EvaluateResolve(text string, bet *game.Bet) Decision {
	d := Decision{Action: ActionIgnored, BetID: bet.ID}
	patterns := bet.ResolvePatterns
	if len(patterns) == 0 {
		patterns = c.cfg.DefaultResolvePatterns
	}
	patternScore, pattern := c.MatchPatterns(text, patterns)
	if patternScore < c.cfg.PatternThreshold {
		d.Confidence = patternScore
		d.Reason = ReasonNoResolvePattern
		return d
	}

	option, optionScore, ambiguous := ExtractWinner(text, bet.Options)
	d.Pattern = pattern
	d.Candidate = option
	d.Confidence = (patternScore + optionScore) / 2

	switch {
	case ambiguous && d.Confidence >= c.cfg.ReviewThreshold:
		d.NeedsReview = true
		d.Reason = "several options matched"
	case ambiguous:
		d.Reason = "several options matched"
	case d.Confidence >= c.cfg.ResolveThreshold:
		d.Action = ActionResolveBet
	case d.Confidence >= c.cfg.ReviewThreshold:
		d.NeedsReview = true
		d.Reason = "low confidence"
	default:
		d.Reason = "below review threshold"
	}
	return d
}

type candidate struct {
	option string
	part   string
	score  float64
}

// ExtractWinner finds the option that text names. Options like
// "Cowboy Carter - Beyoncé" are also matched by each side of the " - ".
// ambiguous is set when two options tie for the best score and neither is
// a more specific form of the other.
func ExtractWinner(text string, options []string) (option string, score float64, ambiguous bool) {
	if len(options) == 0 {
		return "", 0, false
	}
	cands := make([]candidate, 0, len(options))
	for _, o := range options {
		best := candidate{option: o}
		parts := append([]string{o}, strings.Split(o, " - ")...)
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if s := Similarity(text, part); s > best.score || (s == best.score && len(part) > len(best.part)) {
				best.score, best.part = s, part
			}
		}
		cands = append(cands, best)
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		return len(Normalize(cands[i].part)) > len(Normalize(cands[j].part))
	})

	top := cands[0]
	if len(cands) > 1 && cands[1].score == top.score && top.score > 0 {
		if !strings.Contains(Normalize(top.part), Normalize(cands[1].part)) {
			return top.option, top.score, true
		}
	}
	return top.option, top.score, false
}
