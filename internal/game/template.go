package game

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// CustomTemplate creates a room without pre-seeded bets.
const CustomTemplate = "custom"

//go:embed templates/*.json
var templateFS embed.FS

type TriggerConfig struct {
	Open    []string `json:"open"`
	Resolve []string `json:"resolve"`
}

type TemplateBet struct {
	Question      string         `json:"question"`
	Options       []string       `json:"options"`
	PointsValue   int            `json:"pointsValue"`
	TimerSeconds  int            `json:"timerSeconds"`
	TriggerConfig *TriggerConfig `json:"triggerConfig,omitempty"`
}

type EventTemplate struct {
	ID            string         `json:"templateId"`
	Name          string         `json:"name"`
	Bets          []TemplateBet  `json:"bets"`
	TriggerConfig *TriggerConfig `json:"triggerConfig,omitempty"`
}

// Specs turns the template's bets into BetSpecs. Template level trigger
// patterns fill in for bets that have none of their own.
func (t *EventTemplate) Specs() []BetSpec {
	out := make([]BetSpec, 0, len(t.Bets))
	for _, b := range t.Bets {
		s := BetSpec{
			Origin:       OriginTemplate,
			Question:     b.Question,
			Options:      b.Options,
			WagerCost:    b.PointsValue,
			TimerSeconds: b.TimerSeconds,
		}
		if b.TriggerConfig != nil {
			s.OpenPatterns = b.TriggerConfig.Open
			s.ResolvePatterns = b.TriggerConfig.Resolve
		}
		if t.TriggerConfig != nil {
			if len(s.OpenPatterns) == 0 {
				s.OpenPatterns = t.TriggerConfig.Open
			}
			if len(s.ResolvePatterns) == 0 {
				s.ResolvePatterns = t.TriggerConfig.Resolve
			}
		}
		out = append(out, s)
	}
	return out
}

func LoadTemplate(id string) (*EventTemplate, error) {
	if id == "" || strings.ContainsAny(id, "/\\.") {
		return nil, fmt.Errorf("%w: %q", ErrTemplateNotFound, id)
	}
	b, err := templateFS.ReadFile(path.Join("templates", id+".json"))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrTemplateNotFound, id)
	}
	var t EventTemplate
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("template %s: %w", id, err)
	}
	return &t, nil
}

// TemplateIDs lists the embedded templates, sorted.
func TemplateIDs() []string {
	entries, err := fs.ReadDir(templateFS, "templates")
	if err != nil {
		return nil
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), ".json"); ok {
			ids = append(ids, name)
		}
	}
	sort.Strings(ids)
	return ids
}
