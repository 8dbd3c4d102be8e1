package ingest

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/0xKoda/tracekit/internal/model"
)

// rawSession carries adapter output into the builder. Adapters fill what
// their format provides; the builder derives the rest.
type rawSession struct {
	id       string
	title    string
	cwd      string
	parentID string
	events   []model.Event
	warnings []model.Warning

	// startedAt/endedAt override the event-derived range when non-zero
	// (OpenCode records session times separately from messages).
	startedAt time.Time
	endedAt   time.Time

	// vendorPriced marks sessions whose usage events carry authoritative
	// recorded costs. The catalog is never consulted for these, even for
	// events missing a cost.
	vendorPriced bool
}

func (r *rawSession) warnf(line int, format string, args ...any) {
	r.warnings = append(r.warnings, model.Warning{Line: line, Message: fmt.Sprintf(format, args...)})
}

// build assembles a canonical session from adapter output: events are
// grouped into turns, usage and cost aggregate upward, and dangling tool
// results become warnings. Returns ErrEmptySession when no turn can be
// recovered.
func (p *Parser) build(agent model.Agent, path string, raw rawSession) (*model.Session, error) {
	turns := groupTurns(raw.events)
	if len(turns) == 0 {
		return nil, errEmpty(path)
	}

	s := &model.Session{
		ID:       raw.id,
		Agent:    agent,
		Path:     path,
		CWD:      raw.cwd,
		Title:    raw.title,
		ParentID: raw.parentID,
		Turns:    turns,
		Warnings: raw.warnings,
	}
	if s.ID == "" {
		s.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	fallbackModel := firstModel(raw.events)
	byModel := make(map[string]model.Usage)
	var modelOrder []string
	catalogPriced := make(map[string]bool)

	for i := range s.Turns {
		t := &s.Turns[i]
		for _, ev := range t.Events {
			if ev.Kind != model.EventUsage || ev.Usage == nil {
				continue
			}
			rec := ev.Usage
			t.Usage.Add(rec.Tokens)

			switch {
			case raw.vendorPriced:
				if rec.CostUSD != nil {
					t.CostUSD += *rec.CostUSD
				}
			case rec.CostUSD != nil:
				t.CostUSD += *rec.CostUSD
			default:
				modelID := rec.ModelID
				if modelID == "" {
					modelID = fallbackModel
				}
				t.CostUSD += p.catalog.Price(modelID, rec.Tokens)
				if modelID != "" {
					catalogPriced[modelID] = true
				}
			}

			if rec.ModelID != "" {
				if _, seen := byModel[rec.ModelID]; !seen {
					modelOrder = append(modelOrder, rec.ModelID)
				}
				u := byModel[rec.ModelID]
				u.Add(rec.Tokens)
				byModel[rec.ModelID] = u
			}
		}
		s.Usage.Add(t.Usage)
		s.CostUSD += t.CostUSD
	}

	if len(byModel) > 0 {
		s.UsageByModel = byModel
		s.Models = modelOrder
		s.Model = dominantModel(byModel, modelOrder)
	}
	for _, id := range modelOrder {
		if !catalogPriced[id] {
			continue
		}
		if _, ok := p.catalog.Match(id); !ok {
			s.Warn(0, "no pricing for model %q, costed as zero", id)
		}
	}

	s.StartedAt, s.EndedAt = timeRange(raw, s.Turns)
	flagDanglingResults(s)
	return s, nil
}

// groupTurns splits a flat event list into turns. A user text message always
// begins a turn; otherwise a turn boundary is any change of turn class.
// Sidechain events form contiguous sidechain turns, split only by explicit
// start markers. Meta events never open a boundary while a turn is in
// progress.
func groupTurns(events []model.Event) []model.Turn {
	var turns []model.Turn
	var cur *model.Turn

	start := func(role model.Role, ev model.Event) {
		turns = append(turns, model.Turn{Role: role, Events: []model.Event{ev}})
		cur = &turns[len(turns)-1]
	}

	for _, ev := range events {
		if ev.Kind == model.EventMeta && ev.Meta != nil && ev.Meta.Kind == model.MetaSidechainStart {
			start(model.RoleSidechain, ev)
			continue
		}
		class := turnClass(ev)
		switch {
		case cur == nil:
			start(class, ev)
		case ev.Kind == model.EventMeta:
			cur.Events = append(cur.Events, ev)
		case class == model.RoleUser && ev.Kind == model.EventText:
			start(class, ev)
		case class != cur.Role:
			start(class, ev)
		default:
			cur.Events = append(cur.Events, ev)
		}
	}

	for i := range turns {
		turns[i].Index = i
		for _, ev := range turns[i].Events {
			if !ev.Timestamp.IsZero() {
				turns[i].Timestamp = ev.Timestamp
				break
			}
		}
	}
	return turns
}

// turnClass maps an event to the turn role it belongs to.
func turnClass(ev model.Event) model.Role {
	if ev.Sidechain {
		return model.RoleSidechain
	}
	switch ev.Kind {
	case model.EventText:
		switch ev.Role {
		case model.RoleUser:
			return model.RoleUser
		case model.RoleSystem:
			return model.RoleSystem
		}
		return model.RoleAssistant
	case model.EventToolCall, model.EventUsage:
		return model.RoleAssistant
	case model.EventToolResult:
		// Results embedded in the assistant message stay in its turn.
		if ev.Role == model.RoleAssistant {
			return model.RoleAssistant
		}
		return model.RoleToolResult
	}
	if ev.Role != "" {
		return ev.Role
	}
	return model.RoleSystem
}

func firstModel(events []model.Event) string {
	for _, ev := range events {
		if ev.Kind == model.EventUsage && ev.Usage != nil && ev.Usage.ModelID != "" {
			return ev.Usage.ModelID
		}
	}
	return ""
}

// dominantModel picks the model with the most total tokens; ties go to the
// model seen first.
func dominantModel(byModel map[string]model.Usage, order []string) string {
	var best string
	var bestTotal int64 = -1
	for _, id := range order {
		if total := byModel[id].Total(); total > bestTotal {
			best, bestTotal = id, total
		}
	}
	return best
}

func timeRange(raw rawSession, turns []model.Turn) (start, end time.Time) {
	start, end = raw.startedAt, raw.endedAt
	for _, t := range turns {
		for _, ev := range t.Events {
			ts := ev.Timestamp
			if ts.IsZero() {
				continue
			}
			if start.IsZero() || ts.Before(start) {
				start = ts
			}
			if end.IsZero() || ts.After(end) {
				end = ts
			}
		}
	}
	return start, end
}

// flagDanglingResults warns about tool results whose call id never appeared
// as a tool call. They stay in the session; detectors treat them as absent.
func flagDanglingResults(s *model.Session) {
	calls := make(map[string]struct{})
	for _, t := range s.Turns {
		for _, ev := range t.Events {
			if ev.Kind == model.EventToolCall && ev.Call != nil && ev.Call.ID != "" {
				calls[ev.Call.ID] = struct{}{}
			}
		}
	}
	for _, t := range s.Turns {
		for _, ev := range t.Events {
			if ev.Kind != model.EventToolResult || ev.Result == nil {
				continue
			}
			if ev.Result.CallID == "" {
				continue
			}
			if _, ok := calls[ev.Result.CallID]; !ok {
				s.Warn(0, "dangling tool result %s in turn %d", ev.Result.CallID, t.Index)
			}
		}
	}
}
