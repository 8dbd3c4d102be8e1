package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/0xKoda/tracekit/internal/model"
)

// Pi sessions are JSONL, Claude-shaped with renamed keys:
//
//	kind            entry type: user | assistant | tool-call | tool-output | system
//	ts              ms epoch
//	session         session id
//	dir             working directory
//	subtask         sidechain flag
//	msg.text        message text
//	msg.modelId     model id (assistant entries)
//	msg.stats       {in, out, cacheRead, cacheWrite} token counts
//	id, tool, params         tool-call fields
//	callId, failed, output   tool-output fields
type piLine struct {
	Kind    string          `json:"kind"`
	Ts      int64           `json:"ts,omitempty"`
	Session string          `json:"session,omitempty"`
	Dir     string          `json:"dir,omitempty"`
	Subtask bool            `json:"subtask,omitempty"`
	Msg     *piMessage      `json:"msg,omitempty"`
	ID      string          `json:"id,omitempty"`
	Tool    string          `json:"tool,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	CallID  string          `json:"callId,omitempty"`
	Failed  bool            `json:"failed,omitempty"`
	Output  string          `json:"output,omitempty"`
}

type piMessage struct {
	Text    string   `json:"text,omitempty"`
	ModelID string   `json:"modelId,omitempty"`
	Stats   *piStats `json:"stats,omitempty"`
}

type piStats struct {
	In         int64 `json:"in"`
	Out        int64 `json:"out"`
	CacheRead  int64 `json:"cacheRead"`
	CacheWrite int64 `json:"cacheWrite"`
}

func (s *piStats) tokens() model.Usage {
	return model.Usage{Input: s.In, Output: s.Out, CacheRead: s.CacheRead, CacheWrite: s.CacheWrite}
}

func (p *Parser) parsePi(ctx context.Context, path string) (*model.Session, error) {
	raw := rawSession{}
	var valid, recognized, firstBad, firstValid int

	err := forEachLine(ctx, path, func(lineNo int, data []byte) error {
		var line piLine
		if err := json.Unmarshal(data, &line); err != nil {
			if firstBad == 0 {
				firstBad = lineNo
			}
			raw.warnf(lineNo, "skipping malformed line")
			return nil
		}
		valid++
		if firstValid == 0 {
			firstValid = lineNo
		}

		if raw.id == "" && line.Session != "" {
			raw.id = line.Session
		}
		if raw.cwd == "" && line.Dir != "" {
			raw.cwd = line.Dir
		}

		ts := time.Time{}
		if line.Ts > 0 {
			ts = time.UnixMilli(line.Ts).UTC()
		}

		var ev model.Event
		switch line.Kind {
		case "user":
			recognized++
			if line.Msg == nil || line.Msg.Text == "" {
				return nil
			}
			ev = model.NewText(model.RoleUser, ts, line.Msg.Text)

		case "assistant":
			recognized++
			if line.Msg != nil && line.Msg.Text != "" {
				textEv := model.NewText(model.RoleAssistant, ts, line.Msg.Text)
				textEv.Sidechain = line.Subtask
				raw.events = append(raw.events, textEv)
			}
			if line.Msg == nil || line.Msg.Stats == nil {
				return nil
			}
			ev = model.NewUsage(ts, line.Msg.Stats.tokens(), line.Msg.ModelID, nil)

		case "tool-call":
			recognized++
			ev = model.NewToolCall(ts, line.ID, line.Tool, line.Params)

		case "tool-output":
			recognized++
			ev = model.NewToolResult(model.RoleToolResult, ts, line.CallID, line.Failed, line.Output)

		case "system":
			recognized++
			ev = model.NewMeta(model.RoleSystem, ts, "system", metaPayload(data))

		case "":
			raw.warnf(lineNo, "line without kind field")
			return nil

		default:
			// Unknown kinds ride along for forensic inspection but do not
			// count toward schema recognition.
			ev = model.NewMeta(model.RoleSystem, ts, line.Kind, metaPayload(data))
		}

		ev.Sidechain = ev.Sidechain || line.Subtask
		raw.events = append(raw.events, ev)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if valid == 0 {
		if firstBad > 0 {
			return nil, errCorrupt(path, firstBad)
		}
		return nil, errEmpty(path)
	}
	if recognized == 0 {
		return nil, errSchema(path, firstValid, "no pi entries found")
	}
	return p.build(model.AgentPi, path, raw)
}
