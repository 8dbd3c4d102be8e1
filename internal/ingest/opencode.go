package ingest

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/0xKoda/tracekit/internal/model"
)

// OpenCode persists one session across three sibling trees:
//
//	storage/session/<project>/ses_<id>.json   session record
//	storage/message/<ses_id>/msg_*.json       message envelopes
//	storage/part/<msg_id>/prt_*.json          text, tool and step parts
//
// The adapter is handed the session record and walks the other two. Message
// and part ids sort in creation order, so lexicographic file order is trace
// order. Recorded costs are authoritative for OpenCode; the pricing catalog
// is never consulted, even for messages missing a cost.

type opencodeSession struct {
	ID        string       `json:"id"`
	ParentID  string       `json:"parentID,omitempty"`
	Title     string       `json:"title,omitempty"`
	Directory string       `json:"directory,omitempty"`
	Time      opencodeTime `json:"time"`
}

type opencodeTime struct {
	Created int64 `json:"created"` // ms epoch
	Updated int64 `json:"updated"`
}

type opencodeMessage struct {
	ID      string          `json:"id"`
	Role    string          `json:"role"`
	ModelID string          `json:"modelID,omitempty"`
	Cost    *float64        `json:"cost,omitempty"`
	Tokens  *opencodeTokens `json:"tokens,omitempty"`
	Time    opencodeTime    `json:"time"`
}

type opencodeTokens struct {
	Input     int64 `json:"input"`
	Output    int64 `json:"output"`
	Reasoning int64 `json:"reasoning"`
	Cache     struct {
		Read  int64 `json:"read"`
		Write int64 `json:"write"`
	} `json:"cache"`
}

// tokens folds reasoning into output; both bill at the output rate.
func (t *opencodeTokens) tokens() model.Usage {
	return model.Usage{
		Input:      t.Input,
		Output:     t.Output + t.Reasoning,
		CacheRead:  t.Cache.Read,
		CacheWrite: t.Cache.Write,
	}
}

type opencodePart struct {
	Type   string             `json:"type"`
	Text   string             `json:"text,omitempty"`
	Tool   string             `json:"tool,omitempty"`
	CallID string             `json:"callID,omitempty"`
	State  *opencodeToolState `json:"state,omitempty"`
	Cost   *float64           `json:"cost,omitempty"`
	Tokens *opencodeTokens    `json:"tokens,omitempty"`
}

type opencodeToolState struct {
	Status string          `json:"status"`
	Input  json.RawMessage `json:"input,omitempty"`
	Output string          `json:"output,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func (p *Parser) parseOpenCode(ctx context.Context, path string) (*model.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errUnreadable(path, err)
	}
	var ses opencodeSession
	if err := json.Unmarshal(data, &ses); err != nil {
		return nil, errCorrupt(path, 1)
	}
	if ses.ID == "" {
		return nil, errSchema(path, 1, "missing session id")
	}

	// <root>/storage/session/<project>/ses_X.json -> <root>/storage
	storageRoot := filepath.Dir(filepath.Dir(filepath.Dir(path)))

	raw := rawSession{
		id:           ses.ID,
		title:        ses.Title,
		cwd:          ses.Directory,
		parentID:     ses.ParentID,
		vendorPriced: true,
	}
	if ses.Time.Created > 0 {
		raw.startedAt = time.UnixMilli(ses.Time.Created).UTC()
	}
	if ses.Time.Updated > 0 {
		raw.endedAt = time.UnixMilli(ses.Time.Updated).UTC()
	}

	msgDir := filepath.Join(storageRoot, "message", ses.ID)
	msgFiles, err := sortedJSONFiles(msgDir)
	if err != nil {
		return nil, errEmpty(path)
	}

	for _, name := range msgFiles {
		if ctx.Err() != nil {
			return nil, errCancelled(path)
		}
		msgPath := filepath.Join(msgDir, name)
		msgData, err := os.ReadFile(msgPath)
		if err != nil {
			raw.warnf(0, "skipping unreadable message %s", name)
			continue
		}
		var msg opencodeMessage
		if err := json.Unmarshal(msgData, &msg); err != nil {
			raw.warnf(0, "skipping malformed message %s", name)
			continue
		}
		openCodeMessageEvents(&raw, storageRoot, &msg)
	}

	return p.build(model.AgentOpenCode, path, raw)
}

func openCodeMessageEvents(raw *rawSession, storageRoot string, msg *opencodeMessage) {
	ts := time.Time{}
	if msg.Time.Created > 0 {
		ts = time.UnixMilli(msg.Time.Created).UTC()
	}
	role := model.RoleAssistant
	if msg.Role == "user" {
		role = model.RoleUser
	}

	partDir := filepath.Join(storageRoot, "part", msg.ID)
	partFiles, _ := sortedJSONFiles(partDir)

	var (
		textParts []string
		stepUsage *model.Usage
		stepCost  *float64
	)

	for _, name := range partFiles {
		partData, err := os.ReadFile(filepath.Join(partDir, name))
		if err != nil {
			raw.warnf(0, "skipping unreadable part %s", name)
			continue
		}
		var part opencodePart
		if err := json.Unmarshal(partData, &part); err != nil {
			raw.warnf(0, "skipping malformed part %s", name)
			continue
		}

		switch part.Type {
		case "text":
			if role == model.RoleUser {
				textParts = append(textParts, part.Text)
				continue
			}
			if part.Text != "" {
				raw.events = append(raw.events, model.NewText(model.RoleAssistant, ts, part.Text))
			}

		case "tool":
			if part.State == nil {
				raw.events = append(raw.events, model.NewToolCall(ts, part.CallID, part.Tool, nil))
				continue
			}
			raw.events = append(raw.events, model.NewToolCall(ts, part.CallID, part.Tool, part.State.Input))
			switch part.State.Status {
			case "completed", "error":
				preview := part.State.Output
				if preview == "" {
					preview = part.State.Error
				}
				raw.events = append(raw.events,
					model.NewToolResult(model.RoleAssistant, ts, part.CallID, part.State.Status == "error", preview))
			}

		case "step-finish":
			if part.Tokens != nil {
				if stepUsage == nil {
					stepUsage = &model.Usage{}
				}
				stepUsage.Add(part.Tokens.tokens())
			}
			if part.Cost != nil {
				if stepCost == nil {
					stepCost = new(float64)
				}
				*stepCost += *part.Cost
			}
		}
	}

	if role == model.RoleUser && len(textParts) > 0 {
		raw.events = append(raw.events, model.NewText(model.RoleUser, ts, strings.Join(textParts, "\n")))
	}

	// Step-finish sums are per-step truth; the message envelope is the
	// fallback for older records.
	switch {
	case stepUsage != nil:
		raw.events = append(raw.events, model.NewUsage(ts, *stepUsage, msg.ModelID, stepCost))
	case msg.Tokens != nil:
		raw.events = append(raw.events, model.NewUsage(ts, msg.Tokens.tokens(), msg.ModelID, msg.Cost))
	}
}

func sortedJSONFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
