package ingest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/0xKoda/tracekit/internal/model"
)

// DiscoveredSession locates a session file before any parsing. SessionID is
// guessed from the file name and confirmed at parse time.
type DiscoveredSession struct {
	Agent     model.Agent
	Path      string
	SessionID string
	ModTime   time.Time
	SizeBytes int64
}

// DefaultRoot returns the conventional data directory for an agent.
func DefaultRoot(agent model.Agent) string {
	home, _ := os.UserHomeDir()
	switch agent {
	case model.AgentClaude:
		return filepath.Join(home, ".claude")
	case model.AgentOpenCode:
		return filepath.Join(home, ".local", "share", "opencode")
	case model.AgentCodex:
		return filepath.Join(home, ".codex")
	case model.AgentPi:
		return filepath.Join(home, ".pi")
	case model.AgentKodo:
		return filepath.Join(home, ".kodo")
	}
	return ""
}

// Discover enumerates candidate session files under root (the agent's data
// directory; "" means the default). Files with mtime outside [since, until]
// are skipped when those bounds are non-zero. No file content is read.
// Results are ordered most recent first.
func Discover(agent model.Agent, root string, since, until time.Time) ([]DiscoveredSession, error) {
	if root == "" {
		root = DefaultRoot(agent)
	}

	var (
		dir     string
		keep    func(path string, rel []string) (string, bool)
		pattern string
	)
	switch agent {
	case model.AgentClaude:
		dir = filepath.Join(root, "projects")
		pattern = ".jsonl"
		keep = func(path string, rel []string) (string, bool) {
			// Subagent transcripts fold into their parent at parse time.
			for _, part := range rel {
				if part == "subagents" {
					return "", false
				}
			}
			return stem(path), true
		}
	case model.AgentOpenCode:
		dir = filepath.Join(root, "storage", "session")
		pattern = ".json"
		keep = func(path string, rel []string) (string, bool) {
			name := filepath.Base(path)
			if !strings.HasPrefix(name, "ses_") {
				return "", false
			}
			return stem(path), true
		}
	case model.AgentCodex:
		dir = filepath.Join(root, "sessions")
		pattern = ".jsonl"
		keep = func(path string, rel []string) (string, bool) {
			return codexSessionID(stem(path)), true
		}
	case model.AgentPi:
		dir = filepath.Join(root, "agent", "sessions")
		pattern = ".jsonl"
		keep = func(path string, rel []string) (string, bool) {
			return stem(path), true
		}
	case model.AgentKodo:
		dir = filepath.Join(root, "sessions")
		pattern = ".jsonl"
		keep = func(path string, rel []string) (string, bool) {
			return stem(path), true
		}
	default:
		return nil, fmt.Errorf("unsupported agent %q", agent)
	}

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, nil
	}

	var found []DiscoveredSession
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // intentionally skip unreadable entries
		}
		if d.IsDir() || !strings.HasSuffix(path, pattern) {
			return nil
		}

		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return nil
		}
		id, ok := keep(path, strings.Split(rel, string(filepath.Separator)))
		if !ok {
			return nil
		}

		fi, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}
		mt := fi.ModTime()
		if !since.IsZero() && mt.Before(since) {
			return nil
		}
		if !until.IsZero() && mt.After(until) {
			return nil
		}

		found = append(found, DiscoveredSession{
			Agent:     agent,
			Path:      path,
			SessionID: id,
			ModTime:   mt,
			SizeBytes: fi.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(found, func(i, j int) bool {
		if !found[i].ModTime.Equal(found[j].ModTime) {
			return found[i].ModTime.After(found[j].ModTime)
		}
		return found[i].Path < found[j].Path
	})
	return found, nil
}

// FindByPrefix resolves a session id prefix against discovered sessions.
// An exact id match wins; otherwise the prefix must identify exactly one
// session.
func FindByPrefix(sessions []DiscoveredSession, idPrefix string) (DiscoveredSession, error) {
	if idPrefix == "" {
		return DiscoveredSession{}, fmt.Errorf("empty session id")
	}

	var matches []DiscoveredSession
	for _, s := range sessions {
		if s.SessionID == idPrefix {
			return s, nil
		}
		if strings.HasPrefix(s.SessionID, idPrefix) {
			matches = append(matches, s)
		}
	}
	switch len(matches) {
	case 0:
		return DiscoveredSession{}, fmt.Errorf("no session matches %q", idPrefix)
	case 1:
		return matches[0], nil
	}
	return DiscoveredSession{}, fmt.Errorf("session id %q is ambiguous (%d matches)", idPrefix, len(matches))
}

func stem(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// codexSessionID extracts the UUID tail from rollout file names like
// rollout-2025-08-12T19-33-22-<uuid>. Falls back to the full stem.
func codexSessionID(s string) string {
	if len(s) >= 36 && looksLikeUUID(s[len(s)-36:]) {
		return s[len(s)-36:]
	}
	return s
}

func looksLikeUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	for i, c := range s {
		switch i {
		case 8, 13, 18, 23:
			if c != '-' {
				return false
			}
		default:
			isHex := (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
			if !isHex {
				return false
			}
		}
	}
	return true
}
