// Package ingest parses vendor trace files into canonical sessions.
//
// One adapter per agent. Adapters are tolerant: a malformed line becomes a
// session warning and is skipped; an Error is returned only when no turn can
// be recovered at all. Adapters stream line by line and check for
// cancellation at per-line granularity, so a cancelled parse never leaves a
// partial session visible.
package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/0xKoda/tracekit/internal/model"
	"github.com/0xKoda/tracekit/internal/pricing"
)

// ErrorKind classifies why a session could not be ingested.
type ErrorKind string

const (
	ErrFileUnreadable ErrorKind = "file_unreadable"
	ErrCorruptJSON    ErrorKind = "corrupt_json"
	ErrSchemaMismatch ErrorKind = "schema_mismatch"
	ErrEmptySession   ErrorKind = "empty_session"
	ErrCancelled      ErrorKind = "cancelled"
)

// Error is the structural ingest failure for one session file. Per-line
// problems never surface here; they are recorded as session warnings.
type Error struct {
	Kind   ErrorKind
	Path   string
	Line   int    // 1-based, set for CorruptJSON and SchemaMismatch
	Reason string // set for SchemaMismatch
	Err    error  // underlying cause, set for FileUnreadable
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrFileUnreadable:
		return fmt.Sprintf("%s: unreadable: %v", e.Path, e.Err)
	case ErrCorruptJSON:
		return fmt.Sprintf("%s:%d: corrupt json", e.Path, e.Line)
	case ErrSchemaMismatch:
		return fmt.Sprintf("%s:%d: schema mismatch: %s", e.Path, e.Line, e.Reason)
	case ErrEmptySession:
		return fmt.Sprintf("%s: no turns recovered", e.Path)
	case ErrCancelled:
		return fmt.Sprintf("%s: cancelled", e.Path)
	}
	return fmt.Sprintf("%s: ingest failed", e.Path)
}

func (e *Error) Unwrap() error { return e.Err }

func errUnreadable(path string, err error) *Error {
	return &Error{Kind: ErrFileUnreadable, Path: path, Err: err}
}

func errCorrupt(path string, line int) *Error {
	return &Error{Kind: ErrCorruptJSON, Path: path, Line: line}
}

func errSchema(path string, line int, reason string) *Error {
	return &Error{Kind: ErrSchemaMismatch, Path: path, Line: line, Reason: reason}
}

func errEmpty(path string) *Error {
	return &Error{Kind: ErrEmptySession, Path: path}
}

func errCancelled(path string) *Error {
	return &Error{Kind: ErrCancelled, Path: path}
}

// Parser turns trace files into canonical sessions. It is safe for
// concurrent use; the catalog is the only shared state and is read-only.
type Parser struct {
	catalog *pricing.Catalog
}

// NewParser returns a parser that prices usage against the given catalog.
func NewParser(catalog *pricing.Catalog) *Parser {
	return &Parser{catalog: catalog}
}

// Parse ingests the session file at path using the agent's adapter.
// Errors are always *Error values.
func (p *Parser) Parse(ctx context.Context, agent model.Agent, path string) (*model.Session, error) {
	switch agent {
	case model.AgentClaude:
		return p.parseClaude(ctx, path)
	case model.AgentOpenCode:
		return p.parseOpenCode(ctx, path)
	case model.AgentCodex:
		return p.parseCodex(ctx, path)
	case model.AgentPi:
		return p.parsePi(ctx, path)
	case model.AgentKodo:
		return p.parseKodo(ctx, path)
	}
	return nil, errSchema(path, 0, fmt.Sprintf("unsupported agent %q", agent))
}

// Scanner buffer sizes. Trace lines routinely exceed bufio's 64K default;
// 2 MiB covers the largest tool results seen in the wild.
const (
	scanBufInitial = 256 * 1024
	scanBufMax     = 2 * 1024 * 1024
)

// forEachLine streams a file line by line. fn receives the 1-based line
// number and the trimmed raw bytes; blank lines are skipped. Cancellation is
// checked before each line.
func forEachLine(ctx context.Context, path string, fn func(line int, data []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errUnreadable(path, err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, scanBufInitial), scanBufMax)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if ctx.Err() != nil {
			return errCancelled(path)
		}
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}
		if err := fn(lineNo, data); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errUnreadable(path, err)
	}
	return nil
}

// metaPayload bounds the forensic payload kept on Meta events. Lines at or
// under the preview cap are retained verbatim; larger ones are stored as a
// truncated JSON string so the session still marshals cleanly.
func metaPayload(data []byte) json.RawMessage {
	if len(data) <= model.MaxPreviewBytes {
		return json.RawMessage(bytes.Clone(data))
	}
	quoted, err := json.Marshal(model.TruncatePreview(string(data)))
	if err != nil {
		return json.RawMessage(`""`)
	}
	return json.RawMessage(quoted)
}
