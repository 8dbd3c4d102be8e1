package detect

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
)

// transientKeys are argument fields that legitimately differ between a call
// and its retry without changing what the call does.
var transientKeys = map[string]struct{}{
	"timestamp":  {},
	"ts":         {},
	"time":       {},
	"request_id": {},
	"requestId":  {},
	"nonce":      {},
}

// canonicalForm renders argument JSON with sorted keys and no insignificant
// whitespace. stripTransient additionally drops transient fields at every
// object level. Invalid JSON canonicalizes to its trimmed raw text, so the
// comparison still works on malformed vendor data.
func canonicalForm(raw json.RawMessage, stripTransient bool) string {
	if len(raw) == 0 {
		return ""
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return string(bytes.TrimSpace(raw))
	}
	if stripTransient {
		v = withoutTransient(v)
	}
	var sb strings.Builder
	writeCanonical(&sb, v)
	return sb.String()
}

func withoutTransient(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if _, drop := transientKeys[k]; drop {
				continue
			}
			out[k] = withoutTransient(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = withoutTransient(val)
		}
		return out
	}
	return v
}

func writeCanonical(sb *strings.Builder, v any) {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeJSONString(sb, k)
			sb.WriteByte(':')
			writeCanonical(sb, t[k])
		}
		sb.WriteByte('}')
	case []any:
		sb.WriteByte('[')
		for i, val := range t {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeCanonical(sb, val)
		}
		sb.WriteByte(']')
	case string:
		writeJSONString(sb, t)
	case json.Number:
		sb.WriteString(t.String())
	case bool:
		if t {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	default: // nil
		sb.WriteString("null")
	}
}

func writeJSONString(sb *strings.Builder, s string) {
	b, err := json.Marshal(s)
	if err != nil {
		sb.WriteString(`""`)
		return
	}
	sb.Write(b)
}
