package detect

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/0xKoda/tracekit/internal/model"
)

// callSite joins a tool call with its paired result and the turn that issued
// it. ordinal is the call's position in the assistant-turn sequence, used for
// "same or next assistant turn" windows.
type callSite struct {
	turn    int
	ordinal int
	call    *model.ToolCall
	result  *model.ToolResult

	strictForm  string
	lenientForm string
	formsReady  bool
}

// scan is the per-session view shared by all detectors: assistant turns in
// order and every tool call paired with its result by call id. Results whose
// id never matches a call are ignored here; the builder already warned about
// them.
type scan struct {
	s          *model.Session
	lenient    bool
	calls      []callSite
	assistants []int
}

func newScan(s *model.Session, lenient bool) *scan {
	sc := &scan{s: s, lenient: lenient}

	results := make(map[string]*model.ToolResult)
	for ti := range s.Turns {
		for ei := range s.Turns[ti].Events {
			ev := &s.Turns[ti].Events[ei]
			if ev.Kind != model.EventToolResult || ev.Result == nil || ev.Result.CallID == "" {
				continue
			}
			if _, seen := results[ev.Result.CallID]; !seen {
				results[ev.Result.CallID] = ev.Result
			}
		}
	}

	sc.assistants = s.AssistantTurnIndices()
	for ordinal, ti := range sc.assistants {
		t := &s.Turns[ti]
		for ei := range t.Events {
			ev := &t.Events[ei]
			if ev.Kind != model.EventToolCall || ev.Call == nil {
				continue
			}
			cs := callSite{turn: ti, ordinal: ordinal, call: ev.Call}
			if ev.Call.ID != "" {
				cs.result = results[ev.Call.ID]
			}
			sc.calls = append(sc.calls, cs)
		}
	}
	return sc
}

func (sc *scan) forms(i int) (strict, lenient string) {
	cs := &sc.calls[i]
	if !cs.formsReady {
		cs.strictForm = canonicalForm(cs.call.Arguments, false)
		cs.lenientForm = canonicalForm(cs.call.Arguments, true)
		cs.formsReady = true
	}
	return cs.strictForm, cs.lenientForm
}

// detectRetryLoops flags a failed tool call re-issued with canonically equal
// arguments in the same or the next assistant turn. Exact argument equality
// scores 0.9; equality after dropping transient fields scores 0.7 and only
// applies in lenient mode.
func detectRetryLoops(sc *scan) []model.Finding {
	var findings []model.Finding
	for i := range sc.calls {
		ci := &sc.calls[i]
		if ci.result == nil || !ci.result.IsError {
			continue
		}
		strictI, lenientI := sc.forms(i)

		for j := i + 1; j < len(sc.calls) && sc.calls[j].ordinal <= ci.ordinal+1; j++ {
			cj := &sc.calls[j]
			if cj.call.Name != ci.call.Name {
				continue
			}
			strictJ, lenientJ := sc.forms(j)
			var conf float64
			switch {
			case strictI == strictJ:
				conf = 0.9
			case sc.lenient && lenientI == lenientJ:
				conf = 0.7
			default:
				continue
			}

			evidence := []int{ci.turn}
			if cj.turn != ci.turn {
				evidence = append(evidence, cj.turn)
			}
			findings = append(findings, model.Finding{
				Kind:          model.RetryLoop,
				EvidenceTurns: evidence,
				WastedTokens:  tokensBetween(sc.s, ci.turn, cj.turn),
				Confidence:    conf,
				Message:       fmt.Sprintf("%s retried after an error with identical arguments", ci.call.Name),
			})
			break
		}
	}
	return findings
}

// detectEditCascades flags two or more consecutive failed edit-class calls
// on the same file path. A successful edit on the path ends the streak.
func detectEditCascades(sc *scan) []model.Finding {
	type streak struct {
		turns []int
		count int
	}
	streaks := make(map[string]*streak)
	var order []string
	var findings []model.Finding

	flush := func(path string) {
		st := streaks[path]
		if st == nil {
			return
		}
		delete(streaks, path)
		if st.count < 2 {
			return
		}
		evidence := uniqueInts(st.turns)
		findings = append(findings, model.Finding{
			Kind:          model.EditCascade,
			EvidenceTurns: evidence,
			WastedTokens:  tokensAfterFirst(sc.s, evidence),
			Confidence:    0.85,
			Message:       fmt.Sprintf("%d consecutive failed edits on %s", st.count, path),
		})
	}

	for i := range sc.calls {
		cs := &sc.calls[i]
		if !isWriteTool(cs.call.Name) {
			continue
		}
		path := extractPath(cs.call.Arguments)
		if path == "" {
			continue
		}
		if cs.result != nil && cs.result.IsError {
			st := streaks[path]
			if st == nil {
				st = &streak{}
				streaks[path] = st
				order = append(order, path)
			}
			st.turns = append(st.turns, cs.turn)
			st.count++
		} else {
			flush(path)
		}
	}
	for _, path := range order {
		flush(path)
	}
	return findings
}

// detectToolFanout flags four or more same-name tool calls inside a single
// assistant turn. The waste estimate prices the extra calls at the median
// input of this session's single-call turns for that tool, or a 200-token
// prior when no such turn exists.
func detectToolFanout(sc *scan) []model.Finding {
	s := sc.s
	var findings []model.Finding

	singles := make(map[string][]int64)
	singlesReady := make(map[string]bool)
	singleInputs := func(name string) []int64 {
		if singlesReady[name] {
			return singles[name]
		}
		var vals []int64
		for _, ti := range sc.assistants {
			count := 0
			for _, ev := range s.Turns[ti].Events {
				if ev.Kind == model.EventToolCall && ev.Call != nil && ev.Call.Name == name {
					count++
				}
			}
			if count == 1 {
				vals = append(vals, s.Turns[ti].Usage.Input)
			}
		}
		singles[name] = vals
		singlesReady[name] = true
		return vals
	}

	for _, ti := range sc.assistants {
		counts := make(map[string]int)
		for _, ev := range s.Turns[ti].Events {
			if ev.Kind == model.EventToolCall && ev.Call != nil {
				counts[ev.Call.Name]++
			}
		}
		names := make([]string, 0, len(counts))
		for name := range counts {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			n := counts[name]
			if n < 4 {
				continue
			}
			overhead := 200.0
			if vals := singleInputs(name); len(vals) > 0 {
				overhead = medianInt64(vals)
			}
			conf := 0.6 + 0.05*float64(n-4)
			if conf > 0.9 {
				conf = 0.9
			}
			findings = append(findings, model.Finding{
				Kind:          model.ToolFanout,
				EvidenceTurns: []int{ti},
				WastedTokens:  int64(float64(n-1) * overhead),
				Confidence:    conf,
				Message:       fmt.Sprintf("%d %s calls in one turn could be batched", n, name),
			})
		}
	}
	return findings
}

// detectRedundantRereads flags a file read three or more times with no
// intervening write-class call on it. The repeat reads' turns are the waste.
func detectRedundantRereads(sc *scan) []model.Finding {
	reads := make(map[string][]int)
	var order []string
	var findings []model.Finding

	flush := func(path string) {
		turns := reads[path]
		delete(reads, path)
		if len(turns) < 3 {
			return
		}
		var waste int64
		for _, t := range uniqueInts(turns[1:]) {
			waste += sc.s.Turns[t].Usage.Output
		}
		findings = append(findings, model.Finding{
			Kind:          model.RedundantReread,
			EvidenceTurns: uniqueInts(turns),
			WastedTokens:  waste,
			Confidence:    0.8,
			Message:       fmt.Sprintf("%s read %d times with no intervening write", path, len(turns)),
		})
	}

	for i := range sc.calls {
		cs := &sc.calls[i]
		path := extractPath(cs.call.Arguments)
		if path == "" {
			continue
		}
		switch {
		case isWriteTool(cs.call.Name):
			flush(path)
		case isReadTool(cs.call.Name):
			if _, ok := reads[path]; !ok {
				order = append(order, path)
			}
			reads[path] = append(reads[path], cs.turn)
		}
	}
	for _, path := range order {
		flush(path)
	}
	return findings
}

// detectContextBloat flags assistant turns whose input tokens spike far
// above the session's own distribution: more than 3x the mean and more than
// two standard deviations over it. Fewer than three measurable turns is not
// enough signal.
func detectContextBloat(sc *scan) []model.Finding {
	s := sc.s
	type sample struct {
		turn  int
		input int64
	}
	var samples []sample
	for _, ti := range sc.assistants {
		if in := s.Turns[ti].Usage.Input; in > 0 {
			samples = append(samples, sample{ti, in})
		}
	}
	if len(samples) < 3 {
		return nil
	}

	var sum float64
	for _, sm := range samples {
		sum += float64(sm.input)
	}
	mean := sum / float64(len(samples))
	var sq float64
	for _, sm := range samples {
		d := float64(sm.input) - mean
		sq += d * d
	}
	sigma := math.Sqrt(sq / float64(len(samples)))

	var findings []model.Finding
	for _, sm := range samples {
		in := float64(sm.input)
		// Token counts are integral; the sigma gate gets two tokens of slack.
		if in <= 3*mean || in+2 <= mean+2*sigma {
			continue
		}
		findings = append(findings, model.Finding{
			Kind:          model.ContextBloat,
			EvidenceTurns: []int{sm.turn},
			WastedTokens:  sm.input - int64(math.Ceil(mean)),
			Confidence:    math.Min(1, in/(3*mean)*0.7),
			Message: fmt.Sprintf("turn %d carries %d input tokens, %.1fx the session mean of %.0f",
				sm.turn, sm.input, in/mean, mean),
		})
	}
	return findings
}

// detectErrorRepromptChurn flags three or more consecutive assistant turns
// whose tool results fail with the same error class, meaning the loop is
// burning tokens without new corrective input.
func detectErrorRepromptChurn(sc *scan) []model.Finding {
	s := sc.s

	classesAt := make([]map[string]bool, len(sc.assistants))
	for i := range sc.calls {
		cs := &sc.calls[i]
		if cs.result == nil || !cs.result.IsError {
			continue
		}
		if classesAt[cs.ordinal] == nil {
			classesAt[cs.ordinal] = make(map[string]bool)
		}
		classesAt[cs.ordinal][errorClass(cs.result.ContentPreview)] = true
	}

	chains := make(map[string][]int)
	var findings []model.Finding
	flush := func(class string) {
		turns := chains[class]
		delete(chains, class)
		if len(turns) < 3 {
			return
		}
		var waste int64
		for _, t := range turns[1:] {
			waste += s.Turns[t].Usage.Input + s.Turns[t].Usage.Output
		}
		findings = append(findings, model.Finding{
			Kind:          model.ErrorRepromptChurn,
			EvidenceTurns: turns,
			WastedTokens:  waste,
			Confidence:    0.75,
			Message: fmt.Sprintf("same error repeated %d times (turns %d-%d) without resolution",
				len(turns), turns[0], turns[len(turns)-1]),
		})
	}

	for ord, ti := range sc.assistants {
		present := classesAt[ord]

		open := make([]string, 0, len(chains))
		for class := range chains {
			open = append(open, class)
		}
		sort.Strings(open)
		for _, class := range open {
			if !present[class] {
				flush(class)
			}
		}

		now := make([]string, 0, len(present))
		for class := range present {
			now = append(now, class)
		}
		sort.Strings(now)
		for _, class := range now {
			chains[class] = append(chains[class], ti)
		}
	}

	remaining := make([]string, 0, len(chains))
	for class := range chains {
		remaining = append(remaining, class)
	}
	sort.Strings(remaining)
	for _, class := range remaining {
		flush(class)
	}
	return findings
}

// detectSubagentOverhead flags sessions where sidechain turns account for
// more than 30% of the token volume. Advisory only: delegation may well be
// the right call.
func detectSubagentOverhead(sc *scan) []model.Finding {
	s := sc.s
	total := s.Usage.Input + s.Usage.Output
	if total == 0 {
		return nil
	}

	var side int64
	var sideTurns []int
	for ti := range s.Turns {
		if s.Turns[ti].Role != model.RoleSidechain {
			continue
		}
		side += s.Turns[ti].Usage.Input + s.Turns[ti].Usage.Output
		sideTurns = append(sideTurns, ti)
	}
	if side == 0 || float64(side) <= 0.3*float64(total) {
		return nil
	}

	evidence := sideTurns
	if len(evidence) > 5 {
		evidence = evidence[:5]
	}
	return []model.Finding{{
		Kind:          model.SubagentOverhead,
		EvidenceTurns: evidence,
		WastedTokens:  side,
		Confidence:    0.5,
		Message: fmt.Sprintf("subagent turns consumed %.0f%% of session tokens (%d of %d)",
			100*float64(side)/float64(total), side, total),
	}}
}

var (
	readToolNames  = []string{"read", "cat", "view", "open", "read_file"}
	writeToolNames = []string{"write", "edit", "str_replace", "apply_patch", "replace_in_file", "create_file", "delete_file"}
)

func isReadTool(name string) bool  { return matchesClass(name, readToolNames) }
func isWriteTool(name string) bool { return matchesClass(name, writeToolNames) }

func matchesClass(name string, class []string) bool {
	lower := strings.ToLower(name)
	for _, c := range class {
		if strings.Contains(lower, c) {
			return true
		}
	}
	return false
}

// pathKeys are tried in order before falling back to the first string value
// long enough to be a target.
var pathKeys = []string{"path", "file_path", "pattern", "file", "query", "command", "cmd", "notebook_path"}

func extractPath(args json.RawMessage) string {
	if len(args) == 0 {
		return ""
	}
	var m map[string]any
	if err := json.Unmarshal(args, &m); err != nil {
		return ""
	}
	for _, k := range pathKeys {
		if v, ok := m[k].(string); ok && v != "" {
			return v
		}
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v, ok := m[k].(string); ok && len(v) > 2 {
			return v
		}
	}
	return ""
}

// errorClass reduces an error preview to a comparison key: the first 64
// bytes, lowercased and trimmed, cut on a rune boundary.
func errorClass(preview string) string {
	s := strings.ToLower(strings.TrimSpace(preview))
	if len(s) <= 64 {
		return s
	}
	cut := 64
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func uniqueInts(vals []int) []int {
	out := make([]int, 0, len(vals))
	seen := make(map[int]bool, len(vals))
	for _, v := range vals {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Ints(out)
	return out
}

func medianInt64(vals []int64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := make([]int64, len(vals))
	copy(sorted, vals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	n := len(sorted)
	if n%2 == 1 {
		return float64(sorted[n/2])
	}
	return float64(sorted[n/2-1]+sorted[n/2]) / 2
}

// tokensBetween sums input+output over the turns strictly between a and b.
func tokensBetween(s *model.Session, a, b int) int64 {
	var sum int64
	for t := a + 1; t < b && t < len(s.Turns); t++ {
		sum += s.Turns[t].Usage.Input + s.Turns[t].Usage.Output
	}
	return sum
}

// tokensAfterFirst sums input+output over every turn after the first
// evidence turn through the last, covering the repeated attempts and the
// churn between them.
func tokensAfterFirst(s *model.Session, evidence []int) int64 {
	if len(evidence) < 2 {
		return 0
	}
	var sum int64
	last := evidence[len(evidence)-1]
	for t := evidence[0] + 1; t <= last && t < len(s.Turns); t++ {
		sum += s.Turns[t].Usage.Input + s.Turns[t].Usage.Output
	}
	return sum
}
