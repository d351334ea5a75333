package tools

import (
	"strings"

	sarierrors "github.com/sari-dev/sari/internal/errors"
)

const precisionReadMaxLines = 200

// precisionReadRange reports whether args carries a valid precision-read
// range (start_line/end_line, 1-indexed inclusive, spanning at most
// precisionReadMaxLines lines) and, if so, the range itself.
func precisionReadRange(args map[string]interface{}) (ok bool, start, end int) {
	start = intArg(args, "start_line", 0)
	end = intArg(args, "end_line", 0)
	if start < 1 || end < start {
		return false, 0, 0
	}
	if end-start+1 > precisionReadMaxLines {
		return false, 0, 0
	}
	return true, start, end
}

// gateRead enforces §7/§8's read stabilization gate: a read either comes
// with a candidate_ref minted by a prior search this session, or it is a
// precision-read (path + start_line + end_line, capped at
// precisionReadMaxLines lines). Any other read fails: BUDGET_EXCEEDED
// once the session read budget is exhausted, SEARCH_REF_REQUIRED before
// that.
//
// A valid candidate_ref bypasses the session budget entirely — it is
// proof the caller already paid the cost of narrowing scope via search.
func gateRead(deps *Deps, candidateRef string, precision bool) error {
	if precision {
		return nil
	}

	sess := deps.Session

	if candidateRef != "" {
		if !sess.EverSearched() {
			return sarierrors.New(sarierrors.SearchFirstRequired,
				"a candidate_ref was supplied but no search has been run this session").
				WithParam("candidate_ref").
				WithHint("run search first, then pass the candidate_ref it returns").
				WithClientAction(sarierrors.ActionSearchSymbol)
		}
		if !sess.ValidRef(candidateRef) {
			return sarierrors.New(sarierrors.CandidateRefRequired,
				"candidate_ref is not recognized; it must come from this session's own search response").
				WithParam("candidate_ref").
				WithHint("use the candidate_ref field from a search hit, not a hand-written id").
				WithClientAction(sarierrors.ActionSearchSymbol)
		}
		return nil
	}

	cfg := deps.Config.Store
	if sess.BudgetExhausted(cfg.MaxReadsPerSession, cfg.MaxTotalReadLines) {
		return sarierrors.New(sarierrors.BudgetExceeded,
			"session read budget exhausted; narrow scope with search or use a precision read").
			WithHint("pass a candidate_ref from search, or path+start_line+end_line (<=200 lines)").
			WithClientAction(sarierrors.ActionUsePrecisionRead)
	}

	return sarierrors.New(sarierrors.SearchRefRequired,
		"read requires a candidate_ref from a prior search, or a precision read (path+start_line+end_line, <=200 lines)").
		WithHint("run search first, or pass path+start_line+end_line").
		WithClientAction(sarierrors.ActionSearchSymbol)
}

// sliceLines returns the 1-indexed inclusive [start, end] line range of
// content, clamped to content's actual bounds.
func sliceLines(content string, start, end int) string {
	lines := strings.Split(content, "\n")
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return ""
	}
	return strings.Join(lines[start-1:end], "\n")
}

func countLines(content string) int {
	if content == "" {
		return 0
	}
	return strings.Count(content, "\n") + 1
}
