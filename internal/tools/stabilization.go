package tools

// Stabilization is §6's response-envelope `meta.stabilization`: search
// and read responses carry enough of it for a client to know whether it
// is safe to keep going without re-grounding itself via search. Other
// tools' responses do not include it.
type Stabilization struct {
	BudgetState         string                 `json:"budget_state"`
	SuggestedNextAction string                 `json:"suggested_next_action,omitempty"`
	Warnings            []string               `json:"warnings,omitempty"`
	ReasonCodes         []string               `json:"reason_codes,omitempty"`
	MetricsSnapshot     map[string]interface{} `json:"metrics_snapshot,omitempty"`
	NextCalls           []string               `json:"next_calls,omitempty"`
}

// ResponseMeta is the `meta` envelope field that carries a Stabilization
// alongside whatever other per-tool metadata a result already reports.
type ResponseMeta struct {
	Stabilization *Stabilization `json:"stabilization,omitempty"`
}

const (
	budgetStateOK   = "ok"
	budgetStateSoft = "soft_limit"
)

// okStabilization is the common case: nothing to warn about.
func okStabilization(session *Session) *Stabilization {
	reads, lines := session.Snapshot()
	return &Stabilization{
		BudgetState:     budgetStateOK,
		MetricsSnapshot: map[string]interface{}{"reads": reads, "total_read_lines": lines},
	}
}

// softLimitStabilization reports a single read that exceeded
// max_single_read_lines and was truncated to it, per §8's boundary
// behavior.
func softLimitStabilization(session *Session, maxSingleReadLines int) *Stabilization {
	reads, lines := session.Snapshot()
	return &Stabilization{
		BudgetState:         budgetStateSoft,
		SuggestedNextAction: "use_precision_read",
		Warnings:            []string{"SOFT_LIMIT"},
		ReasonCodes:         []string{"SOFT_LIMIT"},
		MetricsSnapshot:     map[string]interface{}{"reads": reads, "total_read_lines": lines, "max_single_read_lines": maxSingleReadLines},
		NextCalls:           []string{"read(mode=file, path, start_line, end_line)"},
	}
}
