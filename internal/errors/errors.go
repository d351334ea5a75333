// Package errors provides the kind-tagged error taxonomy of spec §7.
// Every Sari error carries a Code, a human Message, an optional Hint and
// an optional ClientAction so that callers across the gateway boundary
// can always act on a failure instead of merely logging it.
package errors

import (
	"fmt"
	"time"
)

// Code is one of the error kinds named in spec §7. It is a kind, not a
// Go type hierarchy: every Sari error is a single *Error struct tagged
// with one of these.
type Code string

const (
	InvalidArgs             Code = "INVALID_ARGS"
	NotIndexed              Code = "NOT_INDEXED"
	RepoNotFound             Code = "REPO_NOT_FOUND"
	ErrRootOutOfScope        Code = "ERR_ROOT_OUT_OF_SCOPE"
	IOError                  Code = "IO_ERROR"
	DBError                  Code = "DB_ERROR"
	ErrEngineNotInstalled    Code = "ERR_ENGINE_NOT_INSTALLED"
	ErrEngineInit            Code = "ERR_ENGINE_INIT"
	ErrEngineQuery           Code = "ERR_ENGINE_QUERY"
	ErrEngineIndex           Code = "ERR_ENGINE_INDEX"
	ErrEngineUnavailable     Code = "ERR_ENGINE_UNAVAILABLE"
	ErrEngineRebuild         Code = "ERR_ENGINE_REBUILD"
	BudgetExceeded           Code = "BUDGET_EXCEEDED"
	SearchFirstRequired      Code = "SEARCH_FIRST_REQUIRED"
	SearchRefRequired        Code = "SEARCH_REF_REQUIRED"
	CandidateRefRequired     Code = "CANDIDATE_REF_REQUIRED"
	LowRelevance             Code = "LOW_RELEVANCE"
	VersionConflict          Code = "VERSION_CONFLICT"
	SymbolNotFound           Code = "SYMBOL_NOT_FOUND"
	SymbolAmbiguous          Code = "SYMBOL_AMBIGUOUS"
	ErrDaemonSingletonViolation Code = "ERR_DAEMON_SINGLETON_VIOLATION"
	ErrDBWriteNotSingleWriter   Code = "ERR_DB_WRITE_NOT_SINGLE_WRITER"
)

// ClientAction is the concrete next step a caller should take, echoed in
// every structured error per spec §7 "User visibility".
type ClientAction string

const (
	ActionReRead        ClientAction = "re_read"
	ActionFixArgs        ClientAction = "fix_args"
	ActionSearchSymbol   ClientAction = "search_symbol"
	ActionAdjustOldText  ClientAction = "adjust_old_text"
	ActionReindex        ClientAction = "reindex"
	ActionRetry          ClientAction = "retry"
	ActionRunDoctor      ClientAction = "run_doctor"
	ActionNarrowScope    ClientAction = "narrow_scope"
	ActionUsePrecisionRead ClientAction = "use_precision_read"
)

// EngineReason is the reason code carried by ERR_ENGINE_UNAVAILABLE.
type EngineReason string

const (
	EngineNotInstalled  EngineReason = "NOT_INSTALLED"
	EngineIndexMissing  EngineReason = "INDEX_MISSING"
	EngineConfigMismatch EngineReason = "CONFIG_MISMATCH"
	EngineEngineMismatch EngineReason = "ENGINE_MISMATCH"
	EngineRollbackMode  EngineReason = "ROLLBACK_MODE"
)

// Error is the single structured error type returned across the gateway
// boundary. It never panics out; handlers always return one of these
// instead of letting Go errors escape unwrapped.
type Error struct {
	Code         Code
	Message      string
	Hint         string
	ClientAction ClientAction
	EngineReason EngineReason
	Param        string // offending parameter name, for INVALID_ARGS
	Underlying   error
	Timestamp    time.Time
}

// New creates a structured error of the given kind.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message, Timestamp: time.Now()}
}

// Wrap creates a structured error that wraps an underlying Go error.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Underlying: err, Timestamp: time.Now()}
}

// WithHint attaches a human-actionable hint, e.g. "run: sari doctor".
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

// WithClientAction attaches the concrete next step a caller should take.
func (e *Error) WithClientAction(a ClientAction) *Error {
	e.ClientAction = a
	return e
}

// WithEngineReason attaches a reason code for ERR_ENGINE_UNAVAILABLE.
func (e *Error) WithEngineReason(r EngineReason) *Error {
	e.EngineReason = r
	return e
}

// WithParam names the offending parameter for INVALID_ARGS responses.
func (e *Error) WithParam(param string) *Error {
	e.Param = param
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Underlying
}

// Is allows errors.Is(err, errors.New(SomeCode, "")) to match by Code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// AsCode extracts the Code from an error if it is (or wraps) a *Error,
// returning an empty Code and false otherwise.
func AsCode(err error) (Code, bool) {
	var se *Error
	if ok := as(err, &se); ok {
		return se.Code, true
	}
	return "", false
}

func as(err error, target **Error) bool {
	for err != nil {
		if se, ok := err.(*Error); ok {
			*target = se
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
