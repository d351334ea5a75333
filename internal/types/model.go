package types

import "time"

// Size and limit defaults, matching cmd/lci's config constants
// so the Store and Ingest Pipeline share one source of truth.
const (
	DefaultMaxFileBytes  int64 = 10 * 1024 * 1024  // Loader.parse_limit_bytes default
	DefaultMaxDocBytes   int64 = 4 * 1024 * 1024   // TextIndex.max_doc_bytes default
	DefaultMaxTotalSizeMB int64 = 500
	DefaultMaxFileCount        = 10000
	DefaultCommitBatchSize     = 256
	DefaultReaderPoolSize      = 32
	DefaultReaderReloadMs      = 1000
	DefaultGCGrace             = 24 * time.Hour
)

// RootState is the lifecycle state of a watched workspace.
type RootState string

const (
	RootActive  RootState = "active"
	RootPaused  RootState = "paused"
	RootDeleted RootState = "deleted"
)

// Root is a watched workspace.
type Root struct {
	RootID         RootID
	RootPath       string
	RealPath       string
	Label          string
	State          RootState
	FollowSymlinks bool
	ConfigSnapshot string // serialized config.Config active for this root
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ParseStatus is the outcome of attempting to parse a file's body.
type ParseStatus string

const (
	ParseOK      ParseStatus = "ok"
	ParseSkipped ParseStatus = "skipped"
	ParseFailed  ParseStatus = "failed"
)

// ParseReason explains a non-ok ParseStatus (or "none" for ok).
type ParseReason string

const (
	ReasonNone      ParseReason = "none"
	ReasonBinary    ParseReason = "binary"
	ReasonMinified  ParseReason = "minified"
	ReasonTooLarge  ParseReason = "too_large"
	ReasonExcluded  ParseReason = "excluded"
	ReasonNoParse   ParseReason = "no_parse"
	ReasonError     ParseReason = "error"
)

// File is an indexed file row. path = root_id + "/" + rel_path.
type File struct {
	Path         DocID
	RootID       RootID
	RelPath      string
	Repo         string
	MTime        time.Time
	Size         int64
	Content      []byte // optional, may be compressed by Store
	ContentHash  string
	ParseStatus  ParseStatus
	ParseReason  ParseReason
	ASTStatus    ParseStatus
	ASTReason    ParseReason
	IsBinary     bool
	Sampled      bool
	LastSeen     time.Time
	DeletedTS    *time.Time
}

// SymbolKind enumerates the symbol categories the index recognizes.
type SymbolKind string

const (
	KindFunction  SymbolKind = "function"
	KindClass     SymbolKind = "class"
	KindMethod    SymbolKind = "method"
	KindInterface SymbolKind = "interface"
	KindStruct    SymbolKind = "struct"
	KindEnum      SymbolKind = "enum"
	KindModule    SymbolKind = "module"
	KindVariable  SymbolKind = "variable"
	KindOther     SymbolKind = "other"
)

// Symbol is unique by (root_id, path, name, line).
type Symbol struct {
	SymbolID   SymbolID
	RootID     RootID
	Path       DocID
	Name       string
	Line       int
	EndLine    int
	Kind       SymbolKind
	Content    string
	ParentName string
	Qualname   string
	Docstring  string
}

// RelationType enumerates directed edges between symbols.
type RelationType string

const (
	RelCalls      RelationType = "calls"
	RelImplements RelationType = "implements"
	RelInherits   RelationType = "inherits"
	RelImports    RelationType = "imports"
	RelReferences RelationType = "references"
)

// Relation is a directed edge between two symbols.
type Relation struct {
	FromPath     DocID
	FromRootID   RootID
	FromSymbol   string
	FromSymbolID SymbolID
	ToPath       DocID
	ToRootID     RootID
	ToSymbol     string
	ToSymbolID   SymbolID
	RelType      RelationType
	Line         int
	Metadata     map[string]string
}

// Snippet is a user-captured code region, addressable by tag.
type Snippet struct {
	Tag           string
	Path          DocID
	RootID        RootID
	StartLine     int
	EndLine       int
	Content       string
	ContentHash   string
	AnchorBefore  string
	AnchorAfter   string
	Note          string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SnippetVersion is a row in the snippet version-history table.
type SnippetVersion struct {
	Tag       string
	Version   int
	Content   string
	SavedAt   time.Time
}

// Context is a (topic)-unique knowledge record.
type Context struct {
	Topic        string
	Content      string
	Tags         []string
	RelatedFiles []string
	ValidFrom    time.Time
	ValidUntil   *time.Time
	Deprecated   bool
}

// FailedTask is a retry-queue entry keyed by path.
type FailedTask struct {
	Path       DocID
	Attempts   int
	Error      string
	NextRetry  time.Time
	LastFailed time.Time
}

// RetryBackoff returns the backoff duration to apply after attempts
// consecutive failures, per §4.4: 1m -> 5m -> 1h.
func RetryBackoff(attempts int) time.Duration {
	switch {
	case attempts <= 1:
		return time.Minute
	case attempts == 2:
		return 5 * time.Minute
	default:
		return time.Hour
	}
}

// FailedTaskSurfaceThreshold is the attempt count at which doctor
// surfaces an item (§4.4 Retry and failure: "after 3 failures").
const FailedTaskSurfaceThreshold = 3

// EngineState is key/value runtime facts about the TextIndex engine.
type EngineState struct {
	IndexVersion string
	DocCount     int64
	LastCommitTS time.Time
	ConfigHash   string
}
