package ingest

import (
	"os"
	"unicode/utf8"

	"github.com/sari-dev/sari/internal/config"
	"github.com/sari-dev/sari/internal/types"
)

// sampleHeadTailBytes bounds the head+tail sample taken for files over
// parse_limit_bytes, keeping the sample itself well under max_doc_bytes.
const sampleHeadTailBytes = 64 * 1024

// LoadedFile is the Loader's output: best-effort content plus the
// parse_status/parse_reason pair the Validator checks.
type LoadedFile struct {
	Content     []byte
	IsBinary    bool
	Sampled     bool
	ParseStatus types.ParseStatus
	ParseReason types.ParseReason
}

// Loader reads file content best-effort: binary detection, decode
// policy, and head+tail sampling for oversized files.
type Loader struct {
	cfg *config.Config
}

func NewLoader(cfg *config.Config) *Loader {
	return &Loader{cfg: cfg}
}

// Load reads item.AbsPath according to §4.4 Loader semantics.
func (l *Loader) Load(item FileItem) (LoadedFile, error) {
	raw, err := os.ReadFile(item.AbsPath)
	if err != nil {
		return LoadedFile{}, err
	}

	if isBinary(item.AbsPath, raw) {
		return LoadedFile{IsBinary: true, ParseStatus: types.ParseSkipped, ParseReason: types.ReasonBinary}, nil
	}

	if len(raw) == 0 {
		return LoadedFile{ParseStatus: types.ParseSkipped, ParseReason: types.ReasonNoParse}, nil
	}

	content := raw
	sampled := false
	if l.cfg.Ingest.MaxFileBytes > 0 && int64(len(raw)) > l.cfg.Ingest.MaxFileBytes {
		content = headTailSample(raw, sampleHeadTailBytes)
		sampled = true
	}

	if l.cfg.Ingest.DecodePolicy == "strong" && !utf8.Valid(content) {
		content = sanitizeInvalidUTF8(content)
	}

	return LoadedFile{
		Content:     content,
		Sampled:     sampled,
		ParseStatus: types.ParseOK,
		ParseReason: types.ReasonNone,
	}, nil
}

// headTailSample keeps the first and last half-budget bytes of content,
// which is enough for symbol extraction at either end of a large file.
func headTailSample(content []byte, budget int) []byte {
	if len(content) <= budget {
		return content
	}
	half := budget / 2
	out := make([]byte, 0, budget)
	out = append(out, content[:half]...)
	out = append(out, content[len(content)-half:]...)
	return out
}

// sanitizeInvalidUTF8 replaces invalid byte sequences with the Unicode
// replacement rune so downstream tokenizers never choke on raw bytes,
// per decode_policy=strong.
func sanitizeInvalidUTF8(content []byte) []byte {
	if utf8.Valid(content) {
		return content
	}
	out := make([]byte, 0, len(content))
	for len(content) > 0 {
		r, size := utf8.DecodeRune(content)
		if r == utf8.RuneError && size == 1 {
			out = append(out, []byte(string(utf8.RuneError))...)
			content = content[1:]
			continue
		}
		out = append(out, content[:size]...)
		content = content[size:]
	}
	return out
}
