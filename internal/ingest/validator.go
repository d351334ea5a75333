package ingest

import (
	"github.com/sari-dev/sari/internal/config"
	"github.com/sari-dev/sari/internal/parser"
	"github.com/sari-dev/sari/internal/types"
)

// Validator enforces the ParseResult schema of §4.4: required fields
// present, enums in range, parse_status implications hold.
type Validator struct {
	cfg *config.Config
}

func NewValidator(cfg *config.Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidationResult is the Validator's verdict: either the ParseResult
// passes as-is, or it is demoted to failed with the reasons listed.
type ValidationResult struct {
	Status types.ParseStatus
	Reason types.ParseReason
	Errors []string
}

// Validate checks res against the §4.4 schema. bodyText is the Loader's
// decoded content (empty for skipped/failed files).
func (v *Validator) Validate(res parser.ParseResult, bodyText string) ValidationResult {
	switch res.Status {
	case types.ParseSkipped, types.ParseFailed:
		if bodyText != "" {
			return ValidationResult{
				Status: types.ParseFailed,
				Reason: types.ReasonError,
				Errors: []string{"skipped/failed result carries non-empty body_text"},
			}
		}
		return ValidationResult{Status: res.Status, Reason: res.Reason, Errors: res.Errors}

	case types.ParseOK:
		hasBody := bodyText != ""
		hasSymbols := len(res.Symbols) > 0
		if !hasBody && !hasSymbols && !v.cfg.Ingest.AllowMetadataOnlyOK {
			return ValidationResult{
				Status: types.ParseFailed,
				Reason: types.ReasonError,
				Errors: []string{"parse_status=ok requires body_text or at least one symbol unless allow_metadata_only_ok"},
			}
		}
		return ValidationResult{Status: types.ParseOK, Reason: types.ReasonNone}

	default:
		return ValidationResult{
			Status: types.ParseFailed,
			Reason: types.ReasonError,
			Errors: []string{"unknown parse_status: " + string(res.Status)},
		}
	}
}
