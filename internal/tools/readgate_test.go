package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sari-dev/sari/internal/config"
	sarierrors "github.com/sari-dev/sari/internal/errors"
)

func newGateDeps(maxReads, maxTotalLines int) *Deps {
	return &Deps{
		Config: &config.Config{Store: config.Store{
			MaxReadsPerSession: maxReads,
			MaxTotalReadLines:  maxTotalLines,
		}},
		Session: NewSession(),
	}
}

// TestGateRead_WithoutPriorSearchRequiresSearchRef reproduces §8 seed
// scenario 6: without any prior search, read without a candidate_ref
// fails SEARCH_REF_REQUIRED.
func TestGateRead_WithoutPriorSearchRequiresSearchRef(t *testing.T) {
	deps := newGateDeps(25, 2500)

	err := gateRead(deps, "", false)
	require.Error(t, err)
	code, ok := sarierrors.AsCode(err)
	require.True(t, ok)
	assert.Equal(t, sarierrors.SearchRefRequired, code)
}

// TestGateRead_ValidCandidateRefFromPriorSearchSucceeds covers scenario
// 6's second step: providing the candidate_ref a prior search minted
// lets the same read through.
func TestGateRead_ValidCandidateRefFromPriorSearchSucceeds(t *testing.T) {
	deps := newGateDeps(25, 2500)
	ref := deps.Session.IssueCandidateRef()

	assert.NoError(t, gateRead(deps, ref, false))
}

// TestGateRead_PrecisionReadBypassesTheRefGate covers scenario 6's
// third step: a precision read (path+start_line+end_line within the
// hard cap) succeeds with no search and no candidate_ref at all.
func TestGateRead_PrecisionReadBypassesTheRefGate(t *testing.T) {
	deps := newGateDeps(25, 2500)
	assert.NoError(t, gateRead(deps, "", true))
}

func TestGateRead_UnrecognizedCandidateRefAfterSearchFailsCandidateRefRequired(t *testing.T) {
	deps := newGateDeps(25, 2500)
	deps.Session.IssueCandidateRef() // marks the session as having searched

	err := gateRead(deps, "cref-bogus", false)
	require.Error(t, err)
	code, ok := sarierrors.AsCode(err)
	require.True(t, ok)
	assert.Equal(t, sarierrors.CandidateRefRequired, code)
}

func TestGateRead_CandidateRefBeforeAnySearchFailsSearchFirstRequired(t *testing.T) {
	deps := newGateDeps(25, 2500)

	err := gateRead(deps, "cref-1", false)
	require.Error(t, err)
	code, ok := sarierrors.AsCode(err)
	require.True(t, ok)
	assert.Equal(t, sarierrors.SearchFirstRequired, code)
}

func TestGateRead_ExhaustedBudgetFailsBudgetExceededEvenWithoutRef(t *testing.T) {
	deps := newGateDeps(2, 2500)
	deps.Session.RecordRead(1)
	deps.Session.RecordRead(1)

	err := gateRead(deps, "", false)
	require.Error(t, err)
	code, ok := sarierrors.AsCode(err)
	require.True(t, ok)
	assert.Equal(t, sarierrors.BudgetExceeded, code)
}

func TestGateRead_ValidRefBypassesAnExhaustedBudget(t *testing.T) {
	deps := newGateDeps(1, 2500)
	ref := deps.Session.IssueCandidateRef()
	deps.Session.RecordRead(1)

	assert.NoError(t, gateRead(deps, ref, false))
}

func TestPrecisionReadRange_RejectsSpansOverTheHardCap(t *testing.T) {
	ok, _, _ := precisionReadRange(map[string]interface{}{"start_line": float64(1), "end_line": float64(300)})
	assert.False(t, ok)

	ok, start, end := precisionReadRange(map[string]interface{}{"start_line": float64(10), "end_line": float64(15)})
	assert.True(t, ok)
	assert.Equal(t, 10, start)
	assert.Equal(t, 15, end)
}

func TestSliceLines_ClampsToContentBounds(t *testing.T) {
	content := "a\nb\nc\nd"
	assert.Equal(t, "b\nc", sliceLines(content, 2, 3))
	assert.Equal(t, "a\nb\nc\nd", sliceLines(content, 1, 100))
}
