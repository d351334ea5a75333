package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSession_FreshSessionHasNeverSearched(t *testing.T) {
	s := NewSession()
	assert.False(t, s.EverSearched())
	assert.False(t, s.ValidRef("anything"))
}

func TestSession_IssueCandidateRefMarksSearchedAndMintsUniqueRefs(t *testing.T) {
	s := NewSession()
	a := s.IssueCandidateRef()
	b := s.IssueCandidateRef()

	assert.True(t, s.EverSearched())
	assert.NotEqual(t, a, b)
	assert.True(t, s.ValidRef(a))
	assert.True(t, s.ValidRef(b))
	assert.False(t, s.ValidRef("never-issued"))
}

func TestSession_RecordReadAccumulatesIntoSnapshot(t *testing.T) {
	s := NewSession()
	s.RecordRead(10)
	s.RecordRead(5)

	reads, lines := s.Snapshot()
	assert.Equal(t, 2, reads)
	assert.Equal(t, 15, lines)
}

func TestSession_BudgetExhaustedOnEitherLimit(t *testing.T) {
	s := NewSession()
	assert.False(t, s.BudgetExhausted(2, 100))

	s.RecordRead(1)
	s.RecordRead(1)
	assert.True(t, s.BudgetExhausted(2, 100), "reads limit should trip")

	s2 := NewSession()
	s2.RecordRead(100)
	assert.True(t, s2.BudgetExhausted(10, 100), "total lines limit should trip")
}

func TestSession_ZeroLimitsMeanUnlimited(t *testing.T) {
	s := NewSession()
	s.RecordRead(1000)
	assert.False(t, s.BudgetExhausted(0, 0))
}
