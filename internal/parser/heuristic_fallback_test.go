package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sari-dev/sari/internal/types"
)

func TestFallbackParser_MatchesDeclarationLines(t *testing.T) {
	p := NewFallbackParser()

	content := `export class Example {
def helper(self):
	pass

fn compute() -> i32 {
	0
}
`
	res, err := p.Parse(context.Background(), &Context{
		Path:    "example.rs",
		Content: []byte(content),
		DocID:   types.DocID("r1/example.rs"),
	})
	require.NoError(t, err)
	assert.Equal(t, types.ParseOK, res.Status)

	var names []string
	for _, s := range res.Symbols {
		names = append(names, s.Name)
	}
	assert.Contains(t, names, "Example")
	assert.Contains(t, names, "helper")
	assert.Contains(t, names, "compute")
}

func TestFallbackParser_RefusesBinaryContent(t *testing.T) {
	p := NewFallbackParser()
	binary := []byte{0x00, 0x01, 0x02, 'f', 'n', ' ', 'x'}
	assert.False(t, p.CanHandle(&Context{Content: binary}))
}

func TestFallbackParser_NoDeclarationsStillOK(t *testing.T) {
	p := NewFallbackParser()
	res, err := p.Parse(context.Background(), &Context{
		Path:    "notes.txt",
		Content: []byte("just some plain text\nwith no declarations\n"),
		DocID:   types.DocID("r1/notes.txt"),
	})
	require.NoError(t, err)
	assert.Equal(t, types.ParseOK, res.Status)
	assert.Empty(t, res.Symbols)
}
