package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sari-dev/sari/internal/types"
)

const goSample = `package main

func main() {
	helper()
}

func helper() {}

type Widget struct {
	Name string
}

func (w *Widget) Render() string {
	return w.Name
}
`

func TestGoParser_ExtractsFunctionsMethodsAndTypes(t *testing.T) {
	p, err := NewGoParser()
	require.NoError(t, err)

	res, err := p.Parse(context.Background(), &Context{
		Path:    "main.go",
		Content: []byte(goSample),
		DocID:   types.DocID("r1/main.go"),
		RootID:  types.RootID("r1"),
	})
	require.NoError(t, err)
	assert.Equal(t, types.ParseOK, res.Status)

	var names []string
	for _, s := range res.Symbols {
		names = append(names, s.Name)
	}
	assert.Contains(t, names, "main")
	assert.Contains(t, names, "helper")
	assert.Contains(t, names, "Render")
	assert.Contains(t, names, "Widget")
}

func TestGoParser_EmptyFileParsesOK(t *testing.T) {
	p, err := NewGoParser()
	require.NoError(t, err)

	res, err := p.Parse(context.Background(), &Context{
		Path:    "empty.go",
		Content: []byte("package main\n"),
		DocID:   types.DocID("r1/empty.go"),
	})
	require.NoError(t, err)
	assert.Equal(t, types.ParseOK, res.Status)
	assert.Empty(t, res.Symbols)
}
