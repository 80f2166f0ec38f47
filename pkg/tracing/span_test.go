package tracing

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpanTree(t *testing.T) {
	ctx, root := Start(context.Background(), "migrate document")
	require.NotEmpty(t, root.TraceID)
	assert.Same(t, root, FromContext(ctx))

	var wg sync.WaitGroup
	for _, f := range []string{"a.json", "b.json"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, child := Child(ctx, "dump-file")
			child.Set("file", f)
			child.End()
		}()
	}
	wg.Wait()
	root.End()

	children := root.Children()
	require.Len(t, children, 2)
	assert.Equal(t, root.TraceID, children[0].TraceID)

	var buf bytes.Buffer
	root.Log(slog.New(slog.NewJSONHandler(&buf, nil)))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)

	var first, second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "migrate document", first["span"])
	assert.Equal(t, float64(0), first["depth"])
	assert.Equal(t, float64(1), second["depth"])
	assert.Contains(t, []any{"a.json", "b.json"}, second["file"])
}

func TestChildWithoutParentStartsTrace(t *testing.T) {
	ctx, span := Child(context.Background(), "orphan")
	assert.NotEmpty(t, span.TraceID)
	assert.Same(t, span, FromContext(ctx))
	assert.Nil(t, FromContext(context.Background()))
}
