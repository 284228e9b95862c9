package tools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/BaSui01/agentgraph/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func echoTool(name string) Tool {
	return Tool{
		Schema: types.ToolSchema{
			Name:       name,
			Parameters: json.RawMessage(`{"type":"object","properties":{"query":{"type":"string"}},"required":["query"]}`),
		},
		Func: func(_ context.Context, args json.RawMessage) (json.RawMessage, error) {
			return args, nil
		},
	}
}

func TestRegistry_Register(t *testing.T) {
	tests := []struct {
		name    string
		tool    Tool
		wantErr string
	}{
		{name: "valid", tool: echoTool("search")},
		{name: "missing name", tool: Tool{Func: echoTool("x").Func}, wantErr: "tool name is required"},
		{name: "missing func", tool: Tool{Schema: types.ToolSchema{Name: "nofunc"}}, wantErr: "has no function"},
		{
			name: "invalid schema",
			tool: Tool{
				Schema: types.ToolSchema{Name: "bad", Parameters: json.RawMessage(`{"type": 12}`)},
				Func:   echoTool("bad").Func,
			},
			wantErr: "invalid argument schema",
		},
		{
			name: "schema not json",
			tool: Tool{
				Schema: types.ToolSchema{Name: "bad", Parameters: json.RawMessage(`{nope`)},
				Func:   echoTool("bad").Func,
			},
			wantErr: "invalid argument schema",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry(zap.NewNop())
			err := reg.Register(tt.tool)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.True(t, reg.Has(tt.tool.Schema.Name))
				return
			}
			require.Error(t, err)
			assert.True(t, types.IsCode(err, types.ErrConfiguration))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	reg := NewRegistry(nil)
	require.NoError(t, reg.Register(echoTool("search")))

	err := reg.Register(echoTool("search"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_DefaultTimeout(t *testing.T) {
	reg := NewRegistry(nil, WithDefaultTimeout(2*time.Second))
	require.NoError(t, reg.Register(echoTool("a")))

	withTimeout := echoTool("b")
	withTimeout.Timeout = time.Second
	require.NoError(t, reg.Register(withTimeout))

	a, ok := reg.Get("a")
	require.True(t, ok)
	assert.Equal(t, 2*time.Second, a.Timeout)

	b, ok := reg.Get("b")
	require.True(t, ok)
	assert.Equal(t, time.Second, b.Timeout)

	_, ok = reg.Get("missing")
	assert.False(t, ok)
}

func TestRegistry_SchemasSortedByName(t *testing.T) {
	reg := NewRegistry(nil)
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, reg.Register(echoTool(name)))
	}

	schemas := reg.Schemas()
	require.Len(t, schemas, 3)
	assert.Equal(t, "alpha", schemas[0].Name)
	assert.Equal(t, "mid", schemas[1].Name)
	assert.Equal(t, "zeta", schemas[2].Name)
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, reg.Names())
}

func TestRegistry_Unregister(t *testing.T) {
	reg := NewRegistry(nil)
	require.NoError(t, reg.Register(echoTool("search")))
	require.NoError(t, reg.Unregister("search"))
	assert.False(t, reg.Has("search"))
	assert.Error(t, reg.Unregister("search"))
}

func TestRegistry_Validate(t *testing.T) {
	reg := NewRegistry(nil)
	require.NoError(t, reg.Register(echoTool("search")))

	assert.NoError(t, reg.Validate("search", json.RawMessage(`{"query":"cats"}`)))

	err := reg.Validate("search", json.RawMessage(`{"query":7}`))
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrToolValidation))
	assert.Contains(t, err.Error(), "/query")

	err = reg.Validate("search", nil)
	require.Error(t, err, "missing arguments are validated as an empty object")

	err = reg.Validate("search", json.RawMessage(`not json`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid JSON")

	err = reg.Validate("unknown", json.RawMessage(`{}`))
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrToolValidation))
}

func TestRegistry_NoParametersAcceptsAnything(t *testing.T) {
	reg := NewRegistry(nil)
	require.NoError(t, reg.Register(Tool{
		Schema: types.ToolSchema{Name: "now"},
		Func: func(context.Context, json.RawMessage) (json.RawMessage, error) {
			return json.RawMessage(`"noon"`), nil
		},
	}))
	assert.NoError(t, reg.Validate("now", json.RawMessage(`[1,2]`)))
}
