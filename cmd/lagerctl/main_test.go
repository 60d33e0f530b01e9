package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/wire"
)

func TestParseArgs(t *testing.T) {
	args, err := parseArgs([]string{
		"name=Hall A",
		"size=12.5",
		"clear_price=true",
		"parent_id=9b2f7c1e-4d6a-4f3b-8e21-5a7c9d0e1f23",
		`attributes={"brand":"Acme","volume":250}`,
		"description=",
		"tags=[1,2]",
	})
	require.NoError(t, err)
	assert.Equal(t, wire.Args{
		"name":        "Hall A",
		"size":        12.5,
		"clear_price": true,
		"parent_id":   "9b2f7c1e-4d6a-4f3b-8e21-5a7c9d0e1f23",
		"attributes":  map[string]any{"brand": "Acme", "volume": 250.0},
		"description": "",
		"tags":        "[1,2]",
	}, args)

	_, err = parseArgs([]string{"name"})
	assert.Error(t, err)
	_, err = parseArgs([]string{"=x"})
	assert.Error(t, err)
}

func TestSplitWords(t *testing.T) {
	tests := []struct {
		line    string
		want    []string
		wantErr bool
	}{
		{"", nil, false},
		{"  ping  ", []string{"ping"}, false},
		{`storage.create name="Hall A" description='north wing'`, []string{"storage.create", "name=Hall A", "description=north wing"}, false},
		{`product.update id=x description=""`, []string{"product.update", "id=x", "description="}, false},
		{`storage.create name="Hall`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := splitWords(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSuggest(t *testing.T) {
	texts := func(before, word string) []string {
		var out []string
		for _, s := range suggest(before, word) {
			out = append(out, s.Text)
		}
		return out
	}

	assert.Contains(t, texts("stor", "stor"), "storage.create")
	assert.NotContains(t, texts("stor", "stor"), "space.create")
	assert.Contains(t, texts("", ""), "help")

	assert.Equal(t, []string{"name=", "description=", "parent_id="}, texts("storage.create ", ""))
	assert.Equal(t, []string{"description=", "parent_id="}, texts("storage.create name=x ", ""))
	assert.Equal(t, []string{"parent_id="}, texts("storage.create pa", "pa"))
	assert.Empty(t, texts("storage.create name=", "name="))
	assert.Empty(t, texts("nosuch.op ", ""))
}

func TestPrintTree(t *testing.T) {
	res := []any{
		map[string]any{
			"id":   "h",
			"name": "Hall A",
			"spaces": []any{
				map[string]any{
					"id": "s", "name": "Floor", "size": nil,
					"products": []any{
						map[string]any{"id": "p", "name": "Glue", "price": 3.5,
							"attributes": []any{map[string]any{"key": "brand", "value": "Acme"}}},
					},
				},
			},
			"children": []any{
				map[string]any{"id": "r", "name": "Rack", "spaces": []any{}, "children": []any{}},
			},
		},
	}

	var buf bytes.Buffer
	printTree(&buf, res)
	assert.Equal(t, `Hall A  [h]
├── space Floor  [s]
│   └── product Glue price=3.5 {brand=Acme}  [p]
└── Rack  [r]
`, buf.String())

	buf.Reset()
	printTree(&buf, []any{})
	assert.Equal(t, "(no storages)\n", buf.String())
}

func TestRootCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"ops"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "storage.move")
	assert.Contains(t, out.String(), "attribute.set")
}
