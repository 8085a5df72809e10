package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"prose around", "Here you go: {\"a\":1} hope that helps", `{"a":1}`},
		{"array", "queries:\n[\"x\", \"y\"]", `["x", "y"]`},
		{"object containing array", `{"q":["x"]}`, `{"q":["x"]}`},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanJSON(tt.in))
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var out struct {
		IsRelevant bool   `json:"is_relevant"`
		Reason     string `json:"reason"`
	}
	require.NoError(t, DecodeJSON("```json\n{\"is_relevant\": true, \"reason\": \"症例\"}\n```", &out))
	assert.True(t, out.IsRelevant)
	assert.Equal(t, "症例", out.Reason)

	assert.Error(t, DecodeJSON("", &out))
	assert.Error(t, DecodeJSON("not json at all", &out))
}
