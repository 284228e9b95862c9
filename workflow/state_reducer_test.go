package workflow

import (
	"testing"

	"github.com/BaSui01/agentgraph/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func msg(id string, role types.Role, content string) types.Message {
	return types.Message{ID: id, Role: role, Content: content}
}

func ids(log []types.Message) []string {
	out := make([]string, len(log))
	for i, m := range log {
		out[i] = m.ID
	}
	return out
}

func assertLog(t assert.TestingT, want, got []types.Message) {
	if len(want) == 0 && len(got) == 0 {
		return
	}
	assert.Equal(t, want, got)
}

func TestAppendReducer(t *testing.T) {
	reducer := AppendReducer[int]()
	current := []int{1, 2}
	result := reducer(current, []int{3})

	assert.Equal(t, []int{1, 2, 3}, result)
	assert.Equal(t, []int{1, 2}, current)
}

func TestMergeMessages(t *testing.T) {
	tests := []struct {
		name     string
		current  []types.Message
		incoming []types.Message
		want     []string
		contents []string
	}{
		{
			name:     "empty incoming",
			current:  []types.Message{msg("a", types.RoleHuman, "hi")},
			want:     []string{"a"},
			contents: []string{"hi"},
		},
		{
			name:     "append new ids in order",
			current:  []types.Message{msg("a", types.RoleHuman, "hi")},
			incoming: []types.Message{msg("b", types.RoleAssistant, "x"), msg("c", types.RoleAssistant, "y")},
			want:     []string{"a", "b", "c"},
			contents: []string{"hi", "x", "y"},
		},
		{
			name: "replace in place",
			current: []types.Message{
				msg("a", types.RoleHuman, "hi"),
				msg("b", types.RoleAssistant, "draft"),
				msg("c", types.RoleHuman, "more"),
			},
			incoming: []types.Message{msg("b", types.RoleAssistant, "final")},
			want:     []string{"a", "b", "c"},
			contents: []string{"hi", "final", "more"},
		},
		{
			name:     "replace and append",
			current:  []types.Message{msg("a", types.RoleHuman, "hi")},
			incoming: []types.Message{msg("b", types.RoleAssistant, "new"), msg("a", types.RoleHuman, "edited")},
			want:     []string{"a", "b"},
			contents: []string{"edited", "new"},
		},
		{
			name:     "duplicate incoming ids keep the later one",
			incoming: []types.Message{msg("a", types.RoleAssistant, "one"), msg("a", types.RoleAssistant, "two")},
			want:     []string{"a"},
			contents: []string{"two"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := MergeMessages(tt.current, tt.incoming)
			assert.Equal(t, tt.want, ids(result))
			contents := make([]string, len(result))
			for i, m := range result {
				contents[i] = m.Content
			}
			assert.Equal(t, tt.contents, contents)
		})
	}
}

func TestMergeMessages_AssignsMissingIDs(t *testing.T) {
	current := []types.Message{msg("a", types.RoleHuman, "hi")}
	result := MergeMessages(current, []types.Message{
		{Role: types.RoleAssistant, Content: "x"},
		{Role: types.RoleAssistant, Content: "y"},
	})

	require.Len(t, result, 3)
	assert.NotEmpty(t, result[1].ID)
	assert.NotEmpty(t, result[2].ID)
	assert.NotEqual(t, result[1].ID, result[2].ID)
}

func TestMergeMessages_DoesNotModifyInputs(t *testing.T) {
	current := []types.Message{msg("a", types.RoleHuman, "hi")}
	incoming := []types.Message{msg("a", types.RoleHuman, "edited"), {Role: types.RoleAssistant}}

	_ = MergeMessages(current, incoming)

	assert.Equal(t, "hi", current[0].Content)
	assert.Empty(t, incoming[1].ID)
}

func TestMessagesReducer(t *testing.T) {
	reducer := MessagesReducer()
	result := reducer([]types.Message{msg("a", types.RoleHuman, "hi")}, []types.Message{msg("b", types.RoleAssistant, "ok")})
	assert.Equal(t, []string{"a", "b"}, ids(result))
}

var messageIDs = []string{"m1", "m2", "m3", "m4", "m5", "m6", "m7", "m8"}

func messageGen() *rapid.Generator[types.Message] {
	return rapid.Custom(func(t *rapid.T) types.Message {
		return types.Message{
			ID:      rapid.SampledFrom(messageIDs).Draw(t, "id"),
			Role:    rapid.SampledFrom([]types.Role{types.RoleHuman, types.RoleAssistant, types.RoleSystem}).Draw(t, "role"),
			Content: rapid.StringN(0, 12, -1).Draw(t, "content"),
		}
	})
}

func logGen() *rapid.Generator[[]types.Message] {
	return rapid.SliceOfDistinct(messageGen(), func(m types.Message) string { return m.ID })
}

func TestMergeMessages_EmptyIncomingIsIdentity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := logGen().Draw(t, "a")
		assertLog(t, a, MergeMessages(a, nil))
		assertLog(t, a, MergeMessages(a, []types.Message{}))
	})
}

func TestMergeMessages_Idempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := logGen().Draw(t, "a")
		b := rapid.SliceOf(messageGen()).Draw(t, "b")

		once := MergeMessages(a, b)
		twice := MergeMessages(once, b)
		assertLog(t, once, twice)
	})
}

func TestMergeMessages_ReplacesAtOriginalPosition(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := logGen().Draw(t, "a")
		b := logGen().Draw(t, "b")

		result := MergeMessages(a, b)

		seen := make(map[string]bool)
		for _, m := range result {
			require.False(t, seen[m.ID], "duplicate id %s", m.ID)
			seen[m.ID] = true
		}

		fromB := make(map[string]types.Message, len(b))
		for _, m := range b {
			fromB[m.ID] = m
		}
		for i, old := range a {
			want := old
			if m, ok := fromB[old.ID]; ok {
				want = m
			}
			assert.Equal(t, want, result[i])
		}
	})
}

func TestMergeMessages_NewIDsAppendInOrder(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		all := logGen().Draw(t, "all")
		split := rapid.IntRange(0, len(all)).Draw(t, "split")
		a, b := all[:split], all[split:]

		assertLog(t, all, MergeMessages(a, b))
	})
}
