package workflow

import "github.com/BaSui01/agentgraph/types"

// Reducer defines how a state update is folded into the current value.
type Reducer[T any] func(current T, update T) T

// AppendReducer appends slices together.
func AppendReducer[T any]() Reducer[[]T] {
	return func(current, update []T) []T {
		result := make([]T, 0, len(current)+len(update))
		result = append(result, current...)
		result = append(result, update...)
		return result
	}
}

// MessagesReducer is the reducer of the message log channel.
func MessagesReducer() Reducer[[]types.Message] {
	return MergeMessages
}

// MergeMessages folds incoming into current by message id.
//
// An incoming message whose id already exists replaces that entry in place;
// the replacement is whole, not a field merge. Every other incoming message
// is appended in incoming order. Messages without an id get a fresh one, so
// they are always appended. Neither input is modified.
//
// MergeMessages(s, nil) equals s, and merging the same identified incoming
// twice gives the same log as merging it once.
func MergeMessages(current, incoming []types.Message) []types.Message {
	result := make([]types.Message, len(current), len(current)+len(incoming))
	copy(result, current)
	if len(incoming) == 0 {
		return result
	}

	index := make(map[string]int, len(result)+len(incoming))
	for i, m := range result {
		if m.ID != "" {
			index[m.ID] = i
		}
	}

	for _, m := range incoming {
		if m.ID == "" {
			m.ID = types.NewMessageID()
		}
		if pos, ok := index[m.ID]; ok {
			result[pos] = m
			continue
		}
		index[m.ID] = len(result)
		result = append(result, m)
	}
	return result
}
