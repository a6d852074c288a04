package model

// StreamResult is one element of the persisted result set, the shape other
// browsing contexts read back: full content so far plus a loading flag.
type StreamResult struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	IsLoading bool   `json:"isLoading"`
}

// MessageType tags the broadcast channel message union.
type MessageType string

const (
	MessageDetailReady        MessageType = "DETAIL_READY"
	MessageUpdateContent      MessageType = "UPDATE_CONTENT"
	MessageGenerationComplete MessageType = "GENERATION_COMPLETE"
	MessageGenerationError    MessageType = "GENERATION_ERROR"
)

// ChannelMessage is self-contained: UPDATE_CONTENT carries the full current
// content for its index, never a diff, so listeners need no prior state.
type ChannelMessage struct {
	Type    MessageType `json:"type"`
	Index   *int        `json:"index,omitempty"`
	Content string      `json:"content,omitempty"`
}

// ProgressEvent mirrors the progress callback delivered to the initiating
// context: (index, accumulated content, isComplete, tokenRate, totalTokens).
type ProgressEvent struct {
	Index       int    `json:"index"`
	Content     string `json:"content"`
	Complete    bool   `json:"complete"`
	TokenRate   int    `json:"token_rate"`
	TotalTokens int    `json:"total_tokens"`
}

// RunStatus is the coordinator's externally visible state summary.
type RunStatus struct {
	RunID       string `json:"run_id,omitempty"`
	State       string `json:"state"`
	StreamCount int    `json:"stream_count"`
	TotalTokens int    `json:"total_tokens"`
	TokenRate   int    `json:"token_rate"`
	Viewers     int    `json:"viewers"`
}
