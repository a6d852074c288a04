package model

// SamplingParams carries the decoding knobs forwarded verbatim to the
// completion backend.
type SamplingParams struct {
	Temperature    float64 `json:"temperature"`
	TopK           int     `json:"top_k"`
	TopP           float64 `json:"top_p"`
	AlphaPresence  float64 `json:"alpha_presence"`
	AlphaFrequency float64 `json:"alpha_frequency"`
	AlphaDecay     float64 `json:"alpha_decay"`
	ChunkSize      int     `json:"chunk_size"`
}

// GenerationRequest is the immutable description of one run. Prompts holds
// either a single prompt fanned out to StreamCount streams, or one
// continuation context per stream.
type GenerationRequest struct {
	Prompts     []string       `json:"prompts"`
	StreamCount int            `json:"stream_count"`
	MaxTokens   int            `json:"max_tokens"`
	Sampling    SamplingParams `json:"sampling"`
}

type StartGenerationRequest struct {
	Prompt      string `json:"prompt" binding:"required"`
	StreamCount int    `json:"stream_count"`
	MaxTokens   int    `json:"max_tokens"`
}

type ContinueGenerationRequest struct {
	Contents []string `json:"contents" binding:"required"`
}
