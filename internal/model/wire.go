package model

// CompletionRequest is the outbound body of the single streaming POST the
// coordinator issues per run. Field names follow the backend protocol.
type CompletionRequest struct {
	Contents       []string `json:"contents"`
	MaxTokens      int      `json:"max_tokens"`
	Temperature    float64  `json:"temperature"`
	TopK           int      `json:"top_k"`
	TopP           float64  `json:"top_p"`
	PadZero        bool     `json:"pad_zero"`
	AlphaPresence  float64  `json:"alpha_presence"`
	AlphaFrequency float64  `json:"alpha_frequency"`
	AlphaDecay     float64  `json:"alpha_decay"`
	ChunkSize      int      `json:"chunk_size"`
	Stream         bool     `json:"stream"`
	Password       string   `json:"password"`
}

// NewCompletionRequest flattens a GenerationRequest plus the backend password
// into the wire shape. The backend expects one content entry per stream, so
// a single prompt is repeated StreamCount times.
func NewCompletionRequest(req GenerationRequest, password string) CompletionRequest {
	contents := req.Prompts
	if len(contents) == 1 && req.StreamCount > 1 {
		contents = make([]string, req.StreamCount)
		for i := range contents {
			contents[i] = req.Prompts[0]
		}
	}
	return CompletionRequest{
		Contents:       contents,
		MaxTokens:      req.MaxTokens,
		Temperature:    req.Sampling.Temperature,
		TopK:           req.Sampling.TopK,
		TopP:           req.Sampling.TopP,
		PadZero:        true,
		AlphaPresence:  req.Sampling.AlphaPresence,
		AlphaFrequency: req.Sampling.AlphaFrequency,
		AlphaDecay:     req.Sampling.AlphaDecay,
		ChunkSize:      req.Sampling.ChunkSize,
		Stream:         true,
		Password:       password,
	}
}

// CompletionChunk is one decoded SSE frame payload. A frame may carry deltas
// for any subset of the logical streams.
type CompletionChunk struct {
	Object  string             `json:"object"`
	Choices []CompletionChoice `json:"choices"`
}

type CompletionChoice struct {
	Index int             `json:"index"`
	Delta CompletionDelta `json:"delta"`
}

type CompletionDelta struct {
	Content string `json:"content,omitempty"`
}
