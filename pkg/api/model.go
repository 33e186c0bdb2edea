package api

// Model describes one canonical model as served by the active backend.
type Model struct {
	ID        string `json:"id"`
	Object    string `json:"object"`
	Provider  string `json:"provider"`
	WireID    string `json:"wire_id"`
	MaxTokens int    `json:"max_tokens"`
}
