package dto

// SuggestRequest carries the free-text description to classify.
type SuggestRequest struct {
	Description string `json:"description"`
}

// SuggestResponse returns ranked category label suggestions.
type SuggestResponse struct {
	Suggestions []string `json:"suggestions"`
}
