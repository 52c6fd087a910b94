package dto

// ClassifyEmailRequest is the bounded prompt context sent to the inference
// endpoint. Snippet is truncated by the caller to limit cost and latency.
type ClassifyEmailRequest struct {
	Task    string `json:"task"`
	Subject string `json:"subject"`
	Sender  string `json:"sender"`
	Snippet string `json:"snippet"`
}

// ClassifyEmailResponse carries a single category label with an optional
// confidence score.
type ClassifyEmailResponse struct {
	Category   string   `json:"category"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// SuggestRepliesRequest asks the inference endpoint for short reply drafts.
type SuggestRepliesRequest struct {
	Task    string `json:"task"`
	Subject string `json:"subject"`
	Sender  string `json:"sender"`
	Snippet string `json:"snippet"`
}

type SuggestRepliesResponse struct {
	Suggestions []string `json:"suggestions"`
}
