package types

// SearchRequest starts a new pipeline run.
type SearchRequest struct {
	Query string `json:"query"`
}

// SearchStarted is returned when a run was started without waiting for it.
type SearchStarted struct {
	ID    string `json:"id"`
	Query string `json:"query"`
}

// Source is a cited page in a resolved summary.
type Source struct {
	URL          string `json:"url"`
	Title        string `json:"title"`
	Icon         string `json:"icon"`
	Origin       string `json:"origin"`
	DisplayIndex int    `json:"display_index"`
}

// RunView is the client projection of a pipeline run.
type RunView struct {
	ID            string   `json:"id"`
	Query         string   `json:"query"`
	Status        string   `json:"status,omitempty"`
	Fetching      bool     `json:"fetching"`
	InProgress    bool     `json:"in_progress"`
	Error         string   `json:"error,omitempty"`
	CandidateURLs []string `json:"candidate_urls,omitempty"`
	Pages         []string `json:"pages,omitempty"`
	Summary       string   `json:"summary"`
	Sources       []Source `json:"sources,omitempty"`
}

// AutocompleteResponse lists query suggestions.
type AutocompleteResponse struct {
	Query       string   `json:"query"`
	Suggestions []string `json:"suggestions"`
}

// ModelsResponse lists the configured models and the active one.
type ModelsResponse struct {
	Models []ModelSpec `json:"models"`
	Active string      `json:"active,omitempty"`
}

// SwitchRequest selects a model by id or by size class.
type SwitchRequest struct {
	ID   string    `json:"id,omitempty"`
	Size SizeClass `json:"size,omitempty"`
}

// SwitchResponse acknowledges an accepted switch.
type SwitchResponse struct {
	Op      string `json:"op"`
	ModelID string `json:"model_id"`
}

// ErrorResponse is the uniform JSON error body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}
