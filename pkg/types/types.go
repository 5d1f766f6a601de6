package types

// SizeClass is the coarse size bucket a model belongs to.
type SizeClass string

const (
	SizeSmall SizeClass = "small"
	SizeLarge SizeClass = "large"
)

// ModelSpec identifies a model the inference engine can load.
type ModelSpec struct {
	ID        string    `json:"id"`
	SizeClass SizeClass `json:"size_class"`
	Name      string    `json:"name,omitempty"`
	Path      string    `json:"path,omitempty"`
}

// EngineStatus is the observable state of the inference session.
type EngineStatus struct {
	State               string `json:"state"`
	Loading             bool   `json:"loading"`
	StepName            string `json:"step_name,omitempty"`
	ProgressNumerator   int    `json:"progress_numerator"`
	ProgressDenominator int    `json:"progress_denominator"`
	ProgressText        string `json:"progress_text,omitempty"`
	ActiveModel         string `json:"active_model,omitempty"`
	DesiredModel        string `json:"desired_model,omitempty"`
	Error               string `json:"error,omitempty"`
}
