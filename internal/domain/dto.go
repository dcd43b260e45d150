package domain

// SubmitJobRequest represents the request body for submitting a new job.
type SubmitJobRequest struct {
	URL        string         `json:"url,omitempty" validate:"omitempty,url"`
	Sources    []StreamSource `json:"sources" validate:"required,min=1,max=8,dive"`
	OutputDir  string         `json:"output_dir,omitempty"`
	OutputName string         `json:"output_name,omitempty"`
	Container  string         `json:"container,omitempty" validate:"omitempty,oneof=mp4 mkv"`
	Resume     *bool          `json:"resume,omitempty"`
	Overwrite  bool           `json:"overwrite,omitempty"`
}

// ToSpec converts the request into an immutable JobSpec.
// Resume defaults to true when omitted.
func (r *SubmitJobRequest) ToSpec() JobSpec {
	resume := true
	if r.Resume != nil {
		resume = *r.Resume
	}
	container := r.Container
	if container == "" {
		container = "mp4"
	}
	return JobSpec{
		URL:        r.URL,
		Sources:    r.Sources,
		OutputDir:  r.OutputDir,
		OutputName: r.OutputName,
		Container:  container,
		Resume:     resume,
		Overwrite:  r.Overwrite,
	}
}
