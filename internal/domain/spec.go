package domain

// StreamKind identifies the role of one elementary stream.
type StreamKind string

const (
	StreamKindVideo    StreamKind = "video"
	StreamKindAudio    StreamKind = "audio"
	StreamKindSubtitle StreamKind = "subtitle"
)

// Mergeable reports whether streams of this kind are fed to the remuxer.
// Subtitle-like side artifacts are kept next to the output instead.
func (k StreamKind) Mergeable() bool {
	return k == StreamKindVideo || k == StreamKindAudio
}

// StreamSource is one already-resolved elementary stream URL.
type StreamSource struct {
	Kind    StreamKind `json:"kind" validate:"required,oneof=video audio subtitle"`
	URL     string     `json:"url" validate:"required,url"`
	Quality string     `json:"quality,omitempty"`
}

// JobSpec is the immutable input describing one download job.
type JobSpec struct {
	URL        string         `json:"url,omitempty" validate:"omitempty,url"`
	Sources    []StreamSource `json:"sources" validate:"required,min=1,dive"`
	OutputDir  string         `json:"output_dir,omitempty"`
	OutputName string         `json:"output_name,omitempty"`
	Container  string         `json:"container,omitempty" validate:"omitempty,oneof=mp4 mkv"`
	Resume     bool           `json:"resume"`
	Overwrite  bool           `json:"overwrite"`
}
