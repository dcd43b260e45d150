package domain

// StreamDescriptor is one elementary stream owned by a single job.
// It is created during extraction, filled in by the size probe, and
// discarded after a successful merge or job failure.
type StreamDescriptor struct {
	ID             string
	Kind           StreamKind
	URL            string
	Path           string
	ExistingBytes  int64
	TotalBytes     int64
	Complete       bool
	RangeSupported bool
}

// StreamProgress is the byte-level state of one stream transfer.
// It is mutated only by the transfer that owns the stream; everyone
// else reads copies.
type StreamProgress struct {
	Kind     StreamKind `json:"kind"`
	Current  int64      `json:"current"`
	Total    int64      `json:"total"`
	Speed    int64      `json:"speed_bytes_per_sec"`
	Complete bool       `json:"complete"`
}
