package generation

import "time"

// ResultKind tells the presentation layer how to render a result reference.
type ResultKind string

const (
	ResultImage ResultKind = "image"
	ResultVideo ResultKind = "video"
)

// ResultEntry is one produced asset within a work record. ResultRef starts
// empty and is filled exactly once at terminal-state detection; once non-empty
// it is never cleared.
type ResultEntry struct {
	SourceTemplateRef  string `json:"source_template_ref,omitempty"`
	TemplatePreviewRef string `json:"template_preview_ref,omitempty"`
	ResultRef          string `json:"result_ref,omitempty"`
}

// WorkRecord is the persisted document for one generation attempt. It is the
// source of truth across process restarts; the in-memory Task mirrors it.
//
// A record is created optimistically before the remote job is confirmed
// started, so a pending record with an unacknowledged job id is legitimate.
// Records are never deleted by this engine.
type WorkRecord struct {
	ID        string        `json:"id"`
	OwnerID   string        `json:"owner_id"`
	JobID     string        `json:"job_id"`
	Status    Status        `json:"status"`
	Results   []ResultEntry `json:"results"`
	Meta      Metadata      `json:"meta"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// FirstResultRef returns the result reference of the first entry, or "" when
// no result has been produced yet.
func (w *WorkRecord) FirstResultRef() string {
	if len(w.Results) == 0 {
		return ""
	}
	return w.Results[0].ResultRef
}

// SetFirstResultRef fills the first result entry, creating it when the record
// was stored without entries. The write-once rule is enforced here: an already
// non-empty ref is left untouched.
func (w *WorkRecord) SetFirstResultRef(ref string) {
	if len(w.Results) == 0 {
		w.Results = []ResultEntry{{}}
	}
	if w.Results[0].ResultRef == "" {
		w.Results[0].ResultRef = ref
	}
}
