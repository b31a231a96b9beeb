// Package generation defines the Task and WorkRecord domain entities for
// AI generation attempts.
package generation

import "time"

// Status represents the lifecycle state of a generation attempt.
// Success and failed are terminal: once reached, a task or work record
// never transitions again.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// JobKind distinguishes the generation job types the backend supports.
type JobKind string

const (
	KindImageToImage           JobKind = "image_to_image"
	KindImageToVideo           JobKind = "image_to_video"
	KindVideoEffect            JobKind = "video_effect"
	KindPortraitRedraw         JobKind = "portrait_redraw"
	KindBackgroundImageToImage JobKind = "background_image_to_image"
)

// Background reports whether the kind runs on the fire-and-forget execution
// path. The backend for this kind executes and reports completion in a single
// call and does not support status polling.
func (k JobKind) Background() bool {
	return k == KindBackgroundImageToImage
}

// Valid reports whether k is a known job kind.
func (k JobKind) Valid() bool {
	switch k {
	case KindImageToImage, KindImageToVideo, KindVideoEffect, KindPortraitRedraw, KindBackgroundImageToImage:
		return true
	}
	return false
}

// Task is the in-memory representation of one in-flight or recently-completed
// generation attempt, held in the task registry for the duration of the
// process. The persisted WorkRecord is the authoritative copy; Task fields are
// denormalized for presentation.
type Task struct {
	ID         string      `json:"id"`      // job id: queue-assigned (poll model) or client-generated (background model)
	WorkID     string      `json:"work_id"` // primary key of the persisted work record
	OwnerID    string      `json:"owner_id"`
	Kind       JobKind     `json:"kind"`
	Status     Status      `json:"status"`
	Title      string      `json:"title,omitempty"`
	CoverImage string      `json:"cover_image,omitempty"`
	Error      string      `json:"error,omitempty"`      // set only on failed
	ResultRef  string      `json:"result_ref,omitempty"` // set only on success
	Work       *WorkRecord `json:"work,omitempty"`       // work record as last observed
	StartedAt  time.Time   `json:"started_at"`
}

// LaunchRequest holds the fields needed to launch a new generation task.
type LaunchRequest struct {
	OwnerID    string   `json:"owner_id"`
	Kind       JobKind  `json:"kind"`
	Title      string   `json:"title"`
	CoverImage string   `json:"cover_image,omitempty"`
	Price      int64    `json:"price"`
	Params     Metadata `json:"params"`
}
