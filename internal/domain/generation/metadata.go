package generation

import (
	"errors"
	"fmt"
)

// Metadata carries the job-kind-specific parameters needed to interpret a work
// record's results later: which reference images feed the before/after
// presentation and whether the produced asset is a still image or a video.
//
// It is a tagged variant: Kind discriminates, and exactly one params pointer
// is set per record.
type Metadata struct {
	Kind       JobKind    `json:"job_kind"`
	ResultKind ResultKind `json:"result_kind,omitempty"` // filled at terminal-state detection
	Price      int64      `json:"price,omitempty"`       // credits charged at launch

	ImageToImage   *ImageToImageParams   `json:"image_to_image,omitempty"`
	ImageToVideo   *ImageToVideoParams   `json:"image_to_video,omitempty"`
	VideoEffect    *VideoEffectParams    `json:"video_effect,omitempty"`
	PortraitRedraw *PortraitRedrawParams `json:"portrait_redraw,omitempty"`
	BackgroundI2I  *BackgroundI2IParams  `json:"background_image_to_image,omitempty"`
}

// ImageToImageParams restyles a source image with a template.
type ImageToImageParams struct {
	SourceImage   string  `json:"source_image"`
	StyleTemplate string  `json:"style_template"`
	Strength      float64 `json:"strength,omitempty"`
}

// ImageToVideoParams animates a source image.
type ImageToVideoParams struct {
	SourceImage     string `json:"source_image"`
	MotionTemplate  string `json:"motion_template"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
}

// VideoEffectParams applies an effect to a source video.
type VideoEffectParams struct {
	SourceVideo string `json:"source_video"`
	Effect      string `json:"effect"`
}

// PortraitRedrawParams redraws a selfie in a given style.
type PortraitRedrawParams struct {
	SelfieRef string `json:"selfie_ref"`
	StyleRef  string `json:"style_ref"`
}

// BackgroundI2IParams is the fire-and-forget image-to-image variant whose
// backend executes and reports completion in a single call.
type BackgroundI2IParams struct {
	SourceImage string `json:"source_image"`
	Prompt      string `json:"prompt"`
}

// Validate checks that the params variant matching Kind is present.
func (m Metadata) Validate() error {
	if !m.Kind.Valid() {
		return fmt.Errorf("unknown job kind %q", m.Kind)
	}
	var ok bool
	switch m.Kind {
	case KindImageToImage:
		ok = m.ImageToImage != nil && m.ImageToImage.SourceImage != ""
	case KindImageToVideo:
		ok = m.ImageToVideo != nil && m.ImageToVideo.SourceImage != ""
	case KindVideoEffect:
		ok = m.VideoEffect != nil && m.VideoEffect.SourceVideo != ""
	case KindPortraitRedraw:
		ok = m.PortraitRedraw != nil && m.PortraitRedraw.SelfieRef != ""
	case KindBackgroundImageToImage:
		ok = m.BackgroundI2I != nil && m.BackgroundI2I.SourceImage != ""
	}
	if !ok {
		return errors.New("missing params for job kind " + string(m.Kind))
	}
	return nil
}

// BeforeImage returns the reference image that serves as the "before" side of
// a before/after presentation for this job kind.
func (m Metadata) BeforeImage() string {
	switch m.Kind {
	case KindImageToImage:
		if m.ImageToImage != nil {
			return m.ImageToImage.SourceImage
		}
	case KindImageToVideo:
		if m.ImageToVideo != nil {
			return m.ImageToVideo.SourceImage
		}
	case KindPortraitRedraw:
		if m.PortraitRedraw != nil {
			return m.PortraitRedraw.SelfieRef
		}
	case KindBackgroundImageToImage:
		if m.BackgroundI2I != nil {
			return m.BackgroundI2I.SourceImage
		}
	}
	return ""
}

// DefaultResultKind returns the asset kind a job of this kind produces.
func (m Metadata) DefaultResultKind() ResultKind {
	switch m.Kind {
	case KindImageToVideo, KindVideoEffect:
		return ResultVideo
	}
	return ResultImage
}
