package trial

import (
	"time"

	"github.com/google/uuid"
)

// Variant identifies the delivery path under test.
type Variant string

const (
	VariantOrigin Variant = "origin"
	VariantCDN    Variant = "cdn"
)

// Variants lists the two arms being compared, in canonical order.
var Variants = []Variant{VariantOrigin, VariantCDN}

// Reasons a trial stopped collecting images before full success.
const (
	ReasonTimeout           = "timeout"
	ReasonNoImages          = "no_images"
	ReasonImagesFailed      = "images_failed"
	ReasonNavigationTimeout = "navigation_timeout"
	ReasonNavigationError   = "navigation_error"
)

// Trial is one measured page load. It is immutable once the runner returns
// it; the orchestrator owns the accumulated list for the duration of a run.
type Trial struct {
	ID       uuid.UUID `json:"id" gorm:"primarykey;type:uuid"`
	RunID    uuid.UUID `json:"run_id" gorm:"index;type:uuid"`
	PageID   string    `json:"page_id" gorm:"index:idx_page_variant_run"`
	Variant  Variant   `json:"variant" gorm:"index:idx_page_variant_run"`
	RunIndex int       `json:"run_index" gorm:"index:idx_page_variant_run"`

	Timestamp time.Time `json:"timestamp"`

	// Timing fields are nil when the trial could not produce them.
	ImagesLoadedMs *float64 `json:"images_loaded_ms"`
	AvgImageMs     *float64 `json:"avg_image_ms"`
	TTFBMs         *float64 `json:"ttfb_ms"`
	LCPMs          *float64 `json:"lcp_ms"`

	ImagesTotal   int `json:"images_total"`
	ImagesFailed  int `json:"images_failed"`
	ImagesPending int `json:"images_pending"`

	TimedOut      bool    `json:"timeout"`
	TimeoutReason *string `json:"timeout_reason"`
	ErrorsCount   int     `json:"errors_count"`

	UserAgent string `json:"user_agent,omitempty"`
	Viewport  string `json:"viewport,omitempty"`
}
