package playback

import (
	"time"

	"github.com/couchcryptid/fire-timeline-service/internal/domain"
)

// StatusKind is the operator-facing state of the last action.
type StatusKind string

const (
	StatusWaiting  StatusKind = "waiting"
	StatusLoading  StatusKind = "loading"
	StatusRetrying StatusKind = "retrying"
	StatusOK       StatusKind = "ok"
	StatusEmpty    StatusKind = "empty"
	StatusError    StatusKind = "error"
)

// Status is a single status line.
type Status struct {
	Kind    StatusKind `json:"kind"`
	Message string     `json:"message"`
	At      time.Time  `json:"at"`
}

// StatusReport is the session summary served to operators.
type StatusReport struct {
	Status        Status             `json:"status"`
	Ready         bool               `json:"ready"`
	Loaded        bool               `json:"loaded"`
	Source        string             `json:"source,omitempty"`
	Mode          domain.Mode        `json:"mode"`
	MinConfidence domain.Confidence  `json:"min_conf,omitempty"`
	Stats         domain.StoreStats  `json:"stats"`
	LiveWind      *domain.WindSample `json:"live_wind,omitempty"`
	WindError     string             `json:"wind_error,omitempty"`
}

// FrameView is the selected frame and its visible subset.
type FrameView struct {
	DayKey   string             `json:"day_key,omitempty"`
	Index    int                `json:"index"`
	FrameEnd *time.Time         `json:"frame_end,omitempty"`
	Count    int                `json:"count"`
	Mode     domain.Mode        `json:"mode"`
	Events   []domain.AgedEvent `json:"events"`
}
