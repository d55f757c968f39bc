package models

import (
	"strings"
	"time"
)

// NoResponseSentinel is persisted in place of a model response when every
// attempt to reach the judge failed.
const NoResponseSentinel = "Error: No response received"

// PromptRecord is one checklist entry for one video-generation task.
type PromptRecord struct {
	PromptID   string
	PhysicsID  string
	DetailedID string

	Objects   []string
	Event     string
	Standards []string

	// Raw is the dataset node the record was decoded from, persisted verbatim.
	Raw map[string]any
}

// Aliases returns the three interchangeable identifiers of the record.
func (r *PromptRecord) Aliases() []string {
	return []string{r.PromptID, r.PhysicsID, r.DetailedID}
}

// ObjectsString joins the expected objects the way they are quoted in prompts.
func (r *PromptRecord) ObjectsString() string {
	return strings.Join(r.Objects, ", ")
}

// FrameSet is the ordered list of sampled frames for one video.
type FrameSet struct {
	VideoID  string
	Paths    []string
	Expected int
}

// Complete reports whether the set holds exactly the requested number of frames.
func (f FrameSet) Complete() bool {
	return len(f.Paths) == f.Expected
}

// Verdict is the persisted outcome of judging one video against one checklist record.
// It is written once and never mutated.
type Verdict struct {
	VideoID    string         `json:"video_id"`
	Data       map[string]any `json:"data"`
	ModelName  string         `json:"model_name"`
	IsTwoStep  bool           `json:"is_two_steps_prompt"`
	PromptType Variant        `json:"llm_prompt_type"`
	Frames     int            `json:"total_frames"`
	Response   *string        `json:"response,omitempty"`
	Prompt     string         `json:"llm_prompt"`
	Attempts   int            `json:"attempts,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// ResponseText returns the raw response, or "" when none was recorded.
func (v *Verdict) ResponseText() string {
	if v.Response == nil {
		return ""
	}
	return *v.Response
}

// AggregateStats summarises a batch of verdicts for one configuration.
type AggregateStats struct {
	Model     string `json:"model,omitempty"`
	Frames    int    `json:"total_frames,omitempty"`
	Directory string `json:"directory"`

	Total           int `json:"total_files"`
	ObjectsEventYes int `json:"objects_and_event_yes"`
	AllStandardsYes int `json:"all_standards_yes"`
	EverythingYes   int `json:"everything_yes"`
}

// ObjectsEventPercent is the share of verdicts with both Objects and Event answered Yes.
func (s AggregateStats) ObjectsEventPercent() float64 {
	return percent(s.ObjectsEventYes, s.Total)
}

// AllStandardsPercent is the share of verdicts with every standard answered Yes.
func (s AggregateStats) AllStandardsPercent() float64 {
	return percent(s.AllStandardsYes, s.Total)
}

// EverythingPercent is the share of verdicts passing both predicates.
func (s AggregateStats) EverythingPercent() float64 {
	return percent(s.EverythingYes, s.Total)
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}
