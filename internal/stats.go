package internal

import "time"

// FileStatus summarizes how much of one file was translated.
type FileStatus string

const (
	FileComplete FileStatus = "complete"
	FilePartial  FileStatus = "partial"
	FileSkipped  FileStatus = "skipped"
	FileFailed   FileStatus = "failed"
)

// FileResult is the outcome for one discovered file.
type FileResult struct {
	Path       string     `json:"path"`
	Handler    FileType   `json:"handler"`
	Status     FileStatus `json:"status"`
	Output     string     `json:"output,omitempty"`
	Units      int        `json:"units"`
	Translated int        `json:"translated"`
	Failed     int        `json:"failed"`
	Skipped    int        `json:"skipped"`
	Cached     int        `json:"cached"`
	Reverted   int        `json:"reverted,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// RunStatistics is the summary of one pipeline run.
type RunStatistics struct {
	RunID        string    `json:"run_id"`
	Modpack      string    `json:"modpack"`
	SourceLocale string    `json:"source_locale"`
	TargetLocale string    `json:"target_locale"`
	Provider     string    `json:"provider,omitempty"`
	Model        string    `json:"model,omitempty"`
	State        string    `json:"state"`
	Incomplete   bool      `json:"incomplete"`
	Error        string    `json:"error,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	DurationMS   int64     `json:"duration_ms"`

	FilesTotal     int `json:"files_total"`
	FilesProcessed int `json:"files_processed"`
	FilesSkipped   int `json:"files_skipped"`
	FilesFailed    int `json:"files_failed"`

	UnitsTotal      int `json:"units_total"`
	UnitsCompleted  int `json:"units_completed"`
	UnitsTranslated int `json:"units_translated"`
	UnitsFailed     int `json:"units_failed"`
	UnitsSkipped    int `json:"units_skipped"`
	UnitsCached     int `json:"units_cached"`
	UnitsReviewed   int `json:"units_reviewed,omitempty"`
	UnitsCorrected  int `json:"units_corrected,omitempty"`

	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`

	GlossaryTerms int              `json:"glossary_terms"`
	HandlerUnits  map[FileType]int `json:"handler_units"`
	Files         []FileResult     `json:"files"`
}

// Duration returns the elapsed run time.
func (s *RunStatistics) Duration() time.Duration {
	return time.Duration(s.DurationMS) * time.Millisecond
}

// Clone returns a deep copy.
func (s *RunStatistics) Clone() *RunStatistics {
	c := *s
	c.HandlerUnits = make(map[FileType]int, len(s.HandlerUnits))
	for k, v := range s.HandlerUnits {
		c.HandlerUnits[k] = v
	}
	c.Files = append([]FileResult(nil), s.Files...)
	return &c
}
