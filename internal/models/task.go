package models

import "time"

// RowKind distinguishes the two metadata tables a task row can live in.
type RowKind string

const (
	KindImage RowKind = "images"
	KindModel RowKind = "models"
)

// RowStatus is the monotonic status progression of an image/model row
// (spec.md §3 invariant 2: pending -> processing -> {complete, failed}, no
// back-transitions).
type RowStatus string

const (
	StatusPending    RowStatus = "pending"
	StatusProcessing RowStatus = "processing"
	StatusComplete   RowStatus = "complete"
	StatusFailed     RowStatus = "failed"
)

// ImageType is the closed set of origins for an images row.
type ImageType string

const (
	ImageUpload      ImageType = "upload"
	ImageAIGenerated ImageType = "ai_generated"
	ImageUserSketch  ImageType = "user_sketch"
)

// Task is the ephemeral in-flight request record (spec.md §3). Durable state
// lives on the image/model row it points to; Task itself is never persisted
// beyond what the queue payload carries.
type Task struct {
	ClientTaskID   string
	InternalTaskID string
	Endpoint       string
	Provider       string
	UserID         string
	Queue          string
	CreatedAt      time.Time
}

// ImageRow is a row of the images table.
type ImageRow struct {
	ID             string
	ClientTaskID   string
	UserID         string
	ImageType      ImageType
	SourceImageID  *string
	Prompt         *string
	Style          *string
	AssetURL       *string
	Status         RowStatus
	ProviderJobID  *string
	Provider       string
	MetadataJSON   map[string]interface{}
	CreatedAt      time.Time
}

// ModelRow is a row of the models table.
type ModelRow struct {
	ID            string
	ClientTaskID  string
	UserID        string
	SourceImageID *string
	Prompt        *string
	Style         *string
	AssetURL      *string
	Status        RowStatus
	ProviderJobID *string
	Provider      string
	MetadataJSON  map[string]interface{}
	CreatedAt     time.Time
}

// QueuedJob is the opaque payload a worker dequeues (spec.md §4.6).
type QueuedJob struct {
	InternalTaskID string                 `json:"internal_task_id"`
	ClientTaskID   string                 `json:"client_task_id"`
	RowID          string                 `json:"row_id"`
	Kind           RowKind                `json:"kind"`
	Provider       string                 `json:"provider"`
	Operation      string                 `json:"operation"`
	Prompt         string                 `json:"prompt,omitempty"`
	SelectPrompt   string                 `json:"select_prompt,omitempty"`
	Params         map[string]interface{} `json:"params"`
	InputURLs      []string               `json:"input_urls"`
	MaskURL        string                 `json:"mask_url,omitempty"`
	Attempts       int                    `json:"attempts"`
	EnqueuedAt     time.Time              `json:"enqueued_at"`
}
