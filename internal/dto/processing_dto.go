package dto

// Inbound websocket payloads.

type ProcessRequest struct {
	SelectedFields []string `json:"selectedFields" validate:"required,min=1"`
	AIPrompt       string   `json:"aiPrompt"`
}

type ReprocessRequest struct {
	SelectedAchievements []string `json:"selectedAchievements" validate:"required,min=1"`
	AdditionalPrompt     string   `json:"additionalPrompt"`
}

// Outbound websocket event payloads. Field names are part of the wire
// contract with the browser client.

type ProcessingStarted struct {
	Message     string `json:"message"`
	TotalChunks string `json:"totalChunks,omitempty"`
}

type ChunkProgress struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Status  string `json:"status"`
}

type ChunkCompleted struct {
	ChunkIndex     int      `json:"chunkIndex"`
	Progress       int      `json:"progress"`
	PartialResults []string `json:"partialResults"`
}

type ProcessingCompleted struct {
	Achievements      []string `json:"achievements"`
	TotalAchievements int      `json:"totalAchievements"`
	Progress          int      `json:"progress"`
	DownloadReady     bool     `json:"downloadReady,omitempty"`
}

type ProcessingCancelled struct {
	Message string `json:"message"`
}

type ProcessingError struct {
	Error    string `json:"error"`
	CanRetry bool   `json:"canRetry,omitempty"`
}

// Event names shared by the orchestrator and the websocket layer.
const (
	EventProcessingStarted   = "processing-started"
	EventChunkProgress       = "chunk-progress"
	EventChunkCompleted      = "chunk-completed"
	EventProcessingCompleted = "processing-completed"
	EventProcessingCancelled = "processing-cancelled"
	EventProcessingError     = "processing-error"

	EventStartProcessing   = "start-processing"
	EventStartReprocessing = "start-reprocessing"
	EventCancelProcessing  = "cancel-processing"
)
