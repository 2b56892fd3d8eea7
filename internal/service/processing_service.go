package service

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/dto"
	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/model"
	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/pkg/logger"
	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/repository/memory"
	"github.com/tarabaramaksym/jira-to-bulletpoints/pkg/csvproc"
)

// Operation names the pipeline phase a connection's job is in.
type Operation string

const (
	OperationNone         Operation = "none"
	OperationProcessing   Operation = "processing"
	OperationReprocessing Operation = "reprocessing"
)

// JobState tracks one live connection's run. Invariant: CanCancel implies
// IsProcessing.
type JobState struct {
	SessionID        string
	IsProcessing     bool
	CanCancel        bool
	CurrentOperation Operation
}

// EventEmitter is the push channel back to one connected client. Callers
// have no return-value channel, so every outcome goes through here.
type EventEmitter interface {
	Emit(event string, payload interface{})
}

// ProcessingService drives the summarize-then-deduplicate pipeline and the
// refine flow, one sequential run per connection. Cancellation is
// cooperative: the flag is polled between batches, an in-flight remote call
// is never interrupted.
type ProcessingService struct {
	aiService   *AIService // nil when no LLM backend is configured
	processor   *csvproc.Processor
	fileManager *FileManager
	sessionRepo *memory.SessionRepository
	logger      logger.ILogger

	mu   sync.Mutex
	jobs map[string]*JobState
}

func NewProcessingService(
	aiService *AIService,
	processor *csvproc.Processor,
	fileManager *FileManager,
	sessionRepo *memory.SessionRepository,
	log logger.ILogger,
) *ProcessingService {
	return &ProcessingService{
		aiService:   aiService,
		processor:   processor,
		fileManager: fileManager,
		sessionRepo: sessionRepo,
		logger:      log,
		jobs:        make(map[string]*JobState),
	}
}

// AIEnabled reports whether a remote summarizer is configured at all.
func (s *ProcessingService) AIEnabled() bool {
	return s.aiService != nil
}

// InitState registers a connection in the job registry.
func (s *ProcessingService) InitState(connID, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[connID] = &JobState{
		SessionID:        sessionID,
		CurrentOperation: OperationNone,
	}
}

// CleanupState drops a connection's job state when it disconnects.
func (s *ProcessingService) CleanupState(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, connID)
}

// Cancel flips the processing flag off if a cancellable run is active.
// The running pipeline observes the flag at its next batch boundary.
func (s *ProcessingService) Cancel(connID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.jobs[connID]
	if !ok || !state.IsProcessing || !state.CanCancel {
		return false
	}
	state.IsProcessing = false
	state.CanCancel = false
	return true
}

// markRunning transitions Idle -> Running. Starting while already running is
// a caller error, rejected immediately rather than queued.
func (s *ProcessingService) markRunning(connID string, op Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.jobs[connID]
	if !ok {
		return fmt.Errorf("no job state for connection")
	}
	if state.IsProcessing {
		return fmt.Errorf("another operation is already in progress")
	}
	state.IsProcessing = true
	state.CanCancel = true
	state.CurrentOperation = op
	return nil
}

func (s *ProcessingService) finishRun(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.jobs[connID]; ok {
		state.IsProcessing = false
		state.CanCancel = false
		state.CurrentOperation = OperationNone
	}
}

func (s *ProcessingService) isProcessing(connID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.jobs[connID]
	return ok && state.IsProcessing
}

// Process runs the full pipeline: parse, batch, summarize each batch with
// progress events, deduplicate the merged output, persist the result.
func (s *ProcessingService) Process(ctx context.Context, connID string, emitter EventEmitter, req *dto.ProcessRequest, session *model.SessionData, sessionID string) {
	if session.CSVData == nil || !s.fileManager.Exists(session.CSVData.FilePath) {
		emitter.Emit(dto.EventProcessingError, dto.ProcessingError{Error: "CSV file no longer exists"})
		return
	}
	if len(req.SelectedFields) == 0 {
		emitter.Emit(dto.EventProcessingError, dto.ProcessingError{Error: "No fields selected for processing"})
		return
	}

	if err := s.markRunning(connID, OperationProcessing); err != nil {
		emitter.Emit(dto.EventProcessingError, dto.ProcessingError{Error: err.Error()})
		return
	}
	defer s.finishRun(connID)

	emitter.Emit(dto.EventProcessingStarted, dto.ProcessingStarted{
		Message:     "Starting processing...",
		TotalChunks: "calculating",
	})

	raw, err := os.ReadFile(session.CSVData.FilePath)
	if err != nil {
		emitter.Emit(dto.EventProcessingError, dto.ProcessingError{Error: "CSV file no longer exists"})
		return
	}

	if s.aiService == nil {
		// Degraded mode: no backend configured, hand back a placeholder so
		// the client flow still completes.
		s.completeProcessing(emitter, req, session, sessionID,
			[]string{"Original CSV content (AI processing not available)"})
		return
	}

	records, columns, err := s.processor.Parse(string(raw), req.SelectedFields)
	if err != nil {
		emitter.Emit(dto.EventProcessingError, dto.ProcessingError{Error: "Invalid CSV format: " + err.Error()})
		return
	}

	batches := s.processor.CreateBatches(records, columns)
	totalSteps := len(batches) + 1

	emitter.Emit(dto.EventChunkProgress, dto.ChunkProgress{
		Current: 0,
		Total:   totalSteps,
		Status:  fmt.Sprintf("Starting processing of %d chunks + deduplication...", len(batches)),
	})

	var processedChunks []string
	for i, batch := range batches {
		if !s.isProcessing(connID) {
			emitter.Emit(dto.EventProcessingCancelled, dto.ProcessingCancelled{Message: "Processing cancelled by user"})
			return
		}

		currentStep := i + 1
		emitter.Emit(dto.EventChunkProgress, dto.ChunkProgress{
			Current: currentStep,
			Total:   totalSteps,
			Status:  fmt.Sprintf("Processing data chunk %d of %d...", currentStep, len(batches)),
		})

		formatted := s.processor.FormatBatch(batch, columns)
		chunkResult, err := s.aiService.SummarizeBatch(ctx, formatted, req.AIPrompt)
		if err != nil {
			emitter.Emit(dto.EventProcessingError, dto.ProcessingError{
				Error:    fmt.Sprintf("Failed to process chunk %d: %v", currentStep, err),
				CanRetry: true,
			})
			return
		}
		processedChunks = append(processedChunks, chunkResult)

		emitter.Emit(dto.EventChunkCompleted, dto.ChunkCompleted{
			ChunkIndex:     currentStep,
			Progress:       percent(currentStep, totalSteps),
			PartialResults: firstNonBlankLines(chunkResult, 3),
		})
	}

	emitter.Emit(dto.EventChunkProgress, dto.ChunkProgress{
		Current: totalSteps,
		Total:   totalSteps,
		Status:  "Performing final deduplication...",
	})

	merged := strings.Join(processedChunks, "\n\n")
	finalResult, err := s.aiService.DeduplicateMerged(ctx, merged)
	if err != nil {
		emitter.Emit(dto.EventProcessingError, dto.ProcessingError{
			Error:    "Deduplication failed: " + err.Error(),
			CanRetry: true,
		})
		return
	}

	emitter.Emit(dto.EventChunkCompleted, dto.ChunkCompleted{
		ChunkIndex:     totalSteps,
		Progress:       100,
		PartialResults: []string{"Deduplication completed successfully"},
	})

	s.completeProcessing(emitter, req, session, sessionID, ParseAchievementLines(finalResult))
}

func (s *ProcessingService) completeProcessing(emitter EventEmitter, req *dto.ProcessRequest, session *model.SessionData, sessionID string, achievements []string) {
	session.ProcessedData = &model.ProcessedData{
		SelectedFields: req.SelectedFields,
		AIPrompt:       req.AIPrompt,
		ProcessTime:    time.Now(),
		Achievements:   achievements,
	}
	if session.ID == "" {
		session.ID = sessionID
	}
	s.sessionRepo.Save(session)

	emitter.Emit(dto.EventProcessingCompleted, dto.ProcessingCompleted{
		Achievements:      achievements,
		TotalAchievements: len(achievements),
		Progress:          100,
	})
}

// Reprocess runs the refine flow over a user-curated subset: an optional
// remote rework, then an export file plus the final persisted result.
func (s *ProcessingService) Reprocess(ctx context.Context, connID string, emitter EventEmitter, req *dto.ReprocessRequest, session *model.SessionData, sessionID string) {
	if len(req.SelectedAchievements) == 0 {
		emitter.Emit(dto.EventProcessingError, dto.ProcessingError{Error: "No achievements selected"})
		return
	}

	if err := s.markRunning(connID, OperationReprocessing); err != nil {
		emitter.Emit(dto.EventProcessingError, dto.ProcessingError{Error: err.Error()})
		return
	}
	defer s.finishRun(connID)

	emitter.Emit(dto.EventProcessingStarted, dto.ProcessingStarted{Message: "Starting reprocessing..."})

	finalAchievements := req.SelectedAchievements
	useAI := strings.TrimSpace(req.AdditionalPrompt) != "" && s.aiService != nil

	totalSteps := 1
	status := "Finalizing selected achievements..."
	if useAI {
		totalSteps = 2
		status = "Preparing selected achievements..."
	}
	emitter.Emit(dto.EventChunkProgress, dto.ChunkProgress{Current: 1, Total: totalSteps, Status: status})

	if useAI {
		emitter.Emit(dto.EventChunkProgress, dto.ChunkProgress{
			Current: 2,
			Total:   totalSteps,
			Status:  "Applying additional processing...",
		})

		achievementsText := strings.Join(req.SelectedAchievements, "\n")
		result, err := s.aiService.RefineSelection(ctx, achievementsText, req.AdditionalPrompt)
		if err != nil {
			emitter.Emit(dto.EventProcessingError, dto.ProcessingError{
				Error:    "Reprocessing failed: " + err.Error(),
				CanRetry: true,
			})
			return
		}
		finalAchievements = ParseAchievementLines(result)

		emitter.Emit(dto.EventChunkCompleted, dto.ChunkCompleted{
			ChunkIndex:     totalSteps,
			Progress:       100,
			PartialResults: []string{"Additional processing completed successfully"},
		})
	} else {
		emitter.Emit(dto.EventChunkCompleted, dto.ChunkCompleted{
			ChunkIndex:     1,
			Progress:       100,
			PartialResults: []string{"Achievement selection completed"},
		})
	}

	filePath := s.fileManager.SaveAchievements(finalAchievements, sessionID)

	session.FinalData = &model.FinalData{
		Achievements:     finalAchievements,
		AdditionalPrompt: req.AdditionalPrompt,
		ProcessTime:      time.Now(),
		FilePath:         filePath,
	}
	if session.ID == "" {
		session.ID = sessionID
	}
	s.sessionRepo.Save(session)

	emitter.Emit(dto.EventProcessingCompleted, dto.ProcessingCompleted{
		Achievements:      finalAchievements,
		TotalAchievements: len(finalAchievements),
		Progress:          100,
		DownloadReady:     true,
	})
}

func percent(step, total int) int {
	return int(math.Round(float64(step) / float64(total) * 100))
}

func firstNonBlankLines(text string, n int) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) == n {
			break
		}
	}
	return lines
}
