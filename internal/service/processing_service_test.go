package service

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/dto"
	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/model"
	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/repository/memory"
	"github.com/tarabaramaksym/jira-to-bulletpoints/pkg/csvproc"
	"github.com/tarabaramaksym/jira-to-bulletpoints/pkg/llm"
)

type recordedEvent struct {
	event   string
	payload interface{}
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (e *recordingEmitter) Emit(event string, payload interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, recordedEvent{event: event, payload: payload})
}

func (e *recordingEmitter) names() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.events))
	for i, ev := range e.events {
		out[i] = ev.event
	}
	return out
}

func (e *recordingEmitter) last() recordedEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.events[len(e.events)-1]
}

type pipelineFixture struct {
	svc     *ProcessingService
	repo    *memory.SessionRepository
	files   *FileManager
	session *model.SessionData
}

// newPipelineFixture wires a processing service around a real temp dir and
// session repository, with an uploaded two-row CSV already in place.
// tokenLimit is sized so each row lands in its own batch.
func newPipelineFixture(t *testing.T, provider llm.LLMProvider, tokenLimit int) *pipelineFixture {
	t.Helper()

	files, err := NewFileManager(t.TempDir(), time.Hour, nopLogger{})
	require.NoError(t, err)

	repo := memory.NewSessionRepository(time.Hour, time.Minute, true, nil)

	var aiService *AIService
	if provider != nil {
		aiService, _ = newTestAIService(provider)
	}

	svc := NewProcessingService(
		aiService,
		csvproc.NewProcessor(tokenLimit),
		files,
		repo,
		nopLogger{},
	)

	csv := "Summary,Description\n" +
		"Migrated billing to Postgres,Dual writes with zero downtime\n" +
		"Fixed exporter memory leak,Switched to streaming writes\n"
	path, err := files.SaveUpload([]byte(csv), "sess1")
	require.NoError(t, err)

	session := &model.SessionData{
		ID: "sess1",
		CSVData: &model.CSVData{
			FilePath: path,
			Filename: "jira-export.csv",
			RowCount: 2,
		},
	}
	repo.Save(session)

	return &pipelineFixture{svc: svc, repo: repo, files: files, session: session}
}

func processRequest() *dto.ProcessRequest {
	return &dto.ProcessRequest{SelectedFields: []string{"Summary", "Description"}}
}

func TestProcessDegradedModeWithoutProvider(t *testing.T) {
	fx := newPipelineFixture(t, nil, 3000)
	fx.svc.InitState("conn1", "sess1")
	emitter := &recordingEmitter{}

	fx.svc.Process(context.Background(), "conn1", emitter, processRequest(), fx.session, "sess1")

	assert.Equal(t, []string{
		dto.EventProcessingStarted,
		dto.EventProcessingCompleted,
	}, emitter.names())

	completed, ok := emitter.last().payload.(dto.ProcessingCompleted)
	require.True(t, ok)
	assert.Equal(t, []string{"Original CSV content (AI processing not available)"}, completed.Achievements)
	assert.Equal(t, 1, completed.TotalAchievements)
	assert.Equal(t, 100, completed.Progress)

	saved, found := fx.repo.Get("sess1")
	require.True(t, found)
	require.NotNil(t, saved.ProcessedData)
	assert.Equal(t, completed.Achievements, saved.ProcessedData.Achievements)
}

func TestProcessFullPipelineEventSequence(t *testing.T) {
	provider := &scriptedProvider{results: []scriptedResult{
		{response: "- Migrated billing to Postgres with zero downtime\n"},
		{response: "- Fixed a memory leak in the report exporter\n"},
		{response: "- Migrated billing to Postgres with zero downtime\n- Fixed a memory leak in the report exporter\n"},
	}}
	// Low token limit so the two rows split into two batches.
	fx := newPipelineFixture(t, provider, 30)
	fx.svc.InitState("conn1", "sess1")
	emitter := &recordingEmitter{}

	fx.svc.Process(context.Background(), "conn1", emitter, processRequest(), fx.session, "sess1")

	assert.Equal(t, []string{
		dto.EventProcessingStarted,
		dto.EventChunkProgress,  // 0 of 3
		dto.EventChunkProgress,  // chunk 1
		dto.EventChunkCompleted, // chunk 1
		dto.EventChunkProgress,  // chunk 2
		dto.EventChunkCompleted, // chunk 2
		dto.EventChunkProgress,  // dedup
		dto.EventChunkCompleted, // dedup
		dto.EventProcessingCompleted,
	}, emitter.names())

	first, ok := emitter.events[3].payload.(dto.ChunkCompleted)
	require.True(t, ok)
	assert.Equal(t, 1, first.ChunkIndex)
	assert.Equal(t, 33, first.Progress)
	assert.Equal(t, []string{"- Migrated billing to Postgres with zero downtime"}, first.PartialResults)

	completed, ok := emitter.last().payload.(dto.ProcessingCompleted)
	require.True(t, ok)
	assert.Equal(t, []string{
		"Migrated billing to Postgres with zero downtime",
		"Fixed a memory leak in the report exporter",
	}, completed.Achievements)
	assert.Equal(t, 2, completed.TotalAchievements)

	assert.Equal(t, 3, provider.calls, "two chunk calls plus one deduplication call")
}

func TestProcessCancelledBetweenBatches(t *testing.T) {
	var fx *pipelineFixture
	provider := &scriptedProvider{
		results: []scriptedResult{
			{response: "- First chunk result\n"},
			{response: "- Never reached\n"},
		},
	}
	// Cancel while the first chunk is in flight; the loop observes the flag
	// before starting the second one.
	provider.onChat = func(call int) {
		if call == 0 {
			require.True(t, fx.svc.Cancel("conn1"))
		}
	}
	fx = newPipelineFixture(t, provider, 30)
	fx.svc.InitState("conn1", "sess1")
	emitter := &recordingEmitter{}

	fx.svc.Process(context.Background(), "conn1", emitter, processRequest(), fx.session, "sess1")

	names := emitter.names()
	assert.Equal(t, dto.EventProcessingCancelled, names[len(names)-1])
	assert.NotContains(t, names, dto.EventProcessingCompleted)
	assert.Equal(t, 1, provider.calls)

	saved, found := fx.repo.Get("sess1")
	require.True(t, found)
	assert.Nil(t, saved.ProcessedData, "a cancelled run must not persist partial results")
}

func TestProcessChunkFailureEmitsRetryableError(t *testing.T) {
	provider := &scriptedProvider{results: []scriptedResult{
		{err: assert.AnError},
		{err: assert.AnError},
		{err: assert.AnError},
	}}
	fx := newPipelineFixture(t, provider, 30)
	fx.svc.InitState("conn1", "sess1")
	emitter := &recordingEmitter{}

	fx.svc.Process(context.Background(), "conn1", emitter, processRequest(), fx.session, "sess1")

	last := emitter.last()
	assert.Equal(t, dto.EventProcessingError, last.event)
	errPayload, ok := last.payload.(dto.ProcessingError)
	require.True(t, ok)
	assert.Contains(t, errPayload.Error, "Failed to process chunk 1")
	assert.True(t, errPayload.CanRetry)
}

func TestProcessMissingFileFailsBeforeStarting(t *testing.T) {
	fx := newPipelineFixture(t, nil, 3000)
	fx.svc.InitState("conn1", "sess1")
	fx.files.CleanupTempFile(fx.session.CSVData.FilePath)
	emitter := &recordingEmitter{}

	fx.svc.Process(context.Background(), "conn1", emitter, processRequest(), fx.session, "sess1")

	assert.Equal(t, []string{dto.EventProcessingError}, emitter.names())
}

func TestJobStateTransitions(t *testing.T) {
	fx := newPipelineFixture(t, nil, 3000)
	fx.svc.InitState("conn1", "sess1")

	require.NoError(t, fx.svc.markRunning("conn1", OperationProcessing))
	assert.EqualError(t, fx.svc.markRunning("conn1", OperationReprocessing),
		"another operation is already in progress")

	assert.True(t, fx.svc.Cancel("conn1"))
	assert.False(t, fx.svc.Cancel("conn1"), "cancel is one-shot per run")
	assert.False(t, fx.svc.isProcessing("conn1"))

	// A cancelled run frees the slot for the next one.
	fx.svc.finishRun("conn1")
	require.NoError(t, fx.svc.markRunning("conn1", OperationReprocessing))
}

func TestCancelWithoutRunReturnsFalse(t *testing.T) {
	fx := newPipelineFixture(t, nil, 3000)
	fx.svc.InitState("conn1", "sess1")

	assert.False(t, fx.svc.Cancel("conn1"))
	assert.False(t, fx.svc.Cancel("unknown-conn"))
}

func TestReprocessPassthroughWithoutPrompt(t *testing.T) {
	fx := newPipelineFixture(t, nil, 3000)
	fx.svc.InitState("conn1", "sess1")
	emitter := &recordingEmitter{}

	selected := []string{"Migrated billing to Postgres", "Fixed exporter memory leak"}
	req := &dto.ReprocessRequest{SelectedAchievements: selected}

	fx.svc.Reprocess(context.Background(), "conn1", emitter, req, fx.session, "sess1")

	assert.Equal(t, []string{
		dto.EventProcessingStarted,
		dto.EventChunkProgress,
		dto.EventChunkCompleted,
		dto.EventProcessingCompleted,
	}, emitter.names())

	completed, ok := emitter.last().payload.(dto.ProcessingCompleted)
	require.True(t, ok)
	assert.Equal(t, selected, completed.Achievements)
	assert.True(t, completed.DownloadReady)

	saved, found := fx.repo.Get("sess1")
	require.True(t, found)
	require.NotNil(t, saved.FinalData)
	assert.Equal(t, selected, saved.FinalData.Achievements)

	require.NotEmpty(t, saved.FinalData.FilePath)
	content, err := os.ReadFile(saved.FinalData.FilePath)
	require.NoError(t, err)
	assert.Equal(t, "Migrated billing to Postgres\n\nFixed exporter memory leak", string(content))
	assert.Equal(t, fx.files.TempDir(), filepath.Dir(saved.FinalData.FilePath))
}

func TestReprocessWithAdditionalPrompt(t *testing.T) {
	provider := &scriptedProvider{results: []scriptedResult{
		{response: "- Led zero-downtime billing migration to Postgres\n- Eliminated exporter memory leak\n"},
	}}
	fx := newPipelineFixture(t, provider, 3000)
	fx.svc.InitState("conn1", "sess1")
	emitter := &recordingEmitter{}

	req := &dto.ReprocessRequest{
		SelectedAchievements: []string{"Migrated billing to Postgres", "Fixed exporter memory leak"},
		AdditionalPrompt:     "make them more impactful",
	}

	fx.svc.Reprocess(context.Background(), "conn1", emitter, req, fx.session, "sess1")

	completed, ok := emitter.last().payload.(dto.ProcessingCompleted)
	require.True(t, ok)
	assert.Equal(t, []string{
		"Led zero-downtime billing migration to Postgres",
		"Eliminated exporter memory leak",
	}, completed.Achievements)
	assert.True(t, completed.DownloadReady)

	require.Len(t, provider.lastHistory, 2)
	assert.Contains(t, provider.lastHistory[1].Content, "make them more impactful")
}

func TestReprocessBlankPromptSkipsRemoteCall(t *testing.T) {
	provider := &scriptedProvider{}
	fx := newPipelineFixture(t, provider, 3000)
	fx.svc.InitState("conn1", "sess1")
	emitter := &recordingEmitter{}

	req := &dto.ReprocessRequest{
		SelectedAchievements: []string{"Kept as-is"},
		AdditionalPrompt:     "   ",
	}

	fx.svc.Reprocess(context.Background(), "conn1", emitter, req, fx.session, "sess1")

	assert.Equal(t, 0, provider.calls)
	completed, ok := emitter.last().payload.(dto.ProcessingCompleted)
	require.True(t, ok)
	assert.Equal(t, []string{"Kept as-is"}, completed.Achievements)
}
