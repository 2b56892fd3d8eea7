package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/dto"
	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/model"
	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/repository/memory"
	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/service"
	"github.com/tarabaramaksym/jira-to-bulletpoints/pkg/csvproc"
)

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }

type wsFixture struct {
	hub    *Hub
	client *Client
	repo   *memory.SessionRepository
}

// newWSFixture wires a running hub with one registered client whose frames
// can be read straight off the Send channel. No real socket involved.
func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()

	files, err := service.NewFileManager(t.TempDir(), time.Hour, nopLogger{})
	require.NoError(t, err)
	repo := memory.NewSessionRepository(time.Hour, time.Minute, true, nil)

	processing := service.NewProcessingService(
		nil,
		csvproc.NewProcessor(3000),
		files,
		repo,
		nopLogger{},
	)

	hub := NewHub(nil, nopLogger{})
	go hub.Run()

	dispatcher := NewDispatcher(processing, repo, nopLogger{})

	client := &Client{
		Hub:        hub,
		ConnID:     "conn1",
		SessionID:  "sess1",
		Send:       make(chan []byte, 16),
		dispatcher: dispatcher,
	}
	hub.register <- client
	dispatcher.OnConnect(client)

	return &wsFixture{hub: hub, client: client, repo: repo}
}

func (f *wsFixture) dispatch(t *testing.T, frame string) {
	t.Helper()
	f.client.dispatcher.HandleMessage(f.client, []byte(frame))
}

func (f *wsFixture) nextFrame(t *testing.T) Envelope {
	t.Helper()
	select {
	case raw := <-f.client.Send:
		var env Envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("no frame received")
		return Envelope{}
	}
}

func (f *wsFixture) nextError(t *testing.T) dto.ProcessingError {
	t.Helper()
	env := f.nextFrame(t)
	require.Equal(t, dto.EventProcessingError, env.Event)
	var payload dto.ProcessingError
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	return payload
}

func TestDispatcherRejectsMalformedFrame(t *testing.T) {
	fx := newWSFixture(t)

	fx.dispatch(t, "{not json")

	assert.Equal(t, "Malformed message", fx.nextError(t).Error)
}

func TestDispatcherCancelWithoutRun(t *testing.T) {
	fx := newWSFixture(t)

	fx.dispatch(t, `{"event":"cancel-processing"}`)

	assert.Equal(t, "No cancellable operation in progress", fx.nextError(t).Error)
}

func TestDispatcherProcessingWithoutUpload(t *testing.T) {
	fx := newWSFixture(t)

	fx.dispatch(t, `{"event":"start-processing","data":{"selectedFields":["Summary"]}}`)

	assert.Equal(t, "No CSV data found. Please upload a file first.", fx.nextError(t).Error)
}

func TestDispatcherProcessingWithoutSelectedFields(t *testing.T) {
	fx := newWSFixture(t)

	fx.dispatch(t, `{"event":"start-processing","data":{"selectedFields":[]}}`)

	assert.Equal(t, "No fields selected for processing", fx.nextError(t).Error)
}

func TestDispatcherReprocessingWithoutProcessedData(t *testing.T) {
	fx := newWSFixture(t)

	fx.dispatch(t, `{"event":"start-reprocessing","data":{"selectedAchievements":["item"]}}`)

	assert.Equal(t, "No processed data available. Please process a file first.", fx.nextError(t).Error)
}

func TestDispatcherRecoversSessionForReprocessing(t *testing.T) {
	fx := newWSFixture(t)

	// The data lives under a different identity than the connecting client.
	fx.repo.Save(&model.SessionData{
		ID: "other-session",
		ProcessedData: &model.ProcessedData{
			Achievements: []string{"Recovered achievement"},
		},
	})

	fx.dispatch(t, `{"event":"start-reprocessing","data":{"selectedAchievements":["Recovered achievement"]}}`)

	// The run happens asynchronously; wait for its completion event.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case raw := <-fx.client.Send:
			var env Envelope
			require.NoError(t, json.Unmarshal(raw, &env))
			if env.Event == dto.EventProcessingCompleted {
				var payload dto.ProcessingCompleted
				require.NoError(t, json.Unmarshal(env.Data, &payload))
				assert.Equal(t, []string{"Recovered achievement"}, payload.Achievements)
				assert.True(t, payload.DownloadReady)
				return
			}
			require.NotEqual(t, dto.EventProcessingError, env.Event)
		case <-deadline:
			t.Fatal("processing-completed never arrived")
		}
	}
}

func TestDispatcherIgnoresUnknownEvent(t *testing.T) {
	fx := newWSFixture(t)

	fx.dispatch(t, `{"event":"make-coffee"}`)

	select {
	case raw := <-fx.client.Send:
		t.Fatalf("unexpected frame: %s", raw)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHubEmitToUnknownConnectionIsDropped(t *testing.T) {
	hub := NewHub(nil, nopLogger{})
	go hub.Run()

	// Nothing registered and no relay configured: must not panic or block.
	hub.Emit("ghost", dto.EventProcessingError, dto.ProcessingError{Error: "x"})
}
