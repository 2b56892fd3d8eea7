package websocket

import (
	"context"
	"encoding/json"

	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/dto"
	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/model"
	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/pkg/logger"
	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/pkg/serverutils"
	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/repository/memory"
	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/service"
)

// Dispatcher routes inbound client events to the processing service,
// resolving the caller's session (with fallback-map recovery) first.
type Dispatcher struct {
	processing *service.ProcessingService
	sessions   *memory.SessionRepository
	logger     logger.ILogger
}

func NewDispatcher(processing *service.ProcessingService, sessions *memory.SessionRepository, log logger.ILogger) *Dispatcher {
	return &Dispatcher{
		processing: processing,
		sessions:   sessions,
		logger:     log,
	}
}

func (d *Dispatcher) OnConnect(c *Client) {
	d.processing.InitState(c.ConnID, c.SessionID)
}

func (d *Dispatcher) OnDisconnect(c *Client) {
	d.processing.CleanupState(c.ConnID)
}

func (d *Dispatcher) HandleMessage(c *Client, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.Hub.Emit(c.ConnID, dto.EventProcessingError, dto.ProcessingError{Error: "Malformed message"})
		return
	}

	switch env.Event {
	case dto.EventStartProcessing:
		d.handleProcessing(c, env.Data)
	case dto.EventStartReprocessing:
		d.handleReprocessing(c, env.Data)
	case dto.EventCancelProcessing:
		d.handleCancel(c)
	default:
		d.logger.Warn("Dispatcher", "Unknown event", map[string]interface{}{
			"conn_id": c.ConnID,
			"event":   env.Event,
		})
	}
}

func (d *Dispatcher) handleProcessing(c *Client, data json.RawMessage) {
	var req dto.ProcessRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.Hub.Emit(c.ConnID, dto.EventProcessingError, dto.ProcessingError{Error: "Malformed processing request"})
		return
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		c.Hub.Emit(c.ConnID, dto.EventProcessingError, dto.ProcessingError{Error: "No fields selected for processing"})
		return
	}

	session, sessionID, ok := d.resolveSession(c, memory.DataKeyCSV)
	if !ok {
		c.Hub.Emit(c.ConnID, dto.EventProcessingError, dto.ProcessingError{
			Error: "No CSV data found. Please upload a file first.",
		})
		return
	}
	if session.CSVData == nil || session.CSVData.FilePath == "" {
		c.Hub.Emit(c.ConnID, dto.EventProcessingError, dto.ProcessingError{
			Error: "No CSV data found in session. Please upload a file first.",
		})
		return
	}

	// Run on its own goroutine so cancel-processing frames keep flowing
	// through the read loop; the job-state guard rejects overlap.
	go d.processing.Process(context.Background(), c.ConnID, c.Hub.Emitter(c.ConnID), &req, session, sessionID)
}

func (d *Dispatcher) handleReprocessing(c *Client, data json.RawMessage) {
	var req dto.ReprocessRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.Hub.Emit(c.ConnID, dto.EventProcessingError, dto.ProcessingError{Error: "Malformed reprocessing request"})
		return
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		c.Hub.Emit(c.ConnID, dto.EventProcessingError, dto.ProcessingError{Error: "No achievements selected"})
		return
	}

	session, sessionID, ok := d.resolveSession(c, memory.DataKeyProcessed)
	if !ok {
		c.Hub.Emit(c.ConnID, dto.EventProcessingError, dto.ProcessingError{
			Error: "No processed data available. Please process a file first.",
		})
		return
	}

	go d.processing.Reprocess(context.Background(), c.ConnID, c.Hub.Emitter(c.ConnID), &req, session, sessionID)
}

func (d *Dispatcher) handleCancel(c *Client) {
	if d.processing.Cancel(c.ConnID) {
		c.Hub.Emit(c.ConnID, dto.EventProcessingCancelled, dto.ProcessingCancelled{
			Message: "Processing cancelled successfully",
		})
	} else {
		c.Hub.Emit(c.ConnID, dto.EventProcessingError, dto.ProcessingError{
			Error: "No cancellable operation in progress",
		})
	}
}

// resolveSession looks the caller's identity up and, when that misses or
// lacks the required data, falls back to scanning for the most recent
// session that has it.
func (d *Dispatcher) resolveSession(c *Client, dataKey string) (*model.SessionData, string, bool) {
	session, ok := d.sessions.Get(c.SessionID)
	if ok && hasRequiredData(session, dataKey) {
		return session, c.SessionID, true
	}

	recovered, found := d.sessions.FindSessionWithData(dataKey)
	if !found {
		return nil, "", false
	}
	return recovered, recovered.ID, true
}

func hasRequiredData(s *model.SessionData, dataKey string) bool {
	switch dataKey {
	case memory.DataKeyCSV:
		return s.CSVData != nil
	case memory.DataKeyProcessed:
		return s.ProcessedData != nil
	case memory.DataKeyFinal:
		return s.FinalData != nil
	}
	return false
}
