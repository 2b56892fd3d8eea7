package model

import "time"

// CSVData describes one uploaded dataset. A session owns at most one; a
// re-upload releases the previous temp file and replaces it.
type CSVData struct {
	FilePath        string    `json:"filePath"`
	Filename        string    `json:"filename"`
	Headers         []string  `json:"headers"`         // deduplicated, order preserved
	OriginalHeaders []string  `json:"originalHeaders"` // as parsed, duplicates intact
	RowCount        int       `json:"rowCount"`
	UploadTime      time.Time `json:"uploadTime"`
}

// ProcessedData is the outcome of one full summarize-then-deduplicate run.
// Reprocessing the same upload overwrites it.
type ProcessedData struct {
	SelectedFields []string  `json:"selectedFields"`
	AIPrompt       string    `json:"aiPrompt"`
	ProcessTime    time.Time `json:"processTime"`
	Achievements   []string  `json:"achievements"`
}

// FinalData is the export-ready result of the refine step.
type FinalData struct {
	Achievements     []string  `json:"achievements"`
	AdditionalPrompt string    `json:"additionalPrompt,omitempty"`
	ProcessTime      time.Time `json:"processTime"`
	FilePath         string    `json:"filePath,omitempty"`
}

// SessionData aggregates everything one logical user session owns.
type SessionData struct {
	ID            string         `json:"id"`
	CSVData       *CSVData       `json:"csvData,omitempty"`
	ProcessedData *ProcessedData `json:"processedData,omitempty"`
	FinalData     *FinalData     `json:"finalData,omitempty"`
}

// TempFilePaths lists the storage locations owned by this session, for
// cleanup. Nil entries are skipped by the file manager.
func (s *SessionData) TempFilePaths() []string {
	var paths []string
	if s.CSVData != nil && s.CSVData.FilePath != "" {
		paths = append(paths, s.CSVData.FilePath)
	}
	if s.FinalData != nil && s.FinalData.FilePath != "" {
		paths = append(paths, s.FinalData.FilePath)
	}
	return paths
}
