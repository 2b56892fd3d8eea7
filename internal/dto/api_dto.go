package dto

type UploadResponse struct {
	Success         bool     `json:"success"`
	Filename        string   `json:"filename"`
	Headers         []string `json:"headers"`
	OriginalHeaders []string `json:"originalHeaders"`
	RowCount        int      `json:"rowCount"`
}

type AIStatusResponse struct {
	Enabled bool   `json:"enabled"`
	Working *bool  `json:"working,omitempty"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

type CleanupResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
