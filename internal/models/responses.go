package models

// DatasetResponse is returned by the dataset upload and lookup endpoints
type DatasetResponse struct {
	DatasetID string         `json:"dataset_id"`
	Name      string         `json:"name"`
	FileType  string         `json:"file_type"`
	Columns   []string       `json:"columns"`
	RowCount  int            `json:"row_count"`
	Preview   DatasetPreview `json:"preview"`
}

// NewDatasetResponse builds the API view of a dataset
func NewDatasetResponse(d *Dataset) DatasetResponse {
	return DatasetResponse{
		DatasetID: d.ID,
		Name:      d.Name,
		FileType:  d.FileType,
		Columns:   d.Columns,
		RowCount:  d.RowCount,
		Preview:   d.Preview(),
	}
}

// StatusResponse is a generic acknowledgement
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse carries a single human-readable failure reason
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// InfoResponse for /api/info
type InfoResponse struct {
	Name               string   `json:"name"`
	Version            string   `json:"version"`
	LLMProviders       []string `json:"llm_providers"`
	SupportedFileTypes []string `json:"supported_file_types"`
	// UnsupportedFileTypes lists formats that are recognised but rejected
	UnsupportedFileTypes []string `json:"unsupported_file_types"`
	MaxFileSizeMB        int      `json:"max_file_size_mb"`
}

// DataSourceConfig holds connection details for the SQL source
type DataSourceConfig struct {
	Type     string `json:"type"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}
