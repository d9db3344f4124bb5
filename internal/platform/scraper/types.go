package scraper

import "github.com/phrazzld/scout-api/internal/domain"

// SubmitRequest is the body of POST /remote-scrape.
type SubmitRequest struct {
	Target           string  `json:"target"`
	TargetYes        int     `json:"target_yes"`
	BatchSize        int     `json:"batch_size"`
	NumBioPages      int     `json:"num_bio_pages"`
	CriteriaPresetID *string `json:"criteria_preset_id"`
	CriteriaText     *string `json:"criteria_text"`
}

// SubmitResponse is the worker's answer to a submission. Status is queued,
// completed or failed.
type SubmitResponse struct {
	Status    domain.RemoteStatus `json:"status"`
	Operation string              `json:"operation,omitempty"`
	ExecID    string              `json:"exec_id,omitempty"`
	Results   []domain.Profile    `json:"results,omitempty"`
	Count     int                 `json:"count,omitempty"`
	Message   string              `json:"message,omitempty"`
}

// statusResponse is the body of GET /scrape-status.
type statusResponse struct {
	Status       domain.RemoteStatus `json:"status"`
	Results      []domain.Profile    `json:"results,omitempty"`
	Message      string              `json:"message,omitempty"`
	ErrorMessage string              `json:"error_message,omitempty"`
}
