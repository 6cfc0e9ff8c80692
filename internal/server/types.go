package server

import (
	"time"

	"github.com/rezonia/invoice-processor/internal/model"
)

// UploadResponse is the response for the receipt upload endpoint.
type UploadResponse struct {
	ReceiptID string `json:"receipt_id"`
	Status    string `json:"status"`
	TaskID    string `json:"task_id"`
}

// ReviewableResponse is the JSON shape of a single review queue item.
type ReviewableResponse struct {
	ID             string                 `json:"id"`
	Type           string                 `json:"type"`
	Entity         string                 `json:"entity"`
	CreatedAt      time.Time              `json:"created_at"`
	Summary        string                 `json:"summary"`
	Details        map[string]interface{} `json:"details,omitempty"`
	Confidence     float64                `json:"confidence"`
	RequiresReview bool                   `json:"requires_review"`
	Status         string                 `json:"status"`
	Assignee       string                 `json:"assignee,omitempty"`
	Vendor         string                 `json:"vendor"`
	Date           *time.Time             `json:"date,omitempty"`
	Amount         string                 `json:"amount"`
	AgeHours       float64                `json:"age_hours"`
}

func reviewableResponse(r *model.Reviewable) ReviewableResponse {
	return ReviewableResponse{
		ID:             r.ID,
		Type:           string(r.Type),
		Entity:         string(r.Entity),
		CreatedAt:      r.CreatedAt,
		Summary:        r.Summary,
		Details:        r.Details,
		Confidence:     r.Confidence,
		RequiresReview: r.RequiresReview,
		Status:         string(r.Status),
		Assignee:       r.Assignee,
		Vendor:         r.Vendor,
		Date:           r.Date,
		Amount:         r.Amount,
		AgeHours:       r.AgeHours,
	}
}

// ReviewListResponse is the paginated GET /review/tasks response.
type ReviewListResponse struct {
	Items []ReviewableResponse `json:"items"`
	Total int                  `json:"total"`
}

// ReviewActionRequest is the PATCH /review/tasks/{id} body.
type ReviewActionRequest struct {
	Action      string                 `json:"action"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
	Reason      string                 `json:"reason,omitempty"`
	PerformedBy string                 `json:"performed_by"`
}

// ReviewBatchRequest is the POST /review/batch body.
type ReviewBatchRequest struct {
	IDs         []string               `json:"ids"`
	Action      string                 `json:"action"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
	Reason      string                 `json:"reason,omitempty"`
	PerformedBy string                 `json:"performed_by"`
}

// ReviewBatchResponse reports the per-id outcome of a batch action.
type ReviewBatchResponse struct {
	Success []string          `json:"success"`
	Failed  map[string]string `json:"failed"`
}

// ReviewMetricsResponse is the GET /review/metrics response.
type ReviewMetricsResponse struct {
	PendingCount    int            `json:"pending_count"`
	ApprovedToday   int            `json:"approved_today"`
	RejectedToday   int            `json:"rejected_today"`
	ConfidenceBands map[string]int `json:"confidence_bands"`
	CacheHitRate    float64        `json:"cache_hit_rate"`
}
