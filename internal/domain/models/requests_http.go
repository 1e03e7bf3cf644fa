package models

// Requests for the dashboard HTTP endpoints. Defined in domain for consistency and reuse.

type ConfirmRequest struct {
	SignalID string `json:"signal_id" validate:"required"`
}

type HistoryRequest struct {
	Page     int `query:"page" json:"page" default:"1" validate:"gte=1"`
	PageSize int `query:"page_size" json:"page_size" default:"10" validate:"gte=1,lte=100"`
}

type AckRequest struct {
	UsageID string `json:"usage_id" validate:"required"`
}
