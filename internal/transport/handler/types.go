package handler

import "github.com/trunov/mediaconv/internal/entities"

// convertRequest is the JSON body of /convert.
type convertRequest struct {
	Data           *string           `json:"data"`
	AsyncMode      bool              `json:"async_mode"`
	Extension      string            `json:"extension"`
	WebhookURL     *string           `json:"webhook_url"`
	WebhookHeaders map[string]string `json:"webhook_headers"`
}

type ConvertParams struct {
	Input          entities.Input    `validate:"-"`
	Extension      string            `validate:"max=16"`
	Async          bool
	WebhookURL     string            `validate:"omitempty,http_url"`
	WebhookHeaders map[string]string `validate:"omitempty,max=32,dive,keys,required,max=128,endkeys,max=4096"`
}

type acceptedResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}
