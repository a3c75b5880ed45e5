package api

import "encoding/json"

// APIError is a non-2xx answer from the backend. Message is what the backend
// said, or a fallback phrase for the failed call.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

func newAPIError(status int, raw []byte, fallback string) *APIError {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	message := fallback
	if err := json.Unmarshal(raw, &payload); err == nil {
		switch {
		case payload.Message != "":
			message = payload.Message
		case payload.Error != "":
			message = payload.Error
		}
	}
	return &APIError{Status: status, Message: message}
}
