package http

// ErrorBody is the single error shape written by every endpoint.
type ErrorBody struct {
	Error string `json:"error"`
}

// ValidationError represents validation error detail.
type ValidationError struct {
	Code    string                 `json:"code,omitempty"`
	Field   string                 `json:"field,omitempty"`
	Message string                 `json:"message,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// MessageBody carries a plain status message, e.g. {"message": "ok"}.
type MessageBody struct {
	Message string `json:"message"`
}
