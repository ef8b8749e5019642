// Package models defines shared API response types for Wings.
package models

// API response status values.
const (
	APIStatusOK       = "ok"
	APIStatusError    = "error"
	APIStatusAccepted = "accepted"
)

// APIResponse is the JSON envelope returned by every API handler.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: APIStatusOK, Result: result}
}

// SuccessWithMessage creates a successful API response with a message and
// optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: APIStatusOK, Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: APIStatusError, Message: message}
}

// Accepted creates an accepted API response for asynchronous operations.
func Accepted(message string) APIResponse {
	return APIResponse{Status: APIStatusAccepted, Message: message}
}
