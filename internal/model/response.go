package model

// ErrorResponse is the standard envelope for error responses.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the structured error information returned by the API.
type ErrorDetail struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// SessionResponse is returned by the session issuance endpoint.
type SessionResponse struct {
	Success bool   `json:"success"`
	Name    string `json:"name,omitempty"`
	Token   string `json:"token,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CheckResponse is returned by the session check endpoint.
type CheckResponse struct {
	Authenticated bool   `json:"authenticated"`
	Name          string `json:"name,omitempty"`
	ToolID        string `json:"toolId,omitempty"`
	Expired       bool   `json:"expired,omitempty"`
	Invalid       bool   `json:"invalid,omitempty"`
}

// DenialResponse is returned when a tool access check is refused. Reason is
// a short machine-checkable code; Message is for humans. Neither ever leaks
// which users exist.
type DenialResponse struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}
