package httputil

import (
	"encoding/json"
	"net/http"
)

// APIError is the JSON body of every error the gateway itself produces. The
// shape follows the OpenAI error envelope so clients can share one parser.
type APIError struct {
	Error APIErrorBody `json:"error"`
}

type APIErrorBody struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// Kind fixes the status, type and code of one class of error.
type Kind struct {
	Status int
	Type   string
	Code   string
}

var (
	KindAuth              = Kind{http.StatusUnauthorized, "authentication_error", "invalid_api_key"}
	KindBadRequest        = Kind{http.StatusBadRequest, "invalid_request_error", "invalid_request"}
	KindNotAllowed        = Kind{http.StatusForbidden, "permission_error", "not_allowed"}
	KindPolicy            = Kind{http.StatusForbidden, "permission_error", "policy_denied"}
	KindContentBlocked    = Kind{http.StatusUnavailableForLegalReasons, "content_filter_error", "content_blocked"}
	KindRateLimited       = Kind{http.StatusTooManyRequests, "rate_limit_error", "rate_limit_exceeded"}
	KindInternal          = Kind{http.StatusInternalServerError, "server_error", "internal_error"}
	KindMissingCredential = Kind{http.StatusInternalServerError, "server_error", "missing_credential"}
	KindUnavailable       = Kind{http.StatusServiceUnavailable, "server_error", "service_unavailable"}
)

// Write sends message as an error of kind k.
func (k Kind) Write(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, k.Status, k.Type, k.Code, message)
}

func WriteError(w http.ResponseWriter, requestID string, statusCode int, errType, code, message string) {
	h := w.Header()
	h.Set("Content-Type", "application/json")
	if requestID != "" {
		h.Set("X-Request-ID", requestID)
	}
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(APIError{Error: APIErrorBody{
		Message:   message,
		Type:      errType,
		Code:      code,
		RequestID: requestID,
	}})
}

// WritePassthrough relays an upstream response body and status unchanged.
func WritePassthrough(w http.ResponseWriter, requestID string, statusCode int, contentType string, body []byte) {
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	if requestID != "" {
		w.Header().Set("X-Request-ID", requestID)
	}
	w.WriteHeader(statusCode)
	w.Write(body)
}

func WriteAuthError(w http.ResponseWriter, requestID, message string) {
	KindAuth.Write(w, requestID, message)
}

func WriteRateLimitError(w http.ResponseWriter, requestID, message string) {
	KindRateLimited.Write(w, requestID, message)
}

func WriteBadRequestError(w http.ResponseWriter, requestID, message string) {
	KindBadRequest.Write(w, requestID, message)
}

func WriteInternalError(w http.ResponseWriter, requestID, message string) {
	KindInternal.Write(w, requestID, message)
}

// WriteMissingCredentialError reports a provider with no API key configured.
func WriteMissingCredentialError(w http.ResponseWriter, requestID, message string) {
	KindMissingCredential.Write(w, requestID, message)
}

func WriteServiceUnavailableError(w http.ResponseWriter, requestID, message string) {
	KindUnavailable.Write(w, requestID, message)
}

func WriteContentBlockedError(w http.ResponseWriter, requestID, message string) {
	KindContentBlocked.Write(w, requestID, message)
}

// WriteForbiddenError reports a policy decision against the turn.
func WriteForbiddenError(w http.ResponseWriter, requestID, message string) {
	KindPolicy.Write(w, requestID, message)
}

// WriteNotAllowedError reports a model or tool outside the caller's grant.
func WriteNotAllowedError(w http.ResponseWriter, requestID, message string) {
	KindNotAllowed.Write(w, requestID, message)
}
