package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	coreerrors "lendcore/core/errors"
)

// statusFor maps a protocol error kind onto an HTTP status code.
func statusFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var kind *coreerrors.Kind
	if !errors.As(err, &kind) {
		return http.StatusInternalServerError
	}
	switch kind {
	case coreerrors.ErrNotFound, coreerrors.ErrPositionNotFound, coreerrors.ErrAssetNotSupported:
		return http.StatusNotFound
	case coreerrors.ErrInvalidAddress, coreerrors.ErrInvalidAmount, coreerrors.ErrInvalidAsset, coreerrors.ErrInvalidInput:
		return http.StatusBadRequest
	case coreerrors.ErrUnauthorized, coreerrors.ErrNotAdmin:
		return http.StatusForbidden
	case coreerrors.ErrAlreadyExists, coreerrors.ErrAlreadyInitialized, coreerrors.ErrInvalidOperation:
		return http.StatusConflict
	case coreerrors.ErrProtocolPaused, coreerrors.ErrAdminNotSet, coreerrors.ErrOracleNotSet:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage hides internal failures behind a generic message.
func publicMessage(status int, err error) string {
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		return "internal error"
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Errorf("marshal response: %w", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	writeErrorBody(w, status, err.Error(), coreerrors.CodeOf(err))
}

func writeErrorBody(w http.ResponseWriter, status int, message string, code coreerrors.Code) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	message = strings.TrimSpace(message)
	if message == "" {
		message = http.StatusText(status)
	}
	body := map[string]any{"error": message}
	if code != coreerrors.CodeUnknown {
		body["code"] = code
	}
	payload, err := json.Marshal(body)
	if err != nil {
		payload = []byte(`{"error":"internal error"}`)
	}
	_, _ = w.Write(payload)
}

// writeError renders err with the status of its protocol kind and returns
// that status.
func writeError(w http.ResponseWriter, err error) int {
	status := statusFor(err)
	writeErrorBody(w, status, publicMessage(status, err), coreerrors.CodeOf(err))
	return status
}
