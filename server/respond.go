package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"LocalFM/core/apperr"
	"LocalFM/logger"
)

type errorBody struct {
	Code    apperr.Code `json:"code"`
	Message string      `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("写入响应失败", logger.ErrorField(err))
	}
}

// statusOf maps failure codes onto HTTP statuses.
func statusOf(code apperr.Code) int {
	switch code {
	case apperr.CodeUsernameExists, apperr.CodeSuperseded:
		return http.StatusConflict
	case apperr.CodeInvalidCredentials, apperr.CodeNotSignedIn:
		return http.StatusUnauthorized
	case apperr.CodeForbidden:
		return http.StatusForbidden
	case apperr.CodeAssetMissing, apperr.CodeSongNotFound, apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeCoverTooSmall, apperr.CodeInvalidArgument:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError reports err as {"code","message"}. Errors without a code are
// internal and their text is not echoed.
func writeError(w http.ResponseWriter, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		logger.Error("请求处理失败", logger.ErrorField(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Code: apperr.CodeStorage, Message: "internal error"})
		return
	}
	status := statusOf(ae.Code)
	if status >= http.StatusInternalServerError {
		logger.Error("请求处理失败", logger.ErrorField(err))
	}
	writeJSON(w, status, errorBody{Code: ae.Code, Message: ae.Message})
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Wrap(apperr.CodeInvalidArgument, err, "invalid request body")
	}
	return nil
}
