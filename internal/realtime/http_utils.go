package realtime

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
)

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeRefusal maps an admission refusal onto an HTTP status.
func writeRefusal(w http.ResponseWriter, err error) {
	var rf *Refusal
	if !errors.As(err, &rf) {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	switch rf.Code {
	case CloseMissingCredential, CloseInvalidCredential, CloseExpiredCredential, CloseUnknownIdentity:
		writeError(w, http.StatusUnauthorized, rf.Reason)
	case CloseNotMember:
		writeError(w, http.StatusForbidden, rf.Reason)
	case CloseUnknownTarget:
		writeError(w, http.StatusNotFound, rf.Reason)
	case websocket.CloseInternalServerErr:
		writeError(w, http.StatusInternalServerError, rf.Reason)
	default:
		writeError(w, http.StatusBadRequest, rf.Reason)
	}
}
