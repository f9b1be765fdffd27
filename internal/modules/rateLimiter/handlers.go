package rateLimiter

import (
	"net/http"

	"authapi/internal/modules/respond"
)

func (fw *FixedWindowLimiter) ClientsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		fw.handleGetClients(w)
	case http.MethodDelete:
		fw.handleDeleteClient(w, r)
	default:
		respond.Error(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (fw *FixedWindowLimiter) handleGetClients(w http.ResponseWriter) {
	respond.JSON(w, http.StatusOK, fw.ListClients())
}

func (fw *FixedWindowLimiter) handleDeleteClient(w http.ResponseWriter, r *http.Request) {
	clientIp := r.URL.Query().Get("client_ip")
	if clientIp == "" {
		respond.Error(w, http.StatusBadRequest, "client_ip is required")
		return
	}

	if !fw.DeleteClient(clientIp) {
		respond.Error(w, http.StatusNotFound, "client not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
