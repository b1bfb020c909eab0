package handler

import (
	"net/http"
	"strings"
)

// WorkspaceInfoHandler exposes the connected workspace's host so the UI can
// build deep links.
type WorkspaceInfoHandler struct {
	ws WorkspaceAPI
}

// NewWorkspaceInfoHandler creates a new WorkspaceInfoHandler.
func NewWorkspaceInfoHandler(ws WorkspaceAPI) *WorkspaceInfoHandler {
	return &WorkspaceInfoHandler{ws: ws}
}

// Info returns the workspace host and, when it can be derived from the URL,
// the org id.
func (h *WorkspaceInfoHandler) Info(w http.ResponseWriter, r *http.Request) {
	host := strings.TrimRight(h.ws.Host(), "/")

	// AWS workspace URLs carry the org id in a /o/{id}/ path segment.
	orgID := ""
	if _, after, found := strings.Cut(host, "/o/"); found {
		orgID, _, _ = strings.Cut(after, "/")
	}

	resp := map[string]any{"host": host}
	if orgID != "" {
		resp["org_id"] = orgID
	} else {
		resp["org_id"] = nil
	}
	writeJSON(w, http.StatusOK, resp)
}
