package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/groundupworks/wings/internal/models"
)

// shareRequestBody is the payload for POST /shares.
type shareRequestBody struct {
	FilePath      string `json:"file_path"`
	DestinationID int    `json:"destination_id"`
	EndpointID    int    `json:"endpoint_id"`
}

// sharesHandler enqueues a share request (POST) or lists non-terminal
// records (GET).
func (s *Server) sharesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	switch r.Method {
	case http.MethodPost:
		s.enqueueShare(w, r)
	case http.MethodGet:
		s.listShares(w)
	default:
		w.Header().Set("Allow", "GET, POST")
		slog.Warn("Server.sharesHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) enqueueShare(w http.ResponseWriter, r *http.Request) {
	var body shareRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		slog.Warn("Server.enqueueShare: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	if _, ok := s.registry.ByID(body.EndpointID); !ok {
		slog.Warn("Server.enqueueShare: unknown endpoint", "endpoint", body.EndpointID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Unknown endpoint id"))
		return
	}

	dest := models.Destination{ID: body.DestinationID, EndpointID: body.EndpointID}
	id, err := s.queue.Enqueue(body.FilePath, dest)
	if err != nil {
		if errors.Is(err, models.ErrValidation) {
			slog.Warn("Server.enqueueShare: validation failed", "error", err)
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
		slog.Error("Server.enqueueShare: enqueue failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to enqueue share request"))
		return
	}

	slog.Info("Server.enqueueShare: share request enqueued", "id", id, "endpoint", body.EndpointID)
	writeJSONResponse(w, http.StatusCreated, models.Success(map[string]int64{"id": id}))
}

func (s *Server) listShares(w http.ResponseWriter) {
	requests, err := s.queue.Pending()
	if err != nil {
		slog.Error("Server.listShares: query failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list share requests"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(requests))
}

// drainHandler kicks the drain worker.
func (s *Server) drainHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.drainHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.worker.Drain()
	writeJSONResponse(w, http.StatusAccepted, models.Accepted("Drain requested"))
}

// endpointStatus is one row of the GET /endpoints response.
type endpointStatus struct {
	EndpointID   int                  `json:"endpoint_id"`
	Linked       bool                 `json:"linked"`
	Destinations []models.Destination `json:"destinations"`
}

// endpointsHandler lists the configured endpoints and their link state.
func (s *Server) endpointsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		slog.Warn("Server.endpointsHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	endpoints := s.registry.Endpoints()
	statuses := make([]endpointStatus, 0, len(endpoints))
	for _, ep := range endpoints {
		statuses = append(statuses, endpointStatus{
			EndpointID:   ep.EndpointID(),
			Linked:       ep.IsLinked(),
			Destinations: ep.Destinations(),
		})
	}
	writeJSONResponse(w, http.StatusOK, models.Success(statuses))
}

// endpointActionHandler routes POST /endpoints/{id}/link and
// POST /endpoints/{id}/unlink.
func (s *Server) endpointActionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.endpointActionHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/endpoints/"), "/"), "/")
	if len(parts) != 2 {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Not found"))
		return
	}
	id, err := strconv.Atoi(parts[0])
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid endpoint id"))
		return
	}
	ep, ok := s.registry.ByID(id)
	if !ok {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Unknown endpoint id"))
		return
	}

	switch parts[1] {
	case "link":
		var params map[string]string
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			slog.Warn("Server.endpointActionHandler: failed to decode link params", "error", err)
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
			return
		}
		if err := ep.Link(params); err != nil {
			if errors.Is(err, models.ErrValidation) {
				writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
				return
			}
			slog.Error("Server.endpointActionHandler: link failed", "endpoint", id, "error", err)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to link endpoint"))
			return
		}
		slog.Info("Server.endpointActionHandler: endpoint linked", "endpoint", id)
		// A freshly linked endpoint may have pending work.
		s.worker.Drain()
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Endpoint linked", nil))
	case "unlink":
		if err := ep.Unlink(); err != nil {
			slog.Error("Server.endpointActionHandler: unlink failed", "endpoint", id, "error", err)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to unlink endpoint"))
			return
		}
		slog.Info("Server.endpointActionHandler: endpoint unlinked", "endpoint", id)
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Endpoint unlinked", nil))
	default:
		writeJSONResponse(w, http.StatusNotFound, models.Error("Not found"))
	}
}
