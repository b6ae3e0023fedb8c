package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/minhngvu/stocktrace/internal/domain"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/ingest/intakes", h.PushIntake).Methods("POST")
	router.HandleFunc("/api/ingest/outbounds", h.PushOutbound).Methods("POST")
	router.HandleFunc("/api/ingest/lots", h.PushLot).Methods("POST")
}

// lotPushRequest carries the snapshot plus the raw fields the IMD is derived
// from when the pushing system does not send one.
type lotPushRequest struct {
	domain.MaterialLot
	ImportDate  any    `json:"import_date,omitempty"`
	BatchNumber string `json:"batch_number,omitempty"`
}

func (h *Handler) PushIntake(w http.ResponseWriter, r *http.Request) {
	var rec domain.IntakeRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	if err := h.service.PushIntake(r.Context(), &rec); err != nil {
		writeServiceError(w, err)
		return
	}

	writeAccepted(w, rec.ID)
}

func (h *Handler) PushOutbound(w http.ResponseWriter, r *http.Request) {
	var mv domain.OutboundMovement
	if err := json.NewDecoder(r.Body).Decode(&mv); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	if err := h.service.PushOutbound(r.Context(), &mv); err != nil {
		writeServiceError(w, err)
		return
	}

	writeAccepted(w, mv.ID)
}

func (h *Handler) PushLot(w http.ResponseWriter, r *http.Request) {
	var req lotPushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	if err := h.service.PushLot(r.Context(), &req.MaterialLot, req.ImportDate, req.BatchNumber); err != nil {
		writeServiceError(w, err)
		return
	}

	writeAccepted(w, req.MaterialLot.ID)
}

func writeServiceError(w http.ResponseWriter, err error) {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		http.Error(w, vErr.Error(), http.StatusUnprocessableEntity)
		return
	}
	http.Error(w, fmt.Sprintf("ingest failed: %v", err), http.StatusInternalServerError)
}

func writeAccepted(w http.ResponseWriter, id int64) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{"status": "created", "id": id})
}
