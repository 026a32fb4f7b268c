package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"ghost.drop/config"
	"ghost.drop/internal/access"
	"ghost.drop/internal/drops"
	"ghost.drop/internal/store"

	"github.com/go-chi/chi/v5"
)

const dropIDLength = 32

type Handler struct {
	drops  *drops.Service
	access *access.Service
	config *config.Config
	log    *slog.Logger
}

func NewHandler(d *drops.Service, a *access.Service, cfg *config.Config, log *slog.Logger) *Handler {
	return &Handler{
		drops:  d,
		access: a,
		config: cfg,
		log:    log,
	}
}

type UploadRequest struct {
	EncryptedData string `json:"encryptedData"`
	IV            string `json:"iv"`
	Salt          string `json:"salt"`
	Version       string `json:"version"`
	BurnTimer     int    `json:"burnTimer,omitempty"`
}

type UploadResponse struct {
	Success   bool   `json:"success"`
	ID        string `json:"id"`
	ExpiresIn int    `json:"expiresIn"`
	MaxViews  int    `json:"maxViews"`
}

type RetrievePayload struct {
	EncryptedData string `json:"encryptedData"`
	IV            string `json:"iv"`
	Salt          string `json:"salt"`
	Version       string `json:"version"`
	BurnTimer     int    `json:"burnTimer,omitempty"`
}

type RetrieveResponse struct {
	Success bool            `json:"success"`
	Data    RetrievePayload `json:"data"`
}

type ReportRequest struct {
	ID string `json:"id"`
}

type ReportResponse struct {
	Success        bool `json:"success"`
	Deleted        bool `json:"deleted"`
	FailedAttempts int  `json:"failedAttempts,omitempty"`
	MaxAttempts    int  `json:"maxAttempts"`
}

type DestroyRequest struct {
	ID string `json:"id"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	// Bound the body before decoding; the JSON framing adds a little
	// overhead on top of the payload cap.
	r.Body = http.MaxBytesReader(w, r.Body, int64(h.config.Drops.MaxPayloadBytes)+1024*1024)

	var req UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "data too large (max 25MB)")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.drops.Create(r.Context(), drops.CreateInput{
		EncryptedData: req.EncryptedData,
		IV:            req.IV,
		Salt:          req.Salt,
		Version:       req.Version,
		BurnTimer:     req.BurnTimer,
	})
	if err != nil {
		h.handleDropError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, UploadResponse{
		Success:   true,
		ID:        res.ID,
		ExpiresIn: int(res.ExpiresIn.Seconds()),
		MaxViews:  res.MaxViews,
	})
}

func (h *Handler) Retrieve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if len(id) != dropIDLength {
		writeError(w, http.StatusBadRequest, "invalid id format")
		return
	}

	drop, err := h.drops.Retrieve(r.Context(), id)
	if err != nil {
		h.handleDropError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, RetrieveResponse{
		Success: true,
		Data: RetrievePayload{
			EncryptedData: drop.EncryptedData,
			IV:            drop.IV,
			Salt:          drop.Salt,
			Version:       drop.Version,
			BurnTimer:     drop.BurnTimer,
		},
	})
}

func (h *Handler) ReportFailedDecrypt(w http.ResponseWriter, r *http.Request) {
	var req ReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.ID) != dropIDLength {
		writeError(w, http.StatusBadRequest, "invalid id format")
		return
	}

	rep, err := h.drops.ReportFailure(r.Context(), req.ID)
	if err != nil {
		h.handleDropError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ReportResponse{
		Success:        true,
		Deleted:        rep.Deleted,
		FailedAttempts: rep.Attempts,
		MaxAttempts:    rep.MaxAttempts,
	})
}

func (h *Handler) Destroy(w http.ResponseWriter, r *http.Request) {
	var req DestroyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.ID) != dropIDLength {
		writeError(w, http.StatusBadRequest, "invalid id format")
		return
	}

	if err := h.drops.Destroy(r.Context(), req.ID); err != nil {
		h.handleDropError(w, err)
		return
	}

	// Always success, whether or not the drop existed.
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// Access code gate

type AccessCodeRequest struct {
	Code string `json:"code"`
}

type ValidateCodeResponse struct {
	Valid bool `json:"valid"`
}

type GenerateCodeResponse struct {
	Code string `json:"code"`
}

func (h *Handler) ValidateAccessCode(w http.ResponseWriter, r *http.Request) {
	var req AccessCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ok, err := h.access.Validate(r.Context(), req.Code)
	if err != nil {
		h.log.Error("access code validation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, ValidateCodeResponse{Valid: ok})
}

func (h *Handler) ExpireAccessCode(w http.ResponseWriter, r *http.Request) {
	var req AccessCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	if err := h.access.Expire(r.Context(), req.Code); err != nil {
		h.log.Error("access code expiry failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

func (h *Handler) GenerateAccessCode(w http.ResponseWriter, r *http.Request) {
	code, err := h.access.Generate(r.Context())
	if err != nil {
		h.log.Error("access code generation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, GenerateCodeResponse{Code: code})
}

func (h *Handler) ListAccessCodes(w http.ResponseWriter, r *http.Request) {
	overview, err := h.access.Overview(r.Context())
	if err != nil {
		h.log.Error("access code listing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, overview)
}

func (h *Handler) handleDropError(w http.ResponseWriter, err error) {
	var ve *drops.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, drops.ErrTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "data too large (max 25MB)")
	case errors.Is(err, store.ErrNotFound):
		// Expired and never-existed are deliberately the same answer.
		writeError(w, http.StatusNotFound, "drop not found or expired")
	case errors.Is(err, store.ErrDestroyed):
		writeError(w, http.StatusGone, "drop permanently deleted due to security policy")
	default:
		h.log.Error("drop operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
