package clients

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/upilink/upilink/internal/observability/metrics"
	"github.com/upilink/upilink/internal/uploads"
	"github.com/upilink/upilink/pkg/logging"
)

const maxFormMemory = 8 << 20

// Handler serves the upsert and lookup endpoints.
type Handler struct {
	repo    Repository
	uploads *uploads.Store
	cache   *DetailsCache
	metrics *metrics.ClientMetrics
	logger  *logging.Logger
}

// NewHandler creates a new clients handler. cache and clientMetrics may be nil.
func NewHandler(repo Repository, uploadStore *uploads.Store, cache *DetailsCache, clientMetrics *metrics.ClientMetrics, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		repo:    repo,
		uploads: uploadStore,
		cache:   cache,
		metrics: clientMetrics,
		logger:  logger,
	}
}

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// paymentDetails is the lookup payload; qrImagePath is null when no image is stored.
type paymentDetails struct {
	UPIID       string  `json:"upiId"`
	QRImagePath *string `json:"qrImagePath"`
}

// Upsert handles POST /update. The first write for a base URL establishes the
// security code; later writes must present it and may rotate it.
func (h *Handler) Upsert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		writeJSON(w, http.StatusBadRequest, response{Success: false, Message: "Invalid form data"})
		return
	}

	baseURL := strings.TrimSpace(r.FormValue("baseUrl"))
	if baseURL == "" {
		h.metrics.ObserveUpsert("unknown", "validation_error")
		writeJSON(w, http.StatusBadRequest, response{Success: false, Message: "Base URL is required"})
		return
	}

	existing, err := h.repo.Get(ctx, baseURL)
	if err != nil && !errors.Is(err, ErrNotFound) {
		h.logger.Error("failed to load client record", "base_url", baseURL, "error", err)
		h.metrics.ObserveUpsert("unknown", "error")
		writeJSON(w, http.StatusInternalServerError, response{Success: false, Message: "Internal server error"})
		return
	}

	if existing == nil {
		h.create(w, r, baseURL)
		return
	}
	h.update(w, r, existing)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request, baseURL string) {
	securityCode := r.FormValue("securityCode")
	if securityCode == "" {
		h.metrics.ObserveUpsert("create", "validation_error")
		writeJSON(w, http.StatusBadRequest, response{Success: false, Message: "Security code is required for new client"})
		return
	}

	imagePath, ok := h.saveUpload(w, r, "create")
	if !ok {
		return
	}

	rec := &ClientRecord{
		BaseURL:     baseURL,
		UPIID:       r.FormValue("upiId"),
		QRImagePath: imagePath,
		SecretHash:  HashSecret(securityCode),
	}

	err := h.repo.Create(r.Context(), rec)
	if errors.Is(err, ErrAlreadyExists) {
		// Lost a create race: the record now exists, so this request is an
		// update missing its existingSecurityCode.
		h.discardUpload(imagePath)
		h.metrics.ObserveUpsert("create", "conflict")
		writeJSON(w, http.StatusBadRequest, response{Success: false, Message: "Security code is required"})
		return
	}
	if err != nil {
		h.discardUpload(imagePath)
		h.logger.Error("failed to create client record", "base_url", baseURL, "error", err)
		h.metrics.ObserveUpsert("create", "error")
		writeJSON(w, http.StatusInternalServerError, response{Success: false, Message: "Internal server error"})
		return
	}

	h.invalidateCache(r, baseURL)
	h.logger.Info("client created", "base_url", baseURL)
	h.metrics.ObserveUpsert("create", "created")
	writeJSON(w, http.StatusCreated, response{Success: true, Message: "Client created successfully", Data: rec.Public()})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request, existing *ClientRecord) {
	existingCode := r.FormValue("existingSecurityCode")
	if existingCode == "" {
		h.metrics.ObserveUpsert("update", "validation_error")
		writeJSON(w, http.StatusBadRequest, response{Success: false, Message: "Security code is required"})
		return
	}

	imagePath, ok := h.saveUpload(w, r, "update")
	if !ok {
		return
	}

	fields := UpdateFields{}
	if upiID := r.FormValue("upiId"); upiID != "" {
		fields.UPIID = &upiID
	}
	if imagePath != "" {
		fields.QRImagePath = &imagePath
	}
	if newCode := r.FormValue("securityCode"); newCode != "" {
		rotated := HashSecret(newCode)
		fields.SecretHash = &rotated
	}

	updated, err := h.repo.Update(r.Context(), existing.BaseURL, HashSecret(existingCode), fields)
	if errors.Is(err, ErrInvalidSecret) {
		h.discardUpload(imagePath)
		h.metrics.ObserveUpsert("update", "auth_error")
		writeJSON(w, http.StatusForbidden, response{Success: false, Message: "Invalid security code"})
		return
	}
	if errors.Is(err, ErrNotFound) {
		h.discardUpload(imagePath)
		h.metrics.ObserveUpsert("update", "not_found")
		writeJSON(w, http.StatusNotFound, response{Success: false, Message: "Client not found"})
		return
	}
	if err != nil {
		h.discardUpload(imagePath)
		h.logger.Error("failed to update client record", "base_url", existing.BaseURL, "error", err)
		h.metrics.ObserveUpsert("update", "error")
		writeJSON(w, http.StatusInternalServerError, response{Success: false, Message: "Internal server error"})
		return
	}

	// The new image is committed; drop the superseded file.
	if imagePath != "" && existing.QRImagePath != "" && existing.QRImagePath != imagePath {
		h.uploads.Remove(existing.QRImagePath)
	}

	h.invalidateCache(r, existing.BaseURL)
	h.logger.Info("client updated", "base_url", existing.BaseURL)
	h.metrics.ObserveUpsert("update", "updated")
	writeJSON(w, http.StatusOK, response{Success: true, Message: "Client updated successfully", Data: updated.Public()})
}

// Lookup handles GET /payment-details. Reads are public; the secret hash never
// leaves the store.
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	baseURL := strings.TrimSpace(r.URL.Query().Get("baseUrl"))
	if baseURL == "" {
		h.metrics.ObserveLookup("validation_error", "bypass")
		writeJSON(w, http.StatusBadRequest, response{Success: false, Message: "Base URL parameter is required"})
		return
	}

	cacheResult := "bypass"
	details, err := h.cache.Get(r.Context(), baseURL)
	if err != nil {
		h.logger.Warn("cache lookup failed", "base_url", baseURL, "error", err)
	}
	if h.cache != nil {
		cacheResult = "miss"
	}

	if details == nil {
		rec, err := h.repo.Get(r.Context(), baseURL)
		if errors.Is(err, ErrNotFound) {
			h.metrics.ObserveLookup("not_found", cacheResult)
			writeJSON(w, http.StatusNotFound, response{Success: false, Message: "Client not found"})
			return
		}
		if err != nil {
			h.logger.Error("failed to load client record", "base_url", baseURL, "error", err)
			h.metrics.ObserveLookup("error", cacheResult)
			writeJSON(w, http.StatusInternalServerError, response{Success: false, Message: "Internal server error"})
			return
		}

		public := rec.Public()
		details = &public
		if err := h.cache.Set(r.Context(), baseURL, public); err != nil {
			h.logger.Warn("cache store failed", "base_url", baseURL, "error", err)
		}
	} else {
		cacheResult = "hit"
	}

	payload := paymentDetails{UPIID: details.UPIID}
	if details.QRImagePath != "" {
		abs := absoluteURL(r, details.QRImagePath)
		payload.QRImagePath = &abs
	}

	h.metrics.ObserveLookup("ok", cacheResult)
	writeJSON(w, http.StatusOK, response{Success: true, Data: payload})
}

// saveUpload stores the optional image and reports rejections. The bool result
// is false when a response has already been written.
func (h *Handler) saveUpload(w http.ResponseWriter, r *http.Request, operation string) (string, bool) {
	imagePath, err := h.uploads.FromRequest(r)
	if err == nil {
		if imagePath != "" {
			h.metrics.ObserveUpload("accepted")
		}
		return imagePath, true
	}

	switch {
	case errors.Is(err, uploads.ErrNotImage):
		h.metrics.ObserveUpload("rejected_type")
		writeJSON(w, http.StatusBadRequest, response{Success: false, Message: "Only image files are allowed"})
	case errors.Is(err, uploads.ErrFileTooLarge):
		h.metrics.ObserveUpload("rejected_size")
		writeJSON(w, http.StatusBadRequest, response{Success: false, Message: "Image exceeds the 5MB size limit"})
	default:
		h.logger.Error("failed to store upload", "operation", operation, "error", err)
		h.metrics.ObserveUpload("error")
		writeJSON(w, http.StatusInternalServerError, response{Success: false, Message: "Internal server error"})
	}
	return "", false
}

// discardUpload removes a freshly saved image after a failed write, so the
// content directory does not accumulate orphans.
func (h *Handler) discardUpload(imagePath string) {
	if imagePath != "" {
		h.uploads.Remove(imagePath)
	}
}

func (h *Handler) invalidateCache(r *http.Request, baseURL string) {
	if err := h.cache.Invalidate(r.Context(), baseURL); err != nil {
		h.logger.Warn("cache invalidation failed", "base_url", baseURL, "error", err)
	}
}

func absoluteURL(r *http.Request, relPath string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host + relPath
}

func writeJSON(w http.ResponseWriter, status int, resp response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
