package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path"
	"strconv"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/blob"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/dashboard"
)

type exportHandler struct {
	svc    *dashboard.Service
	logger *log.Entry
}

func (h *exportHandler) list(w http.ResponseWriter, r *http.Request) {
	infos, err := h.svc.ListExports(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	if infos == nil {
		infos = []blob.Info{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"exports": infos})
}

func (h *exportHandler) download(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	info, body, err := h.svc.OpenExport(r.Context(), key)
	if err != nil {
		h.fail(w, err)
		return
	}
	defer func() { _ = body.Close() }()

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	w.Header().Set("Content-Disposition", `attachment; filename="`+path.Base(info.Key)+`"`)
	if info.ETag != "" {
		w.Header().Set("ETag", `"`+info.ETag+`"`)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.WithError(err).WithField("key", key).Warn("export stream interrupted")
	}
}

func (h *exportHandler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, blob.ErrNotFound), errors.Is(err, blob.ErrInvalidKey):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "export not found"})
	case errors.Is(err, dashboard.ErrExportDisabled):
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": err.Error()})
	default:
		h.logger.WithError(err).Error("export request failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
