package handler

import (
	"bytes"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/e2dconnect/e2d/internal/backup"
	"github.com/e2dconnect/e2d/internal/store"
	"github.com/e2dconnect/e2d/internal/websocket"
)

// maxImportBytes bounds uploaded backup documents.
var maxImportBytes int64 = 64 << 20

type BackupHandler struct {
	db         *sql.DB
	manager    *backup.Manager
	store      *store.BackupStore
	passphrase string
	hub        *websocket.Hub
	logger     *slog.Logger
}

// NewBackupHandler builds the handler. passphrase encrypts manual backups
// when the request does not provide one.
func NewBackupHandler(db *sql.DB, m *backup.Manager, bs *store.BackupStore, passphrase string, hub *websocket.Hub, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{db: db, manager: m, store: bs, passphrase: passphrase, hub: hub, logger: logger}
}

// writeBackupError maps backup failures to statuses.
func (h *BackupHandler) writeBackupError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, backup.ErrDisabled):
		writeError(w, http.StatusServiceUnavailable, "backup storage is not configured")
	case errors.Is(err, backup.ErrNotFound):
		writeError(w, http.StatusNotFound, "backup not found")
	case errors.Is(err, backup.ErrPassphrase), errors.Is(err, backup.ErrDecrypt), errors.Is(err, backup.ErrVersion), errors.Is(err, backup.ErrIncomplete):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error(msg, "error", err)
		writeError(w, http.StatusInternalServerError, msg)
	}
}

// Status handles GET /api/backups/status.
func (h *BackupHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.Status())
}

// List handles GET /api/backups.
func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.List(r.Context(), 50)
	if err != nil {
		writeStoreError(w, h.logger, "failed to list backups", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

type passphraseRequest struct {
	Passphrase string `json:"passphrase" validate:"omitempty,min=8,max=200"`
}

// Run handles POST /api/backups.
func (h *BackupHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req passphraseRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	passphrase := req.Passphrase
	if passphrase == "" {
		passphrase = h.passphrase
	}
	b, err := h.manager.RunNow(r.Context(), passphrase)
	if err != nil {
		h.writeBackupError(w, "backup failed", err)
		return
	}
	h.hub.Notify(websocket.EntityBackup, websocket.ActionCreated, b.ID)
	writeJSON(w, http.StatusCreated, b)
}

// Download handles GET /api/backups/{id}/download and streams the stored
// object unchanged.
func (h *BackupHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	body, b, err := h.manager.Download(r.Context(), id)
	if err != nil {
		h.writeBackupError(w, "failed to download backup", err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+b.Filename+`"`)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("stream backup", "id", id, "error", err)
	}
}

// Restore handles POST /api/backups/{id}/restore. All covered tables are
// replaced by the backup's content.
func (h *BackupHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req passphraseRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	passphrase := req.Passphrase
	if passphrase == "" {
		passphrase = h.passphrase
	}
	doc, err := h.manager.Restore(r.Context(), id, passphrase)
	if err != nil {
		h.writeBackupError(w, "restore failed", err)
		return
	}
	h.hub.Notify(websocket.EntityBackup, websocket.ActionUpdated, id)
	writeJSON(w, http.StatusOK, map[string]any{"restored": doc.Counts, "records": doc.Records()})
}

// Export handles GET /api/backup/export: the JSON document of the current
// data, without going through object storage.
func (h *BackupHandler) Export(w http.ResponseWriter, r *http.Request) {
	doc, err := backup.Export(r.Context(), h.db)
	if err != nil {
		h.writeBackupError(w, "export failed", err)
		return
	}
	name := "e2d-" + time.Now().UTC().Format("2006-01-02") + ".json"
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	if err := doc.Encode(w); err != nil {
		h.logger.Warn("stream export", "error", err)
	}
}

// Import handles POST /api/backup/import. The body is either an export
// document or a file downloaded from /api/backups/{id}/download; the
// latter is opened with the X-Backup-Passphrase header or the configured
// passphrase.
func (h *BackupHandler) Import(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read upload")
		return
	}
	if int64(len(payload)) > maxImportBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "backup document too large")
		return
	}
	if backup.IsEncrypted(payload) {
		passphrase := r.Header.Get("X-Backup-Passphrase")
		if passphrase == "" {
			passphrase = h.passphrase
		}
		if passphrase == "" {
			h.writeBackupError(w, "import failed", backup.ErrPassphrase)
			return
		}
		if payload, err = backup.Decrypt(payload, passphrase); err != nil {
			h.writeBackupError(w, "import failed", err)
			return
		}
	}

	doc, err := backup.Decode(bytes.NewReader(payload))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid backup document")
		return
	}
	if err := backup.Import(r.Context(), h.db, doc); err != nil {
		h.logger.Warn("import backup", "error", err)
		writeError(w, http.StatusBadRequest, "import failed: "+err.Error())
		return
	}
	h.logger.Info("backup imported", "records", doc.Records())
	h.hub.Notify(websocket.EntityBackup, websocket.ActionUpdated, 0)
	writeJSON(w, http.StatusOK, map[string]any{"restored": doc.Counts, "records": doc.Records()})
}
