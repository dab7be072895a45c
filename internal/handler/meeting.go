package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/e2dconnect/e2d/internal/model"
	"github.com/e2dconnect/e2d/internal/store"
	"github.com/e2dconnect/e2d/internal/validate"
	"github.com/e2dconnect/e2d/internal/websocket"
)

type MeetingHandler struct {
	store  *store.MeetingStore
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewMeetingHandler(s *store.MeetingStore, hub *websocket.Hub, logger *slog.Logger) *MeetingHandler {
	return &MeetingHandler{store: s, hub: hub, logger: logger}
}

type meetingRequest struct {
	Title    string     `json:"title" validate:"notblank,max=200"`
	HeldOn   model.Date `json:"held_on" validate:"required"`
	Location string     `json:"location" validate:"max=200"`
	Agenda   string     `json:"agenda" validate:"max=5000"`
	Minutes  string     `json:"minutes" validate:"max=20000"`
	Status   string     `json:"status" validate:"omitempty,oneof=planifiee terminee"`
}

func (req meetingRequest) model() model.Meeting {
	return model.Meeting{
		Title:    strings.TrimSpace(req.Title),
		HeldOn:   req.HeldOn,
		Location: strings.TrimSpace(req.Location),
		Agenda:   req.Agenda,
		Minutes:  req.Minutes,
		Status:   req.Status,
	}
}

func (h *MeetingHandler) List(w http.ResponseWriter, r *http.Request) {
	f, err := listFilter(r)
	if !check(w, err) {
		return
	}
	list, err := h.store.List(r.Context(), f)
	if err != nil {
		writeStoreError(w, h.logger, "failed to list meetings", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (h *MeetingHandler) getMeeting(w http.ResponseWriter, r *http.Request) (*model.Meeting, bool) {
	id, ok := pathID(w, r)
	if !ok {
		return nil, false
	}
	m, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, h.logger, "failed to get meeting", err)
		return nil, false
	}
	if m == nil {
		writeError(w, http.StatusNotFound, "meeting not found")
		return nil, false
	}
	return m, true
}

type meetingView struct {
	model.Meeting
	Attendance []model.Attendance `json:"attendance"`
}

// Get returns the meeting with its attendance sheet.
func (h *MeetingHandler) Get(w http.ResponseWriter, r *http.Request) {
	m, ok := h.getMeeting(w, r)
	if !ok {
		return
	}
	sheet, err := h.store.ListAttendance(r.Context(), m.ID)
	if err != nil {
		writeStoreError(w, h.logger, "failed to list attendance", err)
		return
	}
	writeJSON(w, http.StatusOK, meetingView{Meeting: *m, Attendance: nonNil(sheet)})
}

func (h *MeetingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req meetingRequest
	if !decode(w, r, &req) {
		return
	}
	m, err := h.store.Create(r.Context(), req.model())
	if err != nil {
		writeStoreError(w, h.logger, "failed to create meeting", err)
		return
	}
	h.hub.Notify(websocket.EntityMeeting, websocket.ActionCreated, m.ID)
	writeJSON(w, http.StatusCreated, m)
}

func (h *MeetingHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.getMeeting(w, r)
	if !ok {
		return
	}
	var req meetingRequest
	if !decode(w, r, &req) {
		return
	}
	m := req.model()
	if m.Status == "" {
		m.Status = existing.Status
	}
	updated, err := h.store.Update(r.Context(), existing.ID, m)
	if err != nil {
		writeStoreError(w, h.logger, "failed to update meeting", err)
		return
	}
	h.hub.Notify(websocket.EntityMeeting, websocket.ActionUpdated, existing.ID)
	writeJSON(w, http.StatusOK, updated)
}

func (h *MeetingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.store.Delete(r.Context(), id); err != nil {
		writeStoreError(w, h.logger, "failed to delete meeting", err)
		return
	}
	h.hub.Notify(websocket.EntityMeeting, websocket.ActionDeleted, id)
	w.WriteHeader(http.StatusNoContent)
}

type attendanceEntry struct {
	MemberID int64  `json:"member_id" validate:"required,gt=0"`
	Status   string `json:"status" validate:"required,oneof=present absent excuse"`
}

type attendanceRequest struct {
	Entries []attendanceEntry `json:"entries" validate:"dive"`
}

// SetAttendance handles PUT /api/meetings/{id}/attendance and replaces
// the whole sheet.
func (h *MeetingHandler) SetAttendance(w http.ResponseWriter, r *http.Request) {
	m, ok := h.getMeeting(w, r)
	if !ok {
		return
	}
	var req attendanceRequest
	if !decode(w, r, &req) {
		return
	}
	seen := make(map[int64]bool, len(req.Entries))
	sheet := make([]model.Attendance, 0, len(req.Entries))
	for _, e := range req.Entries {
		if seen[e.MemberID] {
			check(w, validate.Field("entries", "membre en double dans la feuille de présence"))
			return
		}
		seen[e.MemberID] = true
		sheet = append(sheet, model.Attendance{MeetingID: m.ID, MemberID: e.MemberID, Status: e.Status})
	}

	if err := h.store.SetAttendance(r.Context(), m.ID, sheet); err != nil {
		writeStoreError(w, h.logger, "failed to save attendance", err)
		return
	}
	h.hub.Notify(websocket.EntityMeeting, websocket.ActionUpdated, m.ID)
	writeJSON(w, http.StatusOK, sheet)
}
