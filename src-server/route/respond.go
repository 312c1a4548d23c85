package route

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"passgate/src-server/apperr"
	"passgate/src-server/model"
)

type MessageRespBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("can't encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindStorage || kind == apperr.KindUnknown {
		slog.Error("request failed", "error", err)
	}
	writeJSON(w, apperr.HTTPStatus(kind), MessageRespBody{Message: apperr.Message(err)})
}

func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.New(apperr.KindInvalidRequest, "decode", "Invalid request body")
	}
	return nil
}

type PassRespBody struct {
	ID          string `json:"id"`
	EventID     string `json:"eventId"`
	HolderID    string `json:"holderId"`
	QRToken     string `json:"qrToken"`
	Status      string `json:"status"`
	State       string `json:"state"`
	Version     int    `json:"version"`
	CheckedInAt int64  `json:"checkedInAt,omitempty"`
	CreatedAt   int64  `json:"createdAt"`
	UpdatedAt   int64  `json:"updatedAt"`
}

func passBody(p *model.Pass) PassRespBody {
	return PassRespBody{
		ID:          p.ID,
		EventID:     p.EventID,
		HolderID:    p.HolderID,
		QRToken:     p.Token,
		Status:      string(p.Status),
		State:       string(p.State()),
		Version:     p.Version,
		CheckedInAt: p.CheckedInAt,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

type AuditRespBody struct {
	At      int64  `json:"at"`
	ActorID string `json:"by"`
	Note    string `json:"note"`
}

type EntryRespBody struct {
	ID        string          `json:"id"`
	EventID   string          `json:"eventId,omitempty"`
	HolderID  string          `json:"userId,omitempty"`
	PassID    string          `json:"passId,omitempty"`
	Status    string          `json:"status"`
	Reason    string          `json:"reason,omitempty"`
	Note      string          `json:"note"`
	ScannedBy string          `json:"scannedBy,omitempty"`
	ScannedAt int64           `json:"scannedAt"`
	Deleted   bool            `json:"deleted"`
	Audit     []AuditRespBody `json:"audit"`
}

func entryBody(e *model.AttendanceEntry) EntryRespBody {
	body := EntryRespBody{
		ID:        e.ID,
		EventID:   e.EventID,
		HolderID:  e.HolderID,
		PassID:    e.PassID,
		Status:    string(e.Outcome),
		Reason:    string(e.Reason),
		Note:      e.Note,
		ScannedBy: e.ScannedBy,
		ScannedAt: e.CreatedAt,
		Deleted:   e.Deleted,
		Audit:     make([]AuditRespBody, 0, len(e.Audits)),
	}
	for _, a := range e.Audits {
		body.Audit = append(body.Audit, AuditRespBody{At: a.At, ActorID: a.ActorID, Note: a.Note})
	}
	return body
}
