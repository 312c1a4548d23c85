package route

import (
	"net/http"
	"strconv"

	"passgate/src-server/admission"
	"passgate/src-server/apperr"
	"passgate/src-server/model"
	"passgate/src-server/utils"
)

func Attendance(muxer *http.ServeMux, as *utils.AppState, core *admission.Core) {
	// qrData and qrPayload are accepted from older scanner clients
	type ScanReqBody struct {
		QRToken   string `json:"qrToken"`
		QRData    string `json:"qrData"`
		QRPayload string `json:"qrPayload"`
	}

	type ScanRespBody struct {
		Result  string `json:"result"`
		Reason  string `json:"reason,omitempty"`
		EntryID string `json:"entryId,omitempty"`
		Message string `json:"message,omitempty"`
	}

	type AmendReqBody struct {
		Status *string `json:"status"`
		Reason *string `json:"reason"`
		Note   *string `json:"note"`
	}

	type EntryListRespBody struct {
		Items []EntryRespBody `json:"items"`
		Count int             `json:"count"`
	}

	muxer.HandleFunc("POST /api/attendance/scan", RequireRole(as, staffRoles, func(w http.ResponseWriter, r *http.Request) {
		actor, _ := actorFrom(r)

		var reqBody ScanReqBody
		if err := decodeBody(r, &reqBody); err != nil {
			writeError(w, err)
			return
		}
		token := reqBody.QRToken
		for _, alt := range []string{reqBody.QRData, reqBody.QRPayload} {
			if token == "" {
				token = alt
			}
		}

		out, err := core.Validator.Scan(r.Context(), token, actor.ID)
		switch {
		case err != nil && out == nil:
			writeError(w, err)
			return
		case err != nil:
			// the decision stands but was not logged, operators must reconcile
			writeJSON(w, apperr.HTTPStatus(apperr.KindOf(err)), ScanRespBody{
				Result:  resultOf(out),
				Reason:  string(out.Reason),
				Message: apperr.Message(err),
			})
			return
		}

		status := http.StatusOK
		if !out.Granted() {
			status = apperr.HTTPStatus(out.Kind())
		}
		writeJSON(w, status, ScanRespBody{
			Result:  resultOf(out),
			Reason:  string(out.Reason),
			EntryID: out.Entry.ID,
		})
	}))

	muxer.HandleFunc("GET /api/attendance/summary", AuthMiddleware(as, func(w http.ResponseWriter, r *http.Request) {
		summary, err := core.Summarizer.Summarize(r.Context(), r.URL.Query().Get("eventId"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}))

	muxer.HandleFunc("GET /api/attendance/events/{eventId}", RequireRole(as, staffRoles, func(w http.ResponseWriter, r *http.Request) {
		includeDeleted, _ := strconv.ParseBool(r.URL.Query().Get("includeDeleted"))
		entries, err := core.Ledger.ForEvent(r.Context(), r.PathValue("eventId"), includeDeleted)
		if err != nil {
			writeError(w, err)
			return
		}
		resp := EntryListRespBody{Items: make([]EntryRespBody, 0, len(entries)), Count: len(entries)}
		for i := range entries {
			resp.Items = append(resp.Items, entryBody(&entries[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}))

	muxer.HandleFunc("GET /api/attendance/logs/{id}", RequireRole(as, adminRoles, func(w http.ResponseWriter, r *http.Request) {
		entry, err := core.Ledger.Get(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entryBody(entry))
	}))

	muxer.HandleFunc("PUT /api/attendance/logs/{id}", RequireRole(as, adminRoles, func(w http.ResponseWriter, r *http.Request) {
		actor, _ := actorFrom(r)

		var reqBody AmendReqBody
		if err := decodeBody(r, &reqBody); err != nil {
			writeError(w, err)
			return
		}
		change := admission.Amendment{Note: reqBody.Note}
		if reqBody.Status != nil {
			outcome := model.Outcome(*reqBody.Status)
			change.Outcome = &outcome
		}
		if reqBody.Reason != nil {
			reason := model.DenialReason(*reqBody.Reason)
			change.Reason = &reason
		}

		entry, err := core.Ledger.Amend(r.Context(), r.PathValue("id"), change, actor.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entryBody(entry))
	}))

	muxer.HandleFunc("DELETE /api/attendance/logs/{id}", RequireRole(as, adminRoles, func(w http.ResponseWriter, r *http.Request) {
		actor, _ := actorFrom(r)

		entry, err := core.Ledger.SoftDelete(r.Context(), r.PathValue("id"), actor.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entryBody(entry))
	}))
}

func resultOf(out *admission.ScanOutcome) string {
	if out.Granted() {
		return "granted"
	}
	return "denied"
}
