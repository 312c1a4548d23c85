package route

import (
	"net/http"

	"passgate/src-server/admission"
	"passgate/src-server/utils"
)

func Pass(muxer *http.ServeMux, as *utils.AppState, core *admission.Core) {
	type RegisterReqBody struct {
		EventID string `json:"eventId"`
	}

	type PassWithQRRespBody struct {
		Pass   PassRespBody `json:"pass"`
		QRData string       `json:"qrData"`
	}

	type PassOnlyRespBody struct {
		Pass PassRespBody `json:"pass"`
	}

	// register the caller for an event
	muxer.HandleFunc("POST /api/passes/register", AuthMiddleware(as, func(w http.ResponseWriter, r *http.Request) {
		actor, _ := actorFrom(r)

		var reqBody RegisterReqBody
		if err := decodeBody(r, &reqBody); err != nil {
			writeError(w, err)
			return
		}

		pass, err := core.Lifecycle.Register(r.Context(), reqBody.EventID, actor.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, PassWithQRRespBody{Pass: passBody(pass), QRData: pass.Token})
	}))

	// the caller's own passes
	muxer.HandleFunc("GET /api/passes/me", AuthMiddleware(as, func(w http.ResponseWriter, r *http.Request) {
		actor, _ := actorFrom(r)

		passes, err := core.Lifecycle.ForHolder(r.Context(), actor.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		resp := make([]PassRespBody, 0, len(passes))
		for i := range passes {
			resp = append(resp, passBody(&passes[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}))

	muxer.HandleFunc("GET /api/passes/{id}", RequireRole(as, staffRoles, func(w http.ResponseWriter, r *http.Request) {
		pass, err := core.Lifecycle.Get(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, PassOnlyRespBody{Pass: passBody(pass)})
	}))

	// rotate the token of a lost or compromised pass
	muxer.HandleFunc("PUT /api/passes/{id}/reissue", RequireRole(as, staffRoles, func(w http.ResponseWriter, r *http.Request) {
		pass, err := core.Lifecycle.Reissue(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, PassWithQRRespBody{Pass: passBody(pass), QRData: pass.Token})
	}))

	muxer.HandleFunc("POST /api/passes/{id}/revoke", RequireRole(as, adminRoles, func(w http.ResponseWriter, r *http.Request) {
		pass, err := core.Lifecycle.Revoke(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, PassOnlyRespBody{Pass: passBody(pass)})
	}))
}
