package route

import (
	"net/http"
	"time"

	"passgate/src-server/utils"
)

func Health(muxer *http.ServeMux, as *utils.AppState) {
	type HealthRespBody struct {
		OK   bool  `json:"ok"`
		Time int64 `json:"time"`
	}

	muxer.HandleFunc("GET /api/_healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := as.RawDB.PingContext(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, HealthRespBody{OK: false, Time: time.Now().UnixMilli()})
			return
		}
		writeJSON(w, http.StatusOK, HealthRespBody{OK: true, Time: time.Now().UnixMilli()})
	})
}
