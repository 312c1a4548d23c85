package route

import (
	"net/http"

	"passgate/src-server/admission"
	"passgate/src-server/utils"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

// NewHandler mounts every route and wraps them with CORS and request logging.
func NewHandler(as *utils.AppState, core *admission.Core) http.Handler {
	muxer := http.NewServeMux()
	muxer.Handle("GET /metrics", promhttp.Handler())
	Health(muxer, as)
	Pass(muxer, as, core)
	Attendance(muxer, as, core)

	c := cors.New(cors.Options{
		AllowedOrigins: as.Config.GetCorsAllowedOrigins(),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	return Logging(c.Handler(muxer))
}
