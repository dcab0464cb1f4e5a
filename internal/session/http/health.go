package http

import (
	"net/http"
	"time"

	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/store"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/authsdk"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/clockx"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/httpx"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/jwtx"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/slogx"
)

// LivezHandler godoc
//
//	@Summary		Liveness probe
//	@Description	Always 200 while the process is serving.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, uptime, version"
//	@Router			/livez [get].
func LivezHandler(startTime time.Time, clock clockx.Clock, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, authsdk.HealthResponse{
			Status:  "ok",
			Uptime:  uptime(startTime, clock),
			Version: version,
		})
	}
}

// ReadyzHandler godoc
//
//	@Summary		Readiness probe
//	@Description	Checks the session store and the signing keys. Answers 503 when either is unusable.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	authsdk.HealthResponse	"status, uptime, version, checks - service not ready"
//	@Router			/readyz [get].
func ReadyzHandler(
	startTime time.Time,
	clock clockx.Clock,
	version string,
	st store.Store,
	keys *jwtx.KeySet,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &authsdk.HealthChecks{
			Store:  "ok",
			Signer: "ok",
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			slogx.FromContext(r.Context()).Error("readiness: store ping failed", "err", err)
			checks.Store = "error: unreachable"
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		if !keys.IsReady() {
			checks.Signer = "error: no keys loaded"
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, statusCode, authsdk.HealthResponse{
			Status:  overallStatus,
			Uptime:  uptime(startTime, clock),
			Version: version,
			Checks:  checks,
		})
	}
}

func uptime(start time.Time, clock clockx.Clock) string {
	return clockOrSystem(clock).Now().Sub(start).Round(time.Second).String()
}
