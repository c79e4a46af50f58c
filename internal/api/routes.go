// Package api is the HTTP surface of the service.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/EmpoweredVote/geofence-backend/internal/metrics"
	"github.com/EmpoweredVote/geofence-backend/internal/middleware"
	"github.com/EmpoweredVote/geofence-backend/internal/notify"
	"github.com/EmpoweredVote/geofence-backend/internal/occupancy"
)

// Deps are the components the handlers work on.
type Deps struct {
	Manager *occupancy.Manager
	Status  *notify.StatusBoard
	Metrics *metrics.Metrics

	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer  prometheus.Gatherer
	TokenHash string
	Limiter   *middleware.RateLimiter
}

func SetupRoutes(d Deps) http.Handler {
	h := &Handler{
		manager: d.Manager,
		status:  d.Status,
		metrics: d.Metrics,
	}
	h.refreshRegionGauge()

	r := chi.NewRouter()
	r.Use(middleware.CORSMiddleware)

	r.Get("/", RootHandler)
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Get("/regions", h.ListRegions)
	r.Get("/hotspots", h.ListHotSpots)
	r.Post("/regions/validate", h.ValidateRegion)

	r.Group(func(r chi.Router) {
		r.Use(middleware.TokenMiddleware(d.TokenHash))
		r.Post("/regions", h.CreateRegion)
		r.Delete("/regions/{id}", h.DeleteRegion)
	})

	r.Route("/devices/{"+middleware.DeviceParam+"}", func(r chi.Router) {
		r.Use(middleware.DeviceMiddleware)
		r.Use(middleware.TokenMiddleware(d.TokenHash))
		r.Get("/status", h.DeviceStatus)
		r.Delete("/", h.ForgetDevice)

		r.Group(func(r chi.Router) {
			if d.Limiter != nil {
				r.Use(d.Limiter.Middleware)
			}
			r.Post("/regions/{id}/enter", h.EnterRegion)
			r.Post("/regions/{id}/exit", h.ExitRegion)
			r.Post("/wifi/connect", h.ConnectWifi)
			r.Post("/wifi/disconnect", h.DisconnectWifi)
			r.Post("/location", h.UpdateLocation)
			r.Post("/events", h.PostEvent)
		})
	})

	return r
}
