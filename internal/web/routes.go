package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	framesHandler := handlers.NewFramesHandler(s.engine, s.embedder, s.saver)
	enrollHandler := handlers.NewEnrollHandler(s.engine, s.store, s.saver)
	identitiesHandler := handlers.NewIdentitiesHandler(s.store)
	attendanceHandler := handlers.NewAttendanceHandler(s.store)
	eventsHandler := handlers.NewEventsHandler(s.engine)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Frame ingestion
		r.Post("/frames", framesHandler.Process)

		// Enrollment (modal: suspends frame processing)
		r.Post("/enroll/begin", enrollHandler.Begin)
		r.Post("/enroll/cancel", enrollHandler.Cancel)
		r.Post("/enroll", enrollHandler.Complete)

		// Roster
		r.Get("/identities", identitiesHandler.List)
		r.Get("/identities/{id}", identitiesHandler.Get)
		r.Get("/identities/{id}/attendance", identitiesHandler.Attendance)

		// Attendance
		r.Get("/attendance/today", attendanceHandler.Today)
		r.Get("/events", eventsHandler.Stream)
	})
}
