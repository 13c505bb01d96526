package api

import (
	"log"
	"net/http"
	"os"

	"github.com/carelane/hms-server/cmd/models"
	"github.com/carelane/hms-server/cmd/utils"
	"github.com/carelane/hms-server/service/admin"
	"github.com/carelane/hms-server/service/appointment"
	"github.com/carelane/hms-server/service/auth"
	"github.com/carelane/hms-server/service/availability"
	"github.com/carelane/hms-server/service/doctor"
	"github.com/carelane/hms-server/service/patient"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type APIServer struct {
	address string
	db      *gorm.DB
}

func NewApiServer(address string, db *gorm.DB) *APIServer {
	return &APIServer{
		address: address,
		db:      db,
	}
}

// Router builds the full route tree. Every area behind a role gets its own
// subrouter with the auth and role middleware stacked in front, so no
// handler runs without passing the guard.
func (s *APIServer) Router() http.Handler {
	router := mux.NewRouter()
	apiRouter := router.PathPrefix("/api/v1").Subrouter()

	authHandler := auth.NewHandler(s.db)
	authHandler.RegisterRoutes(apiRouter.PathPrefix("/auth").Subrouter())

	adminRouter := apiRouter.PathPrefix("/admin").Subrouter()
	adminRouter.Use(utils.AuthMiddleware, utils.RequireRole(s.db, models.RoleAdmin))
	admin.NewAdminHandler(s.db).RegisterRoutes(adminRouter)

	doctorRouter := apiRouter.PathPrefix("/doctor").Subrouter()
	doctorRouter.Use(utils.AuthMiddleware, utils.RequireRole(s.db, models.RoleDoctor))
	availability.NewAvailabilityHandler(s.db).RegisterRoutes(doctorRouter)
	doctor.NewDoctorHandler(s.db).RegisterRoutes(doctorRouter)

	patientRouter := apiRouter.PathPrefix("/patient").Subrouter()
	patientRouter.Use(utils.AuthMiddleware, utils.RequireRole(s.db, models.RolePatient))
	patient.NewPatientHandler(s.db).RegisterRoutes(patientRouter)

	appointmentHandler := appointment.NewAppointmentHandler(s.db)
	appointmentHandler.RegisterPatientRoutes(patientRouter)
	appointmentHandler.RegisterDoctorRoutes(doctorRouter)

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)

	return handlers.LoggingHandler(os.Stdout, cors(router))
}

func (s *APIServer) Run() error {
	log.Println("Server running at", s.address)
	return http.ListenAndServe(s.address, s.Router())
}
