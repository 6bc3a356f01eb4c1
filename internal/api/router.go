package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/medflowhq/hospital-booking/internal/auth"
	"github.com/medflowhq/hospital-booking/internal/booking"
	"github.com/medflowhq/hospital-booking/internal/directory"
	"github.com/medflowhq/hospital-booking/internal/medrecord"
)

type BookingService interface {
	Book(ctx context.Context, patientID, doctorID uuid.UUID, at time.Time, reason, notes string) (*booking.Appointment, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*booking.Appointment, error)
	ListAppointments(ctx context.Context, limit, offset int) ([]booking.Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]booking.Appointment, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]booking.Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, label string) (*booking.Appointment, error)
	Cancel(ctx context.Context, id uuid.UUID) (*booking.Appointment, error)
}

type DirectoryService interface {
	CreatePatient(ctx context.Context, p *directory.Patient) (*directory.Patient, error)
	GetPatient(ctx context.Context, id uuid.UUID) (*directory.Patient, error)
	ListPatients(ctx context.Context, limit, offset int) ([]directory.Patient, error)
	UpdatePatient(ctx context.Context, p *directory.Patient) (*directory.Patient, error)
	DeletePatient(ctx context.Context, id uuid.UUID) error

	CreateDoctor(ctx context.Context, d *directory.Doctor) (*directory.Doctor, error)
	GetDoctor(ctx context.Context, id uuid.UUID) (*directory.Doctor, error)
	ListDoctors(ctx context.Context, limit, offset int) ([]directory.Doctor, error)
	ListDoctorsBySpecialization(ctx context.Context, specialization string) ([]directory.Doctor, error)
	ListDoctorsByDepartment(ctx context.Context, department string) ([]directory.Doctor, error)
	UpdateDoctor(ctx context.Context, d *directory.Doctor) (*directory.Doctor, error)
	DeleteDoctor(ctx context.Context, id uuid.UUID) error
}

type RecordService interface {
	Create(ctx context.Context, rec *medrecord.Record) (*medrecord.Record, error)
	Get(ctx context.Context, id uuid.UUID) (*medrecord.Record, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]medrecord.Record, error)
	Update(ctx context.Context, rec *medrecord.Record) (*medrecord.Record, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type AuthService interface {
	Register(ctx context.Context, username, password, role string) (*auth.User, error)
	Login(ctx context.Context, username, password string) (string, error)
}

type RouterConfig struct {
	Booking   BookingService
	Directory DirectoryService
	Records   RecordService
	Auth      AuthService
	Issuer    *auth.TokenIssuer // nil disables authentication
	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	Logger    zerolog.Logger
	Env       string
	Version   string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	if cfg.Auth != nil {
		r.Post("/auth/register", registerHandler(cfg.Auth))
		r.Post("/auth/login", loginHandler(cfg.Auth))
	}

	r.Group(func(r chi.Router) {
		if cfg.Issuer != nil {
			r.Use(auth.RequireToken(cfg.Issuer))
		}

		r.Post("/appointments", bookAppointmentHandler(cfg.Booking))
		r.Get("/appointments", listAppointmentsHandler(cfg.Booking))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Booking))
		r.Patch("/appointments/{id}/status", updateStatusHandler(cfg.Booking))
		r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Booking))

		r.Post("/patients", createPatientHandler(cfg.Directory))
		r.Get("/patients", listPatientsHandler(cfg.Directory))
		r.Get("/patients/{id}", getPatientHandler(cfg.Directory))
		r.Put("/patients/{id}", updatePatientHandler(cfg.Directory))
		r.Delete("/patients/{id}", deletePatientHandler(cfg.Directory))
		r.Get("/patients/{id}/appointments", patientAppointmentsHandler(cfg.Booking))

		r.Post("/doctors", createDoctorHandler(cfg.Directory))
		r.Get("/doctors", listDoctorsHandler(cfg.Directory))
		r.Get("/doctors/{id}", getDoctorHandler(cfg.Directory))
		r.Put("/doctors/{id}", updateDoctorHandler(cfg.Directory))
		r.Delete("/doctors/{id}", deleteDoctorHandler(cfg.Directory))
		r.Get("/doctors/{id}/appointments", doctorAppointmentsHandler(cfg.Booking))

		if cfg.Records != nil {
			r.Post("/records", createRecordHandler(cfg.Records))
			r.Get("/records/{id}", getRecordHandler(cfg.Records))
			r.Put("/records/{id}", updateRecordHandler(cfg.Records))
			r.Delete("/records/{id}", deleteRecordHandler(cfg.Records))
			r.Get("/patients/{id}/records", patientRecordsHandler(cfg.Records))
		}
	})

	return r
}
