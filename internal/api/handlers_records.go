package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/medflowhq/hospital-booking/internal/directory"
	"github.com/medflowhq/hospital-booking/internal/medrecord"
)

func createRecordHandler(svc RecordService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rec medrecord.Record
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		created, err := svc.Create(r.Context(), &rec)
		if err != nil {
			handleRecordError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, created)
	}
}

func getRecordHandler(svc RecordService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		rec, err := svc.Get(r.Context(), id)
		if err != nil {
			handleRecordError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, rec)
	}
}

func patientRecordsHandler(svc RecordService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}
		limit, offset := parsePage(r)

		records, err := svc.ListByPatient(r.Context(), id, limit, offset)
		if err != nil {
			handleRecordError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, records)
	}
}

func updateRecordHandler(svc RecordService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		var rec medrecord.Record
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		rec.ID = id

		updated, err := svc.Update(r.Context(), &rec)
		if err != nil {
			handleRecordError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, updated)
	}
}

func deleteRecordHandler(svc RecordService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			handleRecordError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func handleRecordError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, medrecord.ErrRecordNotFound):
		writeError(w, http.StatusNotFound, "record_not_found", err.Error())
	case errors.Is(err, directory.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, directory.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
