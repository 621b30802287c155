package api

import (
	"net/http"

	"github.com/Originnnn/appointment/internal/appointment"
)

func bookAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		appt, err := svc.BookAppointment(r.Context(), actor(r), appointment.BookingRequest{
			DoctorID: req.DoctorID,
			Date:     req.Date,
			Time:     req.Time,
			Note:     req.Note,
		})
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(*appt))
	}
}

func listAppointmentsHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListAppointments(r.Context(), actor(r))
		if err != nil {
			handleStatusError(w, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(list))
		for _, d := range list {
			resp = append(resp, toDetailResponse(d))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id", "invalid_appointment_id")
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), actor(r), id)
		if err != nil {
			handleStatusError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func setStatusHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id", "invalid_appointment_id")
		if !ok {
			return
		}
		var req SetStatusRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		appt, err := svc.SetAppointmentStatus(r.Context(), actor(r), id, appointment.Status(req.Status))
		if err != nil {
			handleStatusError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func completeAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id", "invalid_appointment_id")
		if !ok {
			return
		}
		var req CompleteAppointmentRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		appt, rec, err := svc.CompleteAppointment(r.Context(), actor(r), id, req.Diagnosis, req.Treatment)
		if err != nil {
			handleStatusError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, CompletedAppointmentResponse{
			Appointment: toAppointmentResponse(*appt),
			Record:      toRecordResponse(*rec),
		})
	}
}

func medicalRecordsHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := svc.MedicalRecords(r.Context(), actor(r))
		if err != nil {
			handleCommonError(w, err)
			return
		}

		type item struct {
			Appointment AppointmentResponse   `json:"appointment"`
			Record      MedicalRecordResponse `json:"medical_record"`
		}
		resp := make([]item, 0, len(records))
		for _, rec := range records {
			resp = append(resp, item{
				Appointment: toDetailResponse(rec.AppointmentDetail),
				Record:      toRecordResponse(rec.Record),
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
