package api

import (
	"errors"
	"net/http"

	"github.com/Originnnn/appointment/internal/appointment"
	"github.com/Originnnn/appointment/internal/calendar"
	"github.com/Originnnn/appointment/internal/chat"
	"github.com/Originnnn/appointment/internal/directory"
	"github.com/Originnnn/appointment/internal/identity"
	"github.com/Originnnn/appointment/internal/schedule"
	"github.com/Originnnn/appointment/internal/store"
)

func handleBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appointment.ErrIncompleteRequest):
		writeError(w, http.StatusBadRequest, "incomplete_request", err.Error())
	case errors.Is(err, appointment.ErrMalformedRequest):
		writeError(w, http.StatusBadRequest, "malformed_request", err.Error())
	case errors.Is(err, appointment.ErrPastDate):
		writeError(w, http.StatusUnprocessableEntity, "past_date", err.Error())
	case errors.Is(err, appointment.ErrDoctorNotWorking):
		writeError(w, http.StatusUnprocessableEntity, "doctor_not_working", err.Error())
	case errors.Is(err, appointment.ErrTimeOutsideSchedule):
		writeError(w, http.StatusUnprocessableEntity, "time_outside_schedule", err.Error())
	case errors.Is(err, appointment.ErrSlotAlreadyTaken):
		writeError(w, http.StatusConflict, "slot_already_taken", err.Error())
	default:
		handleCommonError(w, err)
	}
}

func handleStatusError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrUnknownStatus):
		writeError(w, http.StatusBadRequest, "unknown_status", err.Error())
	case errors.Is(err, appointment.ErrMissingDiagnosis):
		writeError(w, http.StatusBadRequest, "missing_diagnosis", err.Error())
	case errors.Is(err, appointment.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, appointment.ErrSlotAlreadyTaken):
		writeError(w, http.StatusConflict, "slot_already_taken", err.Error())
	default:
		handleCommonError(w, err)
	}
}

func handleScheduleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, schedule.ErrIncompleteBlock):
		writeError(w, http.StatusBadRequest, "incomplete_request", err.Error())
	case errors.Is(err, calendar.ErrInvalidDate), errors.Is(err, calendar.ErrInvalidTime):
		writeError(w, http.StatusBadRequest, "malformed_request", err.Error())
	case errors.Is(err, schedule.ErrInvalidTimeRange):
		writeError(w, http.StatusUnprocessableEntity, "invalid_time_range", err.Error())
	case errors.Is(err, schedule.ErrPastWorkDate):
		writeError(w, http.StatusUnprocessableEntity, "past_date", err.Error())
	case errors.Is(err, schedule.ErrBlockNotFound):
		writeError(w, http.StatusNotFound, "schedule_not_found", err.Error())
	default:
		handleCommonError(w, err)
	}
}

func handleChatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, "empty_message", err.Error())
	case errors.Is(err, chat.ErrInvalidConversation):
		writeError(w, http.StatusBadRequest, "invalid_conversation", err.Error())
	case errors.Is(err, store.ErrWrite):
		writeError(w, http.StatusServiceUnavailable, "store_write_failure", "message was not sent, please retry")
	default:
		handleCommonError(w, err)
	}
}

func handleCommonError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, identity.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, directory.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, store.ErrWrite):
		writeError(w, http.StatusServiceUnavailable, "store_write_failure", "could not save changes, please retry")
	case errors.Is(err, store.ErrRead):
		writeError(w, http.StatusServiceUnavailable, "store_read_failure", "could not load data, please retry")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
