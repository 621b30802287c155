package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/Originnnn/appointment/internal/appointment"
	"github.com/Originnnn/appointment/internal/chat"
	"github.com/Originnnn/appointment/internal/directory"
	"github.com/Originnnn/appointment/internal/schedule"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type DoctorResponse struct {
	ID          uuid.UUID `json:"doctor_id"`
	FullName    string    `json:"full_name"`
	Specialty   *string   `json:"specialty,omitempty"`
	Phone       *string   `json:"phone,omitempty"`
	Description *string   `json:"description,omitempty"`
}

func toDoctorResponse(d directory.Doctor) DoctorResponse {
	return DoctorResponse{
		ID:          d.ID,
		FullName:    d.FullName,
		Specialty:   d.Specialty,
		Phone:       d.Phone,
		Description: d.Description,
	}
}

type BlockRequest struct {
	WorkDate  string `json:"work_date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type BlockResponse struct {
	ID        uuid.UUID `json:"schedule_id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	WorkDate  string    `json:"work_date"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
}

func toBlockResponse(b schedule.Block) BlockResponse {
	return BlockResponse{
		ID:        b.ID,
		DoctorID:  b.DoctorID,
		WorkDate:  b.WorkDate.String(),
		StartTime: b.StartTime.String(),
		EndTime:   b.EndTime.String(),
	}
}

type BookAppointmentRequest struct {
	DoctorID string `json:"doctor_id"`
	Date     string `json:"appointment_date"`
	Time     string `json:"appointment_time"`
	Note     string `json:"note"`
}

type SetStatusRequest struct {
	Status string `json:"status"`
}

type CompleteAppointmentRequest struct {
	Diagnosis string `json:"diagnosis"`
	Treatment string `json:"treatment"`
}

type AppointmentResponse struct {
	ID        uuid.UUID `json:"appointment_id"`
	PatientID uuid.UUID `json:"patient_id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	Date      string    `json:"appointment_date"`
	Time      string    `json:"appointment_time"`
	Status    string    `json:"status"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	PatientName     string  `json:"patient_name,omitempty"`
	PatientPhone    *string `json:"patient_phone,omitempty"`
	DoctorName      string  `json:"doctor_name,omitempty"`
	DoctorSpecialty *string `json:"doctor_specialty,omitempty"`
}

func toAppointmentResponse(a appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:        a.ID,
		PatientID: a.PatientID,
		DoctorID:  a.DoctorID,
		Date:      a.Date.String(),
		Time:      a.Time.String(),
		Status:    string(a.Status),
		Note:      a.Note,
		CreatedAt: a.CreatedAt,
	}
}

func toDetailResponse(d appointment.AppointmentDetail) AppointmentResponse {
	resp := toAppointmentResponse(d.Appointment)
	resp.PatientName = d.PatientName
	resp.PatientPhone = d.PatientPhone
	resp.DoctorName = d.DoctorName
	resp.DoctorSpecialty = d.DoctorSpecialty
	return resp
}

type MedicalRecordResponse struct {
	ID            uuid.UUID `json:"record_id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	Diagnosis     string    `json:"diagnosis"`
	Treatment     string    `json:"treatment,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func toRecordResponse(r appointment.MedicalRecord) MedicalRecordResponse {
	return MedicalRecordResponse{
		ID:            r.ID,
		AppointmentID: r.AppointmentID,
		Diagnosis:     r.Diagnosis,
		Treatment:     r.Treatment,
		CreatedAt:     r.CreatedAt,
	}
}

type CompletedAppointmentResponse struct {
	Appointment AppointmentResponse   `json:"appointment"`
	Record      MedicalRecordResponse `json:"medical_record"`
}

type PostMessageRequest struct {
	Text string `json:"text"`
}

type MessageResponse struct {
	ID             int64     `json:"message_id"`
	ConversationID string    `json:"conversation_id"`
	SenderType     string    `json:"sender_type"`
	SenderID       uuid.UUID `json:"sender_id"`
	SenderName     string    `json:"sender_name"`
	Text           string    `json:"message_text"`
	CreatedAt      time.Time `json:"created_at"`
	Mine           bool      `json:"mine"`
}

func toMessageResponse(m chat.Message, mine bool) MessageResponse {
	return MessageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderType:     string(m.SenderType),
		SenderID:       m.SenderID,
		SenderName:     m.SenderName,
		Text:           m.Text,
		CreatedAt:      m.CreatedAt,
		Mine:           mine,
	}
}
