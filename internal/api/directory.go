package api

import (
	"net/http"
)

func listDoctorsHandler(dir DirectoryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctors := dir.ListDoctors(r.Context())

		resp := make([]DoctorResponse, 0, len(doctors))
		for _, d := range doctors {
			resp = append(resp, toDoctorResponse(d))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getDoctorHandler(dir DirectoryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id", "invalid_doctor_id")
		if !ok {
			return
		}

		d, err := dir.GetDoctor(r.Context(), id)
		if err != nil {
			handleCommonError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toDoctorResponse(*d))
	}
}
