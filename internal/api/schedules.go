package api

import (
	"net/http"

	"github.com/Originnnn/appointment/internal/schedule"
)

func listBlocksHandler(svc ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := uuidParam(w, r, "id", "invalid_doctor_id")
		if !ok {
			return
		}

		blocks, err := svc.ListBlocks(r.Context(), doctorID)
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		resp := make([]BlockResponse, 0, len(blocks))
		for _, b := range blocks {
			resp = append(resp, toBlockResponse(b))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func createBlockHandler(svc ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BlockRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		b, err := svc.CreateBlock(r.Context(), actor(r), blockInput(req))
		if err != nil {
			handleScheduleError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toBlockResponse(*b))
	}
}

func updateBlockHandler(svc ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id", "invalid_schedule_id")
		if !ok {
			return
		}
		var req BlockRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		b, err := svc.UpdateBlock(r.Context(), actor(r), id, blockInput(req))
		if err != nil {
			handleScheduleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toBlockResponse(*b))
	}
}

func deleteBlockHandler(svc ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id", "invalid_schedule_id")
		if !ok {
			return
		}

		if err := svc.DeleteBlock(r.Context(), actor(r), id); err != nil {
			handleScheduleError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func blockInput(req BlockRequest) schedule.BlockInput {
	return schedule.BlockInput{
		WorkDate:  req.WorkDate,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	}
}
