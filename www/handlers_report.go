package www

import (
	"errors"
	"io"
	"log"
	"net/http"

	"robottracker/protocol"
	"robottracker/register"
)

const maxReportBytes = 1 << 20

// apiUpdateData accepts one robot report. The status code tells the robot
// what to do next: 200 done, 202 resend with the mission, 400 fix the payload.
func (h *Handlers) apiUpdateData(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxReportBytes))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	rep, err := protocol.DecodeReport(body)
	if err != nil {
		h.jsonStatus(w, register.Ack("", err), http.StatusBadRequest)
		return
	}

	_, _, err = h.engine.Report(rep)
	ack := register.Ack(rep.RobotID, err)
	switch {
	case err == nil:
		h.jsonStatus(w, ack, http.StatusOK)
	case errors.Is(err, register.ErrWaypointsRequired):
		h.jsonStatus(w, ack, http.StatusAccepted)
	default:
		log.Printf("report: rejected report from %q: %v", rep.RobotID, err)
		h.jsonStatus(w, ack, http.StatusBadRequest)
	}
}
