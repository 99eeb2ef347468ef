package register

import (
	"errors"
	"fmt"
	"strings"

	"robottracker/protocol"
)

// Ack builds the reply a robot gets for a report that produced err.
func Ack(robotID string, err error) protocol.ReportAck {
	switch {
	case err == nil:
		return protocol.ReportAck{
			RobotID: robotID,
			Status:  protocol.StatusSuccess,
			Message: fmt.Sprintf("Data for %s updated", robotID),
		}
	case errors.Is(err, ErrWaypointsRequired):
		return protocol.ReportAck{
			RobotID: robotID,
			Status:  protocol.StatusWaypointsRequired,
			Message: fmt.Sprintf("Mission waypoints for robot %s are missing.", robotID),
		}
	default:
		detail := strings.TrimPrefix(err.Error(), ErrInvalidPayload.Error()+": ")
		return protocol.ReportAck{
			RobotID: robotID,
			Status:  protocol.StatusError,
			Message: "Invalid data structure: " + detail,
		}
	}
}
