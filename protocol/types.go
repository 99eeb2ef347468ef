package protocol

// Message type constants for the robot tracker bus protocol.
const (
	// Robot -> Tracker (published on the reports topic)
	TypeRobotReport = "robot.report"

	// Tracker -> Robot (published on reply_topic_prefix + robot_id)
	TypeReportAck = "robot.report_ack"

	// Tracker -> Observers (published on the events topic)
	TypeRobotOnline  = "robot.online"
	TypeRobotUpdate  = "robot.update"
	TypeRobotOffline = "robot.offline"
)

// Roles for Address.Role.
const (
	RoleRobot    = "robot"
	RoleTracker  = "tracker"
	RoleObserver = "observer"
)

// Report statuses, as returned to reporting robots.
const (
	StatusSuccess           = "success"
	StatusWaypointsRequired = "waypoints_required"
	StatusError             = "error"
)

// Protocol version.
const Version = 1
