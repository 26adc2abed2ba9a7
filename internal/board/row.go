package board

import "ridehail/internal/domain"

// Action is the command a driver may issue on a row.
type Action int

const (
	ActionNone Action = iota
	ActionConfirm
	ActionFinish
)

func (a Action) String() string {
	switch a {
	case ActionConfirm:
		return "Confirm"
	case ActionFinish:
		return "Finish"
	default:
		return ""
	}
}

// Eligibility returns the action driverID may take on ride. It depends only
// on the ride's status and assigned driver.
func Eligibility(ride domain.Ride, driverID string) Action {
	switch ride.Status {
	case domain.RideStatusWaiting:
		return ActionConfirm
	case domain.RideStatusInProgress:
		if driverID != "" && ride.DriverID == driverID {
			return ActionFinish
		}
		return ActionNone
	default:
		return ActionNone
	}
}

// Row is a ride as shown on the board. A pending row is awaiting the
// answer to an accept or finish call and offers no action.
type Row struct {
	Ride    domain.Ride
	Action  Action
	Pending bool
}

func newRow(ride domain.Ride, driverID string, pending bool) Row {
	row := Row{Ride: *ride.Clone(), Pending: pending}
	if !pending {
		row.Action = Eligibility(ride, driverID)
	}
	return row
}

// State distinguishes a board that was never loaded from one that loaded no rides.
type State int

const (
	StateUnloaded State = iota
	StateEmpty
	StateReady
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateReady:
		return "ready"
	default:
		return "unloaded"
	}
}
