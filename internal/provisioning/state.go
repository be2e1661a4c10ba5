package provisioning

// State is a DeploymentSession lifecycle state.
type State int

// Lifecycle states, in order.
const (
	StateInit State = iota
	StateValidated
	StateDepsReady
	StateStorageReady
	StateModelReady
	StateParamsResolved
	StateMonitoringUp
	StateServing
	StateShuttingDown
	StateDone
)

var stateNames = [...]string{
	StateInit:           "INIT",
	StateValidated:      "VALIDATED",
	StateDepsReady:      "DEPS_READY",
	StateStorageReady:   "STORAGE_READY",
	StateModelReady:     "MODEL_READY",
	StateParamsResolved: "PARAMS_RESOLVED",
	StateMonitoringUp:   "MONITORING_UP",
	StateServing:        "SERVING",
	StateShuttingDown:   "SHUTTING_DOWN",
	StateDone:           "DONE",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// CanTransition reports whether the session may move from s to next.
// Transitions only go forward by one step, except that any state before
// SHUTTING_DOWN may jump straight to it.
func (s State) CanTransition(next State) bool {
	if s >= StateDone {
		return false
	}
	if next == StateShuttingDown {
		return s < StateShuttingDown
	}
	return next == s+1
}
