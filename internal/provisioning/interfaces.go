package provisioning

// Phase defines the interface for a provisioning phase.
type Phase interface {
	// Name returns the human-readable name of this phase.
	Name() string

	// Provision executes the provisioning logic for this phase.
	Provision(ctx *Context) error
}

// ForegroundPhase is the final, blocking phase. Serve returns when the
// supervised process exits or ctx is cancelled.
type ForegroundPhase interface {
	Name() string
	Serve(ctx *Context) error
}

// Outcome is the result of an idempotent ensure operation.
type Outcome int

const (
	// AlreadyPresent means the resource existed and was reused.
	AlreadyPresent Outcome = iota
	// NewlyCreated means this run created the resource.
	NewlyCreated
)

func (o Outcome) String() string {
	if o == NewlyCreated {
		return "newly_created"
	}
	return "already_present"
}
