package integration

// ---------------------------------------------------------------------------
// Outcome
// ---------------------------------------------------------------------------

// Outcome is the domain-level result of a mutating PowerBody call
// (createOrder, updateOrder, insertComment). It is deliberately distinct from
// a transport error: an Outcome is a definitive answer from the remote system
// and must never be retried as if it were transient.
type Outcome string

const (
	// OutcomeSuccess indicates the entity was created
	OutcomeSuccess Outcome = "SUCCESS"
	// OutcomeAlreadyExists indicates the entity already exists remotely.
	// Callers should record the mapping and move on rather than fail.
	OutcomeAlreadyExists Outcome = "ALREADY_EXISTS"
	// OutcomeUpdateSuccess indicates an existing entity was updated
	OutcomeUpdateSuccess Outcome = "UPDATE_SUCCESS"
	// OutcomeFailed indicates the remote system rejected the operation.
	// This is terminal for the entity; order submissions go to the
	// dead-letter queue.
	OutcomeFailed Outcome = "FAILED"
)

// IsValid returns true if the outcome is a known value
func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeSuccess, OutcomeAlreadyExists, OutcomeUpdateSuccess, OutcomeFailed:
		return true
	default:
		return false
	}
}

// Accepted returns true if the remote system holds the entity after the call,
// whether it was just created, updated, or existed beforehand.
func (o Outcome) Accepted() bool {
	switch o {
	case OutcomeSuccess, OutcomeAlreadyExists, OutcomeUpdateSuccess:
		return true
	default:
		return false
	}
}

// String returns the string representation of Outcome
func (o Outcome) String() string {
	return string(o)
}
