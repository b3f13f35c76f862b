package model

// Kind identifies which of the three handle-bearing record sets a handle
// currently belongs to.
type Kind string

const (
	// KindSeed marks an administratively added starting handle (level 0).
	KindSeed Kind = "seed"
	// KindDiscovered marks a handle found in another handle's follow list.
	KindDiscovered Kind = "discovered"
	// KindAccepted marks a handle that passed all acceptance gates.
	KindAccepted Kind = "accepted"
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	return string(k)
}

// Status is the processing status of a seed or discovered handle.
// Seeds only use Pending, Processing and Checked.
type Status string

const (
	// StatusPending means the handle waits in the frontier.
	StatusPending Status = "pending"
	// StatusProcessing means a worker claimed the handle and has not finished.
	// Rows left in this state after a crash need an explicit requeue.
	StatusProcessing Status = "processing"
	// StatusPass means the handle passed evaluation.
	StatusPass Status = "pass"
	// StatusFail means the handle failed evaluation or could not be fetched.
	StatusFail Status = "fail"
	// StatusChecked means processing finished, including frontier expansion.
	StatusChecked Status = "checked"
)

// String returns the string representation of the Status.
func (s Status) String() string {
	return string(s)
}

// IsValid returns true if s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusPass, StatusFail, StatusChecked:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if no further automatic transition starts from s.
func (s Status) IsTerminal() bool {
	return s == StatusChecked
}

// allowedTransitions lists the forward transitions the frontier may apply.
// Backward moves (for example processing -> pending) are administrative
// and bypass this table.
var allowedTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusProcessing: true,
	},
	StatusProcessing: {
		StatusPass:    true,
		StatusFail:    true,
		StatusChecked: true,
	},
	StatusPass: {
		StatusChecked: true,
	},
	StatusFail: {
		StatusChecked: true,
	},
}

// CanTransition reports whether moving from one status to another is a
// forward transition.
func CanTransition(from, to Status) bool {
	return allowedTransitions[from][to]
}

// PredecessorsOf returns every status that may transition into to.
func PredecessorsOf(to Status) []Status {
	var out []Status
	for _, from := range []Status{StatusPending, StatusProcessing, StatusPass, StatusFail} {
		if allowedTransitions[from][to] {
			out = append(out, from)
		}
	}
	return out
}

// IdentityStatus is the administrative status of a scraping identity.
type IdentityStatus string

const (
	// IdentityActive identities are loaded into the pool.
	IdentityActive IdentityStatus = "active"
	// IdentityInactive identities failed authentication and were demoted.
	IdentityInactive IdentityStatus = "inactive"
	// IdentityBanned identities were blocked by the remote source.
	IdentityBanned IdentityStatus = "banned"
	// IdentityBackup identities are used only after every active identity.
	IdentityBackup IdentityStatus = "backup"
)

// String returns the string representation of the IdentityStatus.
func (s IdentityStatus) String() string {
	return string(s)
}

// IsValid returns true if s is a known identity status.
func (s IdentityStatus) IsValid() bool {
	switch s {
	case IdentityActive, IdentityInactive, IdentityBanned, IdentityBackup:
		return true
	default:
		return false
	}
}
