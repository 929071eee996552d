package workflow

import "fmt"

// NCR lifecycle statuses.
const (
	StatusOpen         = "open"
	StatusAcknowledged = "acknowledged"
	StatusInProgress   = "in_progress"
	StatusResolved     = "resolved"
	StatusDisputed     = "disputed"
	StatusClosed       = "closed"
)

// Reason classes let callers map a denial onto the right HTTP status and
// remediation message: "you can't do this" vs "you haven't provided enough
// information".
const (
	ReasonEligibility = "eligibility"
	ReasonTransition  = "invalid_transition"
	ReasonValidation  = "validation"
)

// Minimum lengths for required transition fields.
const (
	minResolutionFieldLen = 10
	minDisputeReasonLen   = 20
)

// DisputeCategories is the fixed enumeration accepted by the disputed
// transition.
var DisputeCategories = []string{
	"workmanship",
	"materials",
	"design",
	"measurement",
	"documentation",
	"other",
}

// transitions is the directed status graph. The only back-edges are into
// disputed (raised from any pre-closure status) and open (administrative
// reopen of a dispute).
var transitions = map[string][]string{
	StatusOpen:         {StatusAcknowledged, StatusDisputed, StatusClosed},
	StatusAcknowledged: {StatusInProgress, StatusResolved, StatusDisputed, StatusClosed},
	StatusInProgress:   {StatusResolved, StatusDisputed, StatusClosed},
	StatusResolved:     {StatusDisputed, StatusClosed},
	StatusDisputed:     {StatusOpen, StatusClosed},
	StatusClosed:       {},
}

// Actor describes the requesting user's relationship-relevant attributes.
type Actor struct {
	UserID       string
	Role         string
	ContractorID string
}

// Record carries the parts of an NCR the state machine needs to evaluate
// eligibility. The machine never sees or touches persistence.
type Record struct {
	Status       string
	AssignedTo   string
	ContractorID string
}

// TransitionPayload holds the fields supplied with a transition request.
type TransitionPayload struct {
	RootCause        string
	CorrectiveAction string
	PreventiveAction string
	ActualCost       *float64
	DisputeReason    string
	DisputeCategory  string
}

// Decision is the outcome of evaluating one requested transition.
type Decision struct {
	Allowed       bool     `json:"allowed"`
	Reason        string   `json:"reason,omitempty"`
	ReasonClass   string   `json:"reason_class,omitempty"`
	MissingFields []string `json:"missing_fields,omitempty"`
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(class, reason string, missing ...string) Decision {
	return Decision{Allowed: false, Reason: reason, ReasonClass: class, MissingFields: missing}
}

// Decide evaluates whether the actor may move the record to the target
// status with the supplied payload. It is a pure function: the caller is
// responsible for persisting the new status and an immutable history entry
// when the decision is allowed.
//
// Checks run in order: no-op short circuit, graph reachability, actor
// eligibility, then required-field completeness. Field violations are
// collected eagerly so clients can render a single validation pass.
func Decide(record Record, target string, actor Actor, payload TransitionPayload) Decision {
	if !ValidStatus(record.Status) || !ValidStatus(target) {
		return deny(ReasonTransition, fmt.Sprintf("unknown status %q", pickInvalid(record.Status, target)))
	}

	// Idempotent re-submission: requesting the current status is a no-op.
	if target == record.Status {
		return allow()
	}

	// Administrative close bypasses everything else - the escape hatch for
	// abandoned records. Closed itself stays immutable.
	if target == StatusClosed && IsAdministrative(actor.Role) {
		return allow()
	}

	if !edgeExists(record.Status, target) {
		return deny(ReasonTransition,
			fmt.Sprintf("cannot move from %q to %q", record.Status, target))
	}

	if !eligible(record, target, actor) {
		return deny(ReasonEligibility, eligibilityReason(target))
	}

	if missing := missingFields(target, payload); len(missing) > 0 {
		return deny(ReasonValidation,
			fmt.Sprintf("transition to %q requires additional fields", target), missing...)
	}

	return allow()
}

// ValidStatus reports whether s is a known NCR status.
func ValidStatus(s string) bool {
	_, ok := transitions[s]
	return ok
}

// ValidDisputeCategory reports whether c is in the accepted enumeration.
func ValidDisputeCategory(c string) bool {
	for _, cat := range DisputeCategories {
		if c == cat {
			return true
		}
	}
	return false
}

func pickInvalid(a, b string) string {
	if !ValidStatus(a) {
		return a
	}
	return b
}

func edgeExists(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// eligible applies the actor-eligibility rules, evaluated before field
// checks. Administrative roles pass every rule.
func eligible(record Record, target string, actor Actor) bool {
	if IsAdministrative(actor.Role) {
		return true
	}

	switch target {
	case StatusAcknowledged:
		// Any organization member with edit rights
		return RoleAllows(actor.Role, "ncr:update")
	case StatusInProgress, StatusResolved:
		return actor.UserID != "" && actor.UserID == record.AssignedTo
	case StatusDisputed:
		if actor.UserID != "" && actor.UserID == record.AssignedTo {
			return true
		}
		// Members of the responsible contractor organization may dispute
		return actor.ContractorID != "" && actor.ContractorID == record.ContractorID
	default:
		// closed (non-admin), open (reopen) and anything else are
		// administrative only
		return false
	}
}

func eligibilityReason(target string) string {
	switch target {
	case StatusAcknowledged:
		return "acknowledging requires edit rights on non-conformance reports"
	case StatusInProgress, StatusResolved:
		return "only the assigned user or an administrator may perform this transition"
	case StatusDisputed:
		return "only the assigned user, the responsible contractor or an administrator may dispute"
	default:
		return "this transition is restricted to administrators"
	}
}

// missingFields returns every required-field violation for the target
// status, never just the first.
func missingFields(target string, payload TransitionPayload) []string {
	var missing []string

	switch target {
	case StatusResolved:
		if len(payload.RootCause) < minResolutionFieldLen {
			missing = append(missing, "root_cause")
		}
		if len(payload.CorrectiveAction) < minResolutionFieldLen {
			missing = append(missing, "corrective_action")
		}
	case StatusDisputed:
		if len(payload.DisputeReason) < minDisputeReasonLen {
			missing = append(missing, "dispute_reason")
		}
		if !ValidDisputeCategory(payload.DisputeCategory) {
			missing = append(missing, "dispute_category")
		}
	}

	return missing
}
