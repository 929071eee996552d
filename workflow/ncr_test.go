package workflow

import "testing"

func validResolution() TransitionPayload {
	return TransitionPayload{
		RootCause:        "insufficient compaction of base layer",
		CorrectiveAction: "re-compact and retest to 98% MDD",
	}
}

func validDispute() TransitionPayload {
	return TransitionPayload{
		DisputeReason:   "the survey measurements were taken before final trim",
		DisputeCategory: "measurement",
	}
}

func TestDecide_TransitionGraph(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		allowed bool
	}{
		{"open to acknowledged", StatusOpen, StatusAcknowledged, true},
		{"acknowledged to in_progress", StatusAcknowledged, StatusInProgress, true},
		{"acknowledged to resolved", StatusAcknowledged, StatusResolved, true},
		{"in_progress to resolved", StatusInProgress, StatusResolved, true},
		{"resolved to closed", StatusResolved, StatusClosed, true},
		{"open to disputed", StatusOpen, StatusDisputed, true},
		{"resolved to disputed", StatusResolved, StatusDisputed, true},
		{"disputed reopen", StatusDisputed, StatusOpen, true},

		// Non-adjacent targets are rejected regardless of role
		{"open to in_progress skips acknowledgement", StatusOpen, StatusInProgress, false},
		{"open to resolved skips the workflow", StatusOpen, StatusResolved, false},
		{"resolved back to in_progress", StatusResolved, StatusInProgress, false},
		{"closed to disputed", StatusClosed, StatusDisputed, false},
		{"closed to open", StatusClosed, StatusOpen, false},
		{"closed to acknowledged", StatusClosed, StatusAcknowledged, false},
	}

	admin := Actor{UserID: "u-admin", Role: RoleAdmin}
	payload := TransitionPayload{
		RootCause:        validResolution().RootCause,
		CorrectiveAction: validResolution().CorrectiveAction,
		DisputeReason:    validDispute().DisputeReason,
		DisputeCategory:  validDispute().DisputeCategory,
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := Record{Status: tt.from, AssignedTo: "u-admin"}
			d := Decide(record, tt.to, admin, payload)
			if d.Allowed != tt.allowed {
				t.Errorf("Decide(%s -> %s) allowed = %v, expected %v (reason: %s)",
					tt.from, tt.to, d.Allowed, tt.allowed, d.Reason)
			}
			if !tt.allowed && d.ReasonClass != ReasonTransition {
				t.Errorf("Decide(%s -> %s) reason class = %q, expected %q",
					tt.from, tt.to, d.ReasonClass, ReasonTransition)
			}
		})
	}
}

func TestDecide_SelfTransitionIsNoOp(t *testing.T) {
	statuses := []string{
		StatusOpen, StatusAcknowledged, StatusInProgress,
		StatusResolved, StatusDisputed, StatusClosed,
	}
	for _, s := range statuses {
		t.Run(s, func(t *testing.T) {
			d := Decide(Record{Status: s}, s, Actor{Role: RoleViewer}, TransitionPayload{})
			if !d.Allowed {
				t.Errorf("Decide(%s -> %s) should be an idempotent no-op, got denial: %s", s, s, d.Reason)
			}
		})
	}
}

func TestDecide_UnknownStatusRejected(t *testing.T) {
	d := Decide(Record{Status: StatusOpen}, "archived", Actor{Role: RoleOwner}, TransitionPayload{})
	if d.Allowed || d.ReasonClass != ReasonTransition {
		t.Errorf("unknown target should be a transition error, got %+v", d)
	}

	d = Decide(Record{Status: "bogus"}, StatusClosed, Actor{Role: RoleOwner}, TransitionPayload{})
	if d.Allowed || d.ReasonClass != ReasonTransition {
		t.Errorf("unknown current status should be a transition error, got %+v", d)
	}
}

func TestDecide_ResolutionFieldContract(t *testing.T) {
	record := Record{Status: StatusAcknowledged, AssignedTo: "u-1"}
	actor := Actor{UserID: "u-1", Role: RoleInspector}

	tests := []struct {
		name    string
		payload TransitionPayload
		missing []string
	}{
		{
			name:    "both fields valid",
			payload: validResolution(),
			missing: nil,
		},
		{
			name: "root cause too short",
			payload: TransitionPayload{
				RootCause:        "bad base",
				CorrectiveAction: "re-compact and retest to 98% MDD",
			},
			missing: []string{"root_cause"},
		},
		{
			name: "corrective action too short",
			payload: TransitionPayload{
				RootCause:        "insufficient compaction of base layer",
				CorrectiveAction: "redo",
			},
			missing: []string{"corrective_action"},
		},
		{
			name:    "both missing reported together",
			payload: TransitionPayload{},
			missing: []string{"root_cause", "corrective_action"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(record, StatusResolved, actor, tt.payload)
			if len(tt.missing) == 0 {
				if !d.Allowed {
					t.Fatalf("expected allowed, got denial: %s %v", d.Reason, d.MissingFields)
				}
				return
			}
			if d.Allowed {
				t.Fatal("expected denial for incomplete payload")
			}
			if d.ReasonClass != ReasonValidation {
				t.Errorf("reason class = %q, expected %q", d.ReasonClass, ReasonValidation)
			}
			if len(d.MissingFields) != len(tt.missing) {
				t.Fatalf("missing fields = %v, expected %v", d.MissingFields, tt.missing)
			}
			for i, f := range tt.missing {
				if d.MissingFields[i] != f {
					t.Errorf("missing fields = %v, expected %v", d.MissingFields, tt.missing)
				}
			}
		})
	}
}

func TestDecide_DisputeFieldContract(t *testing.T) {
	record := Record{Status: StatusInProgress, AssignedTo: "u-1"}
	actor := Actor{UserID: "u-1", Role: RoleInspector}

	tests := []struct {
		name    string
		payload TransitionPayload
		missing []string
	}{
		{"valid dispute", validDispute(), nil},
		{
			"reason too short",
			TransitionPayload{DisputeReason: "we disagree", DisputeCategory: "measurement"},
			[]string{"dispute_reason"},
		},
		{
			"category not in enumeration",
			TransitionPayload{
				DisputeReason:   "the survey measurements were taken before final trim",
				DisputeCategory: "vibes",
			},
			[]string{"dispute_category"},
		},
		{
			"both violations reported",
			TransitionPayload{DisputeReason: "no", DisputeCategory: ""},
			[]string{"dispute_reason", "dispute_category"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(record, StatusDisputed, actor, tt.payload)
			if len(tt.missing) == 0 {
				if !d.Allowed {
					t.Fatalf("expected allowed, got denial: %s %v", d.Reason, d.MissingFields)
				}
				return
			}
			if d.Allowed || d.ReasonClass != ReasonValidation {
				t.Fatalf("expected validation denial, got %+v", d)
			}
			if len(d.MissingFields) != len(tt.missing) {
				t.Fatalf("missing fields = %v, expected %v", d.MissingFields, tt.missing)
			}
		})
	}
}

func TestDecide_ActorEligibility(t *testing.T) {
	record := Record{
		Status:       StatusAcknowledged,
		AssignedTo:   "u-assigned",
		ContractorID: "c-1",
	}

	tests := []struct {
		name    string
		target  string
		actor   Actor
		allowed bool
	}{
		{"assigned user may start work", StatusInProgress, Actor{UserID: "u-assigned", Role: RoleInspector}, true},
		{"other inspector may not start work", StatusInProgress, Actor{UserID: "u-other", Role: RoleInspector}, false},
		{"admin may start work", StatusInProgress, Actor{UserID: "u-admin", Role: RoleAdmin}, true},
		{"assigned user may resolve", StatusResolved, Actor{UserID: "u-assigned", Role: RoleInspector}, true},
		{"non-assigned manager may not resolve", StatusResolved, Actor{UserID: "u-pm", Role: RoleProjectManager}, false},
		{"owner may resolve", StatusResolved, Actor{UserID: "u-owner", Role: RoleOwner}, true},
		{"contractor member may dispute", StatusDisputed, Actor{UserID: "u-sub", Role: RoleContractor, ContractorID: "c-1"}, true},
		{"wrong contractor may not dispute", StatusDisputed, Actor{UserID: "u-sub", Role: RoleContractor, ContractorID: "c-2"}, false},
		{"assigned user may dispute", StatusDisputed, Actor{UserID: "u-assigned", Role: RoleInspector}, true},
		{"viewer may not acknowledge", StatusAcknowledged, Actor{UserID: "u-view", Role: RoleViewer}, false},
		{"inspector may acknowledge", StatusAcknowledged, Actor{UserID: "u-insp", Role: RoleInspector}, true},
		{"inspector may not close", StatusClosed, Actor{UserID: "u-insp", Role: RoleInspector}, false},
		{"admin may close without fields", StatusClosed, Actor{UserID: "u-admin", Role: RoleAdmin}, true},
	}

	payload := TransitionPayload{
		RootCause:        validResolution().RootCause,
		CorrectiveAction: validResolution().CorrectiveAction,
		DisputeReason:    validDispute().DisputeReason,
		DisputeCategory:  validDispute().DisputeCategory,
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := record
			if tt.target == StatusAcknowledged {
				rec.Status = StatusOpen
			}
			d := Decide(rec, tt.target, tt.actor, payload)
			if d.Allowed != tt.allowed {
				t.Errorf("allowed = %v, expected %v (reason: %s)", d.Allowed, tt.allowed, d.Reason)
			}
			if !tt.allowed && d.ReasonClass != ReasonEligibility {
				t.Errorf("reason class = %q, expected %q", d.ReasonClass, ReasonEligibility)
			}
		})
	}
}

func TestDecide_EligibilityCheckedBeforeFields(t *testing.T) {
	// A non-assigned actor with a perfect payload still gets an eligibility
	// denial, not a validation one - callers render different remediation UI.
	record := Record{Status: StatusAcknowledged, AssignedTo: "u-assigned"}
	d := Decide(record, StatusResolved, Actor{UserID: "u-other", Role: RoleInspector}, validResolution())
	if d.Allowed {
		t.Fatal("expected denial for non-assigned actor")
	}
	if d.ReasonClass != ReasonEligibility {
		t.Errorf("reason class = %q, expected %q", d.ReasonClass, ReasonEligibility)
	}
	if len(d.MissingFields) != 0 {
		t.Errorf("eligibility denial should not carry missing fields, got %v", d.MissingFields)
	}
}

func TestDecide_AdminCloseBypassesFieldContract(t *testing.T) {
	for _, from := range []string{StatusOpen, StatusAcknowledged, StatusInProgress, StatusDisputed} {
		t.Run(from, func(t *testing.T) {
			d := Decide(Record{Status: from}, StatusClosed, Actor{UserID: "u-1", Role: RoleOwner}, TransitionPayload{})
			if !d.Allowed {
				t.Errorf("admin close from %s should bypass field requirements: %s", from, d.Reason)
			}
		})
	}
}
