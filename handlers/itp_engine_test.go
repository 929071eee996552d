package handlers

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"p9e.in/siteqa/models"
	"p9e.in/siteqa/workflow"
)

// fakeInstanceStore keeps instances in memory so the orchestrator's
// partial-failure semantics can be exercised without a database.
type fakeInstanceStore struct {
	instances map[uuid.UUID]*models.ITPInstance
	saveErrs  map[uuid.UUID]error
	saves     int
}

func newFakeStore(instances ...*models.ITPInstance) *fakeInstanceStore {
	s := &fakeInstanceStore{
		instances: make(map[uuid.UUID]*models.ITPInstance),
		saveErrs:  make(map[uuid.UUID]error),
	}
	for _, inst := range instances {
		s.instances[inst.ID] = inst
	}
	return s
}

func (s *fakeInstanceStore) Fetch(orgID, instanceID uuid.UUID) (*models.ITPInstance, error) {
	inst, ok := s.instances[instanceID]
	if !ok || inst.OrganizationID != orgID {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *inst
	return &cp, nil
}

func (s *fakeInstanceStore) Save(instance *models.ITPInstance) error {
	if err := s.saveErrs[instance.ID]; err != nil {
		return err
	}
	s.saves++
	cp := *instance
	s.instances[instance.ID] = &cp
	return nil
}

var testClock = func() time.Time {
	return time.Date(2026, 5, 2, 8, 30, 0, 0, time.UTC)
}

func newInstance(orgID uuid.UUID, status string, data models.ITPData) *models.ITPInstance {
	if data == nil {
		data = models.ITPData{}
	}
	return &models.ITPInstance{
		ID:               uuid.New(),
		OrganizationID:   orgID,
		ProjectID:        uuid.New(),
		TemplateID:       uuid.New(),
		Data:             data,
		InspectionStatus: status,
		Version:          1,
	}
}

func TestBatchUpdate_PartialFailure(t *testing.T) {
	orgID := uuid.New()
	a := newInstance(orgID, workflow.InspectionDraft, nil)
	c := newInstance(orgID, workflow.InspectionDraft, nil)
	store := newFakeStore(a, c)
	engine := newITPEngineWithStore(store, testClock)

	missing := uuid.New()
	requests := []InstanceUpdateRequest{
		{InstanceID: a.ID, Updates: []workflow.ItemUpdate{
			{ItemID: "earthworks.compaction", Status: workflow.ResultPass},
			{ItemID: "earthworks.levels", Status: workflow.ResultFail},
		}},
		{InstanceID: missing, Updates: []workflow.ItemUpdate{
			{ItemID: "s1.i1", Status: workflow.ResultPass},
		}},
		{InstanceID: c.ID, Updates: []workflow.ItemUpdate{
			{ItemID: "drainage.pipe-bedding", Status: workflow.ResultNA},
		}},
	}

	result, err := engine.BatchUpdate(orgID, requests, "u-inspector", false)
	if err != nil {
		t.Fatalf("BatchUpdate: %v", err)
	}

	if result.Updated != 2 {
		t.Errorf("updated = %d, expected 2", result.Updated)
	}
	if len(result.Errors) != 1 || result.Errors[0].InstanceID != missing {
		t.Fatalf("errors = %+v, expected exactly the missing instance", result.Errors)
	}

	// A and C reflect their own submitted items only
	savedA := store.instances[a.ID]
	if savedA.CompletionPercentage != 100 {
		t.Errorf("instance A completion = %d, expected 100", savedA.CompletionPercentage)
	}
	if savedA.InspectionStatus != workflow.InspectionCompleted {
		t.Errorf("instance A status = %q, expected completed", savedA.InspectionStatus)
	}
	if len(savedA.Data["earthworks"]) != 2 {
		t.Errorf("instance A should carry exactly its own items: %+v", savedA.Data)
	}

	savedC := store.instances[c.ID]
	if savedC.CompletionPercentage != 100 || len(savedC.Data) != 1 {
		t.Errorf("instance C should carry exactly its own item: %+v", savedC)
	}
}

func TestBatchUpdate_SiblingSurvivesPersistenceFailure(t *testing.T) {
	orgID := uuid.New()
	a := newInstance(orgID, workflow.InspectionDraft, nil)
	b := newInstance(orgID, workflow.InspectionDraft, nil)
	store := newFakeStore(a, b)
	store.saveErrs[a.ID] = errors.New("deadlock detected")
	engine := newITPEngineWithStore(store, testClock)

	result, err := engine.BatchUpdate(orgID, []InstanceUpdateRequest{
		{InstanceID: a.ID, Updates: []workflow.ItemUpdate{{ItemID: "s1.i1", Status: workflow.ResultPass}}},
		{InstanceID: b.ID, Updates: []workflow.ItemUpdate{{ItemID: "s1.i1", Status: workflow.ResultPass}}},
	}, "u-1", false)
	if err != nil {
		t.Fatalf("BatchUpdate: %v", err)
	}

	if result.Updated != 1 {
		t.Errorf("updated = %d, expected 1", result.Updated)
	}
	if len(result.Errors) != 1 || result.Errors[0].InstanceID != a.ID {
		t.Errorf("errors = %+v, expected instance A's save failure", result.Errors)
	}
	if store.instances[b.ID].CompletionPercentage != 100 {
		t.Error("instance B's update should have landed despite A's failure")
	}
}

func TestBatchUpdate_Idempotent(t *testing.T) {
	orgID := uuid.New()
	inst := newInstance(orgID, workflow.InspectionDraft, nil)
	store := newFakeStore(inst)
	engine := newITPEngineWithStore(store, testClock)

	requests := []InstanceUpdateRequest{
		{InstanceID: inst.ID, Updates: []workflow.ItemUpdate{
			{ItemID: "s1.i1", Status: workflow.ResultPass},
			{ItemID: "s1.i2", Status: workflow.ResultFail, Notes: "honeycombing"},
			{ItemID: "s2.i1", Status: workflow.ResultNA},
		}},
	}

	if _, err := engine.BatchUpdate(orgID, requests, "u-1", false); err != nil {
		t.Fatalf("first BatchUpdate: %v", err)
	}
	first := store.instances[inst.ID]
	firstData := first.Data
	firstPct := first.CompletionPercentage

	if _, err := engine.BatchUpdate(orgID, requests, "u-1", false); err != nil {
		t.Fatalf("second BatchUpdate: %v", err)
	}
	second := store.instances[inst.ID]

	if !reflect.DeepEqual(firstData, second.Data) {
		t.Errorf("resubmitting an identical batch changed data:\n%+v\nvs\n%+v", firstData, second.Data)
	}
	if second.CompletionPercentage != firstPct {
		t.Errorf("resubmission changed completion: %d vs %d", second.CompletionPercentage, firstPct)
	}
}

func TestBatchUpdate_MalformedBatchAbortsBeforeAnyWrite(t *testing.T) {
	orgID := uuid.New()
	good := newInstance(orgID, workflow.InspectionDraft, nil)
	store := newFakeStore(good)
	engine := newITPEngineWithStore(store, testClock)

	_, err := engine.BatchUpdate(orgID, []InstanceUpdateRequest{
		{InstanceID: good.ID, Updates: []workflow.ItemUpdate{{ItemID: "s1.i1", Status: workflow.ResultPass}}},
		{InstanceID: uuid.New(), Updates: []workflow.ItemUpdate{{ItemID: "not-composite", Status: workflow.ResultPass}}},
	}, "u-1", false)
	if err == nil {
		t.Fatal("malformed batch should abort with an error")
	}
	if store.saves != 0 {
		t.Errorf("no instance should be written before shared validation passes, got %d saves", store.saves)
	}
}

func TestBatchUpdate_DerivedStatusProgression(t *testing.T) {
	orgID := uuid.New()
	inst := newInstance(orgID, workflow.InspectionDraft, models.ITPData{
		"s1": {
			"i1": {},
			"i2": {},
		},
	})
	store := newFakeStore(inst)
	engine := newITPEngineWithStore(store, testClock)

	// One of two items recorded: in_progress
	_, err := engine.BatchUpdate(orgID, []InstanceUpdateRequest{
		{InstanceID: inst.ID, Updates: []workflow.ItemUpdate{{ItemID: "s1.i1", Status: workflow.ResultPass}}},
	}, "u-1", false)
	if err != nil {
		t.Fatalf("BatchUpdate: %v", err)
	}
	if got := store.instances[inst.ID]; got.CompletionPercentage != 50 || got.InspectionStatus != workflow.InspectionInProgress {
		t.Errorf("after half: pct=%d status=%q", got.CompletionPercentage, got.InspectionStatus)
	}

	// Both recorded: completed
	_, err = engine.BatchUpdate(orgID, []InstanceUpdateRequest{
		{InstanceID: inst.ID, Updates: []workflow.ItemUpdate{{ItemID: "s1.i2", Status: workflow.ResultNA}}},
	}, "u-1", false)
	if err != nil {
		t.Fatalf("BatchUpdate: %v", err)
	}
	if got := store.instances[inst.ID]; got.CompletionPercentage != 100 || got.InspectionStatus != workflow.InspectionCompleted {
		t.Errorf("after all: pct=%d status=%q", got.CompletionPercentage, got.InspectionStatus)
	}
}

func TestBatchUpdate_ExplicitStatusOverrideWins(t *testing.T) {
	orgID := uuid.New()
	inst := newInstance(orgID, workflow.InspectionDraft, models.ITPData{
		"s1": {"i1": {}, "i2": {}, "i3": {}, "i4": {}, "i5": {}},
	})
	store := newFakeStore(inst)
	engine := newITPEngineWithStore(store, testClock)

	// Sign off at 40% completion - the override is the contract, not a bug
	_, err := engine.BatchUpdate(orgID, []InstanceUpdateRequest{
		{
			InstanceID: inst.ID,
			Updates: []workflow.ItemUpdate{
				{ItemID: "s1.i1", Status: workflow.ResultPass},
				{ItemID: "s1.i2", Status: workflow.ResultPass},
			},
			InspectionStatus: workflow.InspectionApproved,
		},
	}, "u-admin", true)
	if err != nil {
		t.Fatalf("BatchUpdate: %v", err)
	}

	got := store.instances[inst.ID]
	if got.CompletionPercentage != 40 {
		t.Errorf("completion = %d, expected 40", got.CompletionPercentage)
	}
	if got.InspectionStatus != workflow.InspectionApproved {
		t.Errorf("status = %q, explicit override should win", got.InspectionStatus)
	}
}

func TestBatchUpdate_SignoffSurvivesRecomputation(t *testing.T) {
	orgID := uuid.New()
	inst := newInstance(orgID, workflow.InspectionApproved, models.ITPData{
		"s1": {"i1": {Result: workflow.ResultPass}},
	})
	store := newFakeStore(inst)
	engine := newITPEngineWithStore(store, testClock)

	// Privileged update without an explicit status: approved must not be
	// silently recomputed away
	_, err := engine.BatchUpdate(orgID, []InstanceUpdateRequest{
		{InstanceID: inst.ID, Updates: []workflow.ItemUpdate{{ItemID: "s1.i2", Status: workflow.ResultFail}}},
	}, "u-admin", true)
	if err != nil {
		t.Fatalf("BatchUpdate: %v", err)
	}

	if got := store.instances[inst.ID]; got.InspectionStatus != workflow.InspectionApproved {
		t.Errorf("status = %q, approved sign-off should survive recomputation", got.InspectionStatus)
	}
}

func TestBatchUpdate_SignedOffInstanceReadOnlyForUnprivileged(t *testing.T) {
	orgID := uuid.New()
	inst := newInstance(orgID, workflow.InspectionRejected, nil)
	store := newFakeStore(inst)
	engine := newITPEngineWithStore(store, testClock)

	result, err := engine.BatchUpdate(orgID, []InstanceUpdateRequest{
		{InstanceID: inst.ID, Updates: []workflow.ItemUpdate{{ItemID: "s1.i1", Status: workflow.ResultPass}}},
	}, "u-inspector", false)
	if err != nil {
		t.Fatalf("BatchUpdate: %v", err)
	}

	if result.Updated != 0 || len(result.Errors) != 1 {
		t.Errorf("unprivileged write to a rejected instance should fail per-instance: %+v", result)
	}
}

func TestBatchUpdate_WrongOrganizationReadsAsNotFound(t *testing.T) {
	orgID := uuid.New()
	foreign := newInstance(uuid.New(), workflow.InspectionDraft, nil)
	store := newFakeStore(foreign)
	engine := newITPEngineWithStore(store, testClock)

	result, err := engine.BatchUpdate(orgID, []InstanceUpdateRequest{
		{InstanceID: foreign.ID, Updates: []workflow.ItemUpdate{{ItemID: "s1.i1", Status: workflow.ResultPass}}},
	}, "u-1", false)
	if err != nil {
		t.Fatalf("BatchUpdate: %v", err)
	}

	if result.Updated != 0 || len(result.Errors) != 1 {
		t.Fatalf("foreign instance should fail, got %+v", result)
	}
	if result.Errors[0].Error != "instance not found" {
		t.Errorf("foreign instance must read as not found, got %q", result.Errors[0].Error)
	}
}
