package service

import (
	"context"
	"testing"

	"github.com/bitfantasy/docvault/internal/docvault/entity"
	"github.com/bitfantasy/docvault/internal/docvault/errs"
	"github.com/bitfantasy/docvault/internal/docvault/repository"
	"github.com/bitfantasy/docvault/internal/docvault/testutil"
)

func setupWorkflowService(t *testing.T) *WorkflowService {
	t.Helper()
	db := testutil.SetupTestDB(t)
	return NewWorkflowService(repository.NewWorkflowRepository(db), nil, nil)
}

func createTestWorkflow(t *testing.T, svc *WorkflowService, stepCount int) *entity.Workflow {
	t.Helper()
	steps := make([]CreateWorkflowStepRequest, 0, stepCount)
	for i := 0; i < stepCount; i++ {
		steps = append(steps, CreateWorkflowStepRequest{
			Name:      "Review",
			Assignees: []string{"user-reviewer"},
		})
	}
	wf, err := svc.Create(context.Background(), &CreateWorkflowRequest{
		Name:       "Release Approval",
		DocumentID: "doc-0001",
		Steps:      steps,
	}, "user-alice")
	if err != nil {
		t.Fatalf("create workflow: %v", err)
	}
	return wf
}

func TestWorkflowCreate(t *testing.T) {
	svc := setupWorkflowService(t)
	wf := createTestWorkflow(t, svc, 3)

	if wf.Status != entity.WorkflowStatusActive {
		t.Errorf("Expected status active, got %s", wf.Status)
	}
	if wf.CurrentStep != 1 {
		t.Errorf("Expected current_step 1, got %d", wf.CurrentStep)
	}
	if len(wf.Steps) != 3 {
		t.Fatalf("Expected 3 steps, got %d", len(wf.Steps))
	}
	if wf.Steps[0].Status != entity.StepStatusInProgress {
		t.Errorf("Expected first step in-progress, got %s", wf.Steps[0].Status)
	}
	for i := 1; i < 3; i++ {
		if wf.Steps[i].Status != entity.StepStatusPending {
			t.Errorf("Expected step %d pending, got %s", i+1, wf.Steps[i].Status)
		}
	}
}

func TestWorkflowCreateValidation(t *testing.T) {
	svc := setupWorkflowService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, &CreateWorkflowRequest{
		Name:       "Empty",
		DocumentID: "doc-0001",
	}, "user-alice")
	if !errs.IsValidation(err) {
		t.Errorf("Expected validation error for empty steps, got %v", err)
	}

	_, err = svc.Create(ctx, &CreateWorkflowRequest{
		Name:       "No assignees",
		DocumentID: "doc-0001",
		Steps:      []CreateWorkflowStepRequest{{Name: "Review"}},
	}, "user-alice")
	if !errs.IsValidation(err) {
		t.Errorf("Expected validation error for step without assignees, got %v", err)
	}
}

func TestWorkflowApproveToCompletion(t *testing.T) {
	svc := setupWorkflowService(t)
	wf := createTestWorkflow(t, svc, 3)
	ctx := context.Background()

	// 第一次通过：步骤1 approved，步骤2 in-progress
	advanced, err := svc.Advance(ctx, wf.ID, &AdvanceWorkflowRequest{
		Action:   entity.WorkflowActionApprove,
		Comments: "looks good",
	}, "user-reviewer")
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if advanced.CurrentStep != 2 {
		t.Errorf("Expected current_step 2, got %d", advanced.CurrentStep)
	}
	if advanced.Steps[0].Status != entity.StepStatusApproved {
		t.Errorf("Expected step 1 approved, got %s", advanced.Steps[0].Status)
	}
	if advanced.Steps[0].CompletedAt == nil {
		t.Error("Expected step 1 completed_at set")
	}
	if advanced.Steps[0].Comments != "looks good" {
		t.Errorf("Expected comments recorded, got %q", advanced.Steps[0].Comments)
	}
	if advanced.Steps[1].Status != entity.StepStatusInProgress {
		t.Errorf("Expected step 2 in-progress, got %s", advanced.Steps[1].Status)
	}

	// 通过剩余步骤
	if _, err := svc.Advance(ctx, wf.ID, &AdvanceWorkflowRequest{Action: entity.WorkflowActionApprove}, "user-reviewer"); err != nil {
		t.Fatalf("advance step 2: %v", err)
	}
	final, err := svc.Advance(ctx, wf.ID, &AdvanceWorkflowRequest{Action: entity.WorkflowActionApprove}, "user-reviewer")
	if err != nil {
		t.Fatalf("advance step 3: %v", err)
	}
	if final.Status != entity.WorkflowStatusCompleted {
		t.Errorf("Expected workflow completed, got %s", final.Status)
	}
	if final.CurrentStep != 3 {
		t.Errorf("Expected current_step 3, got %d", final.CurrentStep)
	}
}

func TestWorkflowRejectCancels(t *testing.T) {
	svc := setupWorkflowService(t)
	wf := createTestWorkflow(t, svc, 2)

	rejected, err := svc.Advance(context.Background(), wf.ID, &AdvanceWorkflowRequest{
		Action:   entity.WorkflowActionReject,
		Comments: "needs rework",
	}, "user-reviewer")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != entity.WorkflowStatusCancelled {
		t.Errorf("Expected workflow cancelled, got %s", rejected.Status)
	}
	if rejected.Steps[0].Status != entity.StepStatusRejected {
		t.Errorf("Expected step 1 rejected, got %s", rejected.Steps[0].Status)
	}
	if rejected.Steps[0].CompletedAt == nil {
		t.Error("Expected rejected step completed_at set")
	}
	// 后续步骤保持pending
	if rejected.Steps[1].Status != entity.StepStatusPending {
		t.Errorf("Expected step 2 untouched, got %s", rejected.Steps[1].Status)
	}
}

func TestWorkflowReassign(t *testing.T) {
	svc := setupWorkflowService(t)
	wf := createTestWorkflow(t, svc, 2)
	ctx := context.Background()

	reassigned, err := svc.Advance(ctx, wf.ID, &AdvanceWorkflowRequest{
		Action:    entity.WorkflowActionReassign,
		Assignees: []string{"user-dave", "user-erin"},
	}, "user-alice")
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if reassigned.CurrentStep != 1 {
		t.Errorf("Reassign must not advance, got current_step %d", reassigned.CurrentStep)
	}
	step := reassigned.Steps[0]
	if step.Status != entity.StepStatusInProgress {
		t.Errorf("Expected step still in-progress, got %s", step.Status)
	}
	if len(step.Assignees) != 2 || !step.Assignees.Contains("user-dave") {
		t.Errorf("Assignees not replaced: %v", step.Assignees)
	}

	// 缺少受理人的reassign被拒
	if _, err := svc.Advance(ctx, wf.ID, &AdvanceWorkflowRequest{
		Action: entity.WorkflowActionReassign,
	}, "user-alice"); !errs.IsValidation(err) {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestWorkflowAdvanceAfterTerminal(t *testing.T) {
	svc := setupWorkflowService(t)
	wf := createTestWorkflow(t, svc, 1)
	ctx := context.Background()

	if _, err := svc.Advance(ctx, wf.ID, &AdvanceWorkflowRequest{Action: entity.WorkflowActionApprove}, "user-reviewer"); err != nil {
		t.Fatalf("approve: %v", err)
	}

	if _, err := svc.Advance(ctx, wf.ID, &AdvanceWorkflowRequest{Action: entity.WorkflowActionApprove}, "user-reviewer"); !errs.IsValidation(err) {
		t.Errorf("Expected validation error after terminal status, got %v", err)
	}
}

func TestWorkflowUnknownAction(t *testing.T) {
	svc := setupWorkflowService(t)
	wf := createTestWorkflow(t, svc, 1)

	if _, err := svc.Advance(context.Background(), wf.ID, &AdvanceWorkflowRequest{
		Action: "escalate",
	}, "user-alice"); !errs.IsValidation(err) {
		t.Errorf("Expected validation error for unknown action, got %v", err)
	}
}
