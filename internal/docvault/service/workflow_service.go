package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bitfantasy/docvault/internal/docvault/entity"
	"github.com/bitfantasy/docvault/internal/docvault/errs"
	"github.com/bitfantasy/docvault/internal/docvault/fanout"
	"github.com/bitfantasy/docvault/internal/docvault/repository"
)

// WorkflowService 审批流服务
type WorkflowService struct {
	repo   *repository.WorkflowRepository
	fan    *fanout.Fanout
	logger *zap.Logger
}

// NewWorkflowService 创建审批流服务
func NewWorkflowService(repo *repository.WorkflowRepository, fan *fanout.Fanout, logger *zap.Logger) *WorkflowService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowService{repo: repo, fan: fan, logger: logger}
}

// CreateWorkflowStepRequest 审批步骤定义
type CreateWorkflowStepRequest struct {
	Name      string     `json:"name"`
	Assignees []string   `json:"assignees"`
	DueDate   *time.Time `json:"due_date"`
}

// CreateWorkflowRequest 创建审批流请求
type CreateWorkflowRequest struct {
	Name       string                      `json:"name"`
	DocumentID string                      `json:"document_id"`
	Steps      []CreateWorkflowStepRequest `json:"steps"`
}

// AdvanceWorkflowRequest 推进审批流请求
type AdvanceWorkflowRequest struct {
	Action    string   `json:"action"`
	Comments  string   `json:"comments"`
	Assignees []string `json:"assignees"`
}

// Create 创建审批流。步骤按顺序编号，首步直接进入in-progress，整体active。
func (s *WorkflowService) Create(ctx context.Context, req *CreateWorkflowRequest, initiator string) (*entity.Workflow, error) {
	if req.Name == "" {
		return nil, errs.Validation("workflow name is required")
	}
	if req.DocumentID == "" {
		return nil, errs.Validation("document id is required")
	}
	if len(req.Steps) == 0 {
		return nil, errs.Validation("workflow requires at least one step")
	}
	for i, step := range req.Steps {
		if len(step.Assignees) == 0 {
			return nil, errs.Validation("workflow step %d requires at least one assignee", i+1)
		}
	}
	now := time.Now()
	wf := &entity.Workflow{
		ID:          uuid.New().String()[:32],
		Name:        req.Name,
		DocumentID:  req.DocumentID,
		Initiator:   initiator,
		Status:      entity.WorkflowStatusActive,
		CurrentStep: 1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	wf.Steps = make([]entity.WorkflowStep, 0, len(req.Steps))
	for i, def := range req.Steps {
		status := entity.StepStatusPending
		if i == 0 {
			status = entity.StepStatusInProgress
		}
		wf.Steps = append(wf.Steps, entity.WorkflowStep{
			ID:         uuid.New().String()[:32],
			StepNumber: i + 1,
			Name:       def.Name,
			Assignees:  entity.StringArray(def.Assignees),
			Status:     status,
			DueDate:    def.DueDate,
		})
	}

	if err := s.repo.Create(ctx, wf); err != nil {
		return nil, fmt.Errorf("create workflow: %w", err)
	}

	s.logger.Info("Workflow created",
		zap.String("workflow_id", wf.ID),
		zap.String("document_id", wf.DocumentID),
		zap.Int("steps", len(wf.Steps)),
	)
	s.fan.Audit(ctx, fanout.AuditEntry{
		EntityType:  "workflow",
		EntityID:    wf.ID,
		Action:      "workflow.created",
		PerformedBy: initiator,
		Metadata:    map[string]interface{}{"name": wf.Name, "steps": len(wf.Steps)},
	})
	s.fan.Publish(ctx, "workflows.created", map[string]interface{}{
		"workflow_id": wf.ID,
		"document_id": wf.DocumentID,
	})
	s.fan.Broadcast(fanout.ChannelWorkflowUpdated, map[string]interface{}{
		"workflow_id": wf.ID,
		"event":       "created",
	})

	return s.repo.FindByID(ctx, wf.ID)
}

// Get 获取审批流详情
func (s *WorkflowService) Get(ctx context.Context, id string) (*entity.Workflow, error) {
	return s.repo.FindByID(ctx, id)
}

// List 获取审批流列表
func (s *WorkflowService) List(ctx context.Context, page, pageSize int, filters map[string]interface{}) ([]entity.Workflow, int64, error) {
	return s.repo.List(ctx, page, pageSize, filters)
}

// ListByDocument 按文档查审批流
func (s *WorkflowService) ListByDocument(ctx context.Context, documentID string) ([]entity.Workflow, error) {
	return s.repo.ListByDocument(ctx, documentID)
}

// Advance 推进审批流。approve逐步前移，最后一步通过后整体completed；
// reject直接cancelled；reassign替换当前步骤的受理人。终态后不可再推进。
func (s *WorkflowService) Advance(ctx context.Context, id string, req *AdvanceWorkflowRequest, performedBy string) (*entity.Workflow, error) {
	switch req.Action {
	case entity.WorkflowActionApprove, entity.WorkflowActionReject:
	case entity.WorkflowActionReassign:
		if len(req.Assignees) == 0 {
			return nil, errs.Validation("reassign requires at least one assignee")
		}
	default:
		return nil, errs.Validation("unsupported workflow action: %s", req.Action)
	}

	wf, err := s.repo.Advance(ctx, id, func(wf *entity.Workflow) error {
		if wf.IsTerminal() {
			return errs.Validation("workflow is already %s", wf.Status)
		}
		step := wf.CurrentStepOf()
		if step == nil {
			return errs.NotFound("current workflow step not found")
		}

		now := time.Now()
		if req.Comments != "" {
			step.Comments = req.Comments
		}
		switch req.Action {
		case entity.WorkflowActionApprove:
			step.Status = entity.StepStatusApproved
			step.CompletedAt = &now
			if wf.CurrentStep < len(wf.Steps) {
				wf.CurrentStep++
				next := wf.CurrentStepOf()
				next.Status = entity.StepStatusInProgress
			} else {
				wf.Status = entity.WorkflowStatusCompleted
			}
		case entity.WorkflowActionReject:
			step.Status = entity.StepStatusRejected
			step.CompletedAt = &now
			wf.Status = entity.WorkflowStatusCancelled
		case entity.WorkflowActionReassign:
			step.Assignees = entity.StringArray(req.Assignees)
			step.Status = entity.StepStatusInProgress
		}
		wf.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Workflow advanced",
		zap.String("workflow_id", wf.ID),
		zap.String("action", req.Action),
		zap.String("status", wf.Status),
		zap.Int("current_step", wf.CurrentStep),
	)
	s.fan.Audit(ctx, fanout.AuditEntry{
		EntityType:  "workflow",
		EntityID:    wf.ID,
		Action:      "workflow." + req.Action,
		PerformedBy: performedBy,
		Metadata:    map[string]interface{}{"current_step": wf.CurrentStep, "status": wf.Status},
	})
	s.fan.Publish(ctx, "workflows."+req.Action, map[string]interface{}{
		"workflow_id": wf.ID,
		"document_id": wf.DocumentID,
		"status":      wf.Status,
	})
	s.fan.Broadcast(fanout.ChannelWorkflowUpdated, map[string]interface{}{
		"workflow_id":  wf.ID,
		"event":        req.Action,
		"current_step": wf.CurrentStep,
		"status":       wf.Status,
	})

	return wf, nil
}
