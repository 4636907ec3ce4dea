package entity

import (
	"time"
)

// 工作流状态常量
const (
	WorkflowStatusDraft     = "draft"
	WorkflowStatusActive    = "active"
	WorkflowStatusCompleted = "completed"
	WorkflowStatusCancelled = "cancelled"
)

// 工作流步骤状态常量
const (
	StepStatusPending    = "pending"
	StepStatusInProgress = "in-progress"
	StepStatusApproved   = "approved"
	StepStatusRejected   = "rejected"
)

// 工作流动作常量
const (
	WorkflowActionApprove  = "approve"
	WorkflowActionReject   = "reject"
	WorkflowActionReassign = "reassign"
)

// Workflow 审批工作流
// document_id 是软引用，创建时不校验文档是否存在。
// status 为 active 期间恰有一个步骤处于 in-progress；
// 进入 completed/cancelled 后不再允许任何步骤变更；current_step 单调不减。
type Workflow struct {
	ID          string    `json:"id" gorm:"primaryKey;size:32"`
	Name        string    `json:"name" gorm:"size:200;not null"`
	DocumentID  string    `json:"document_id" gorm:"size:32;not null;index"`
	Initiator   string    `json:"initiator" gorm:"size:64;not null"`
	Status      string    `json:"status" gorm:"size:16;not null;default:'active'"`
	CurrentStep int       `json:"current_step" gorm:"not null;default:1"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// 关联
	Steps []WorkflowStep `json:"steps,omitempty" gorm:"foreignKey:WorkflowID;constraint:OnDelete:CASCADE"`
}

func (Workflow) TableName() string {
	return "workflows"
}

// WorkflowStep 工作流步骤，步骤序号1起连续
type WorkflowStep struct {
	ID          string      `json:"id" gorm:"primaryKey;size:32"`
	WorkflowID  string      `json:"workflow_id" gorm:"size:32;not null;uniqueIndex:uniq_workflow_step,priority:1"`
	StepNumber  int         `json:"step_number" gorm:"not null;uniqueIndex:uniq_workflow_step,priority:2"`
	Name        string      `json:"name" gorm:"size:200;not null"`
	Assignees   StringArray `json:"assignees" gorm:"type:jsonb;not null"`
	Status      string      `json:"status" gorm:"size:16;not null;default:'pending'"`
	DueDate     *time.Time  `json:"due_date"`
	CompletedAt *time.Time  `json:"completed_at"`
	Comments    string      `json:"comments" gorm:"type:text"`
}

func (WorkflowStep) TableName() string {
	return "workflow_steps"
}

// CurrentStepOf 返回与 current_step 匹配的步骤
func (w *Workflow) CurrentStepOf() *WorkflowStep {
	for i := range w.Steps {
		if w.Steps[i].StepNumber == w.CurrentStep {
			return &w.Steps[i]
		}
	}
	return nil
}

// IsTerminal 工作流是否已处于终态
func (w *Workflow) IsTerminal() bool {
	return w.Status == WorkflowStatusCompleted || w.Status == WorkflowStatusCancelled
}
