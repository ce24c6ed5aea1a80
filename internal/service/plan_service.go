package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/questlog/internal/db"
	"gorm.io/gorm"
)

var (
	// ErrPlanNotFound 在指定计划不存在时返回
	ErrPlanNotFound = errors.New("plan not found")
	// ErrPlanMismatch 在计划不属于当前角色时返回
	ErrPlanMismatch = errors.New("plan does not belong to character")
	// ErrTaskNotFound 在指定任务不存在时返回
	ErrTaskNotFound = errors.New("task not found")
	// ErrInvalidResetRule 在重置规则不在支持集合内时返回
	ErrInvalidResetRule = errors.New("invalid reset rule")
)

// PlanService 负责计划与任务的增删改查。
// 跨实体一致性在这一层保证：任何任务级变更都先校验
// task.planId -> plan.characterId 归属链。
type PlanService struct {
	db *gorm.DB
}

// PlanUpdateInput 定义更新计划时可配置字段。ResetRule 创建后固定，
// 不在可更新字段之列。
type PlanUpdateInput struct {
	Name      string
	SortOrder *int64
	ImageURL  *string
}

// TaskInput 定义创建/更新任务时可配置字段。
type TaskInput struct {
	Name       string
	Reward     db.Reward
	Repeatable bool
}

// NewPlanService 构造 PlanService。
func NewPlanService(gdb *gorm.DB) *PlanService {
	return &PlanService{db: gdb}
}

// CreatePlan 在角色下创建计划，sortOrder 续排在现有计划之后。
func (s *PlanService) CreatePlan(characterID, name, resetRule, imageURL string) (*db.Plan, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, ErrNameEmpty
	}
	if !db.ValidResetRule(resetRule) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidResetRule, resetRule)
	}

	var character db.Character
	if err := s.db.Where("id = ?", characterID).First(&character).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCharacterNotFound
		}
		return nil, fmt.Errorf("find character: %w", err)
	}

	var current struct{ Max *int64 }
	if err := s.db.Model(&db.Plan{}).
		Where("character_id = ?", characterID).
		Select("MAX(sort_order) AS max").Scan(&current).Error; err != nil {
		return nil, fmt.Errorf("read max plan order: %w", err)
	}
	next := int64(0)
	if current.Max != nil {
		next = *current.Max + 1
	}

	now := time.Now()
	plan := db.Plan{
		ID:          uuid.NewString(),
		CharacterID: character.ID,
		Name:        trimmed,
		ResetRule:   resetRule,
		SortOrder:   next,
		ImageURL:    strings.TrimSpace(imageURL),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.Create(&plan).Error; err != nil {
		return nil, fmt.Errorf("create plan: %w", err)
	}
	return &plan, nil
}

// UpdatePlan 更新计划的名称、排序与封面。
func (s *PlanService) UpdatePlan(characterID, planID string, input PlanUpdateInput) (*db.Plan, error) {
	plan, err := s.ownedPlan(characterID, planID)
	if err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(input.Name)
	if trimmed == "" {
		return nil, ErrNameEmpty
	}

	plan.Name = trimmed
	if input.SortOrder != nil {
		plan.SortOrder = *input.SortOrder
	}
	if input.ImageURL != nil {
		plan.ImageURL = strings.TrimSpace(*input.ImageURL)
	}
	plan.UpdatedAt = time.Now()

	if err := s.db.Save(plan).Error; err != nil {
		return nil, fmt.Errorf("update plan: %w", err)
	}
	return plan, nil
}

// DeletePlan 删除计划及其下任务。完成记录是只追加的账本，保留不动。
func (s *PlanService) DeletePlan(characterID, planID string) error {
	plan, err := s.ownedPlan(characterID, planID)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("plan_id = ?", plan.ID).Delete(&db.Task{}).Error; err != nil {
			return fmt.Errorf("delete plan tasks: %w", err)
		}
		if err := tx.Where("id = ?", plan.ID).Delete(&db.Plan{}).Error; err != nil {
			return fmt.Errorf("delete plan: %w", err)
		}
		return nil
	})
}

// ListByCharacter 按 sortOrder 返回角色的计划。
func (s *PlanService) ListByCharacter(characterID string) ([]db.Plan, error) {
	var plans []db.Plan
	if err := s.db.Where("character_id = ?", characterID).
		Order("sort_order ASC, created_at ASC").
		Find(&plans).Error; err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	return plans, nil
}

// CreateTask 在计划下创建任务，sortOrder 续排在现有任务之后。
// attr 奖励必须引用计划归属角色名下存活的属性定义。
func (s *PlanService) CreateTask(characterID, planID string, input TaskInput) (*db.Task, error) {
	plan, err := s.ownedPlan(characterID, planID)
	if err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(input.Name)
	if trimmed == "" {
		return nil, ErrNameEmpty
	}
	if err := s.validateReward(plan.CharacterID, input.Reward); err != nil {
		return nil, err
	}

	var current struct{ Max *int64 }
	if err := s.db.Model(&db.Task{}).
		Where("plan_id = ?", plan.ID).
		Select("MAX(sort_order) AS max").Scan(&current).Error; err != nil {
		return nil, fmt.Errorf("read max task order: %w", err)
	}
	next := int64(0)
	if current.Max != nil {
		next = *current.Max + 1
	}

	now := time.Now()
	task := db.Task{
		ID:         uuid.NewString(),
		PlanID:     plan.ID,
		Name:       trimmed,
		Repeatable: input.Repeatable,
		SortOrder:  &next,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := task.SetRewardValue(input.Reward); err != nil {
		return nil, err
	}

	if err := s.db.Create(&task).Error; err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return &task, nil
}

// UpdateTask 更新任务的名称、奖励与可重复标记。
// 已有完成记录持有奖励快照，不受此处编辑影响。
func (s *PlanService) UpdateTask(characterID, taskID string, input TaskInput) (*db.Task, error) {
	task, plan, err := s.ownedTask(characterID, taskID)
	if err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(input.Name)
	if trimmed == "" {
		return nil, ErrNameEmpty
	}
	if err := s.validateReward(plan.CharacterID, input.Reward); err != nil {
		return nil, err
	}

	task.Name = trimmed
	task.Repeatable = input.Repeatable
	if err := task.SetRewardValue(input.Reward); err != nil {
		return nil, err
	}
	task.UpdatedAt = time.Now()

	if err := s.db.Save(task).Error; err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return task, nil
}

// UpdateTaskOrder 按给定 ID 顺序重排计划下的任务；不属于该计划的
// ID 被静默跳过。
func (s *PlanService) UpdateTaskOrder(characterID, planID string, taskIDs []string) error {
	plan, err := s.ownedPlan(characterID, planID)
	if err != nil {
		return err
	}

	var tasks []db.Task
	if err := s.db.Where("plan_id = ?", plan.ID).Find(&tasks).Error; err != nil {
		return fmt.Errorf("list plan tasks: %w", err)
	}
	known := make(map[string]struct{}, len(tasks))
	for _, task := range tasks {
		known[task.ID] = struct{}{}
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		order := int64(0)
		for _, id := range taskIDs {
			if _, ok := known[id]; !ok {
				continue
			}
			if err := tx.Model(&db.Task{}).Where("id = ?", id).
				Update("sort_order", order).Error; err != nil {
				return fmt.Errorf("reorder task %s: %w", id, err)
			}
			order++
		}
		return nil
	})
}

// DeleteTask 删除任务，保留其完成记录。
func (s *PlanService) DeleteTask(characterID, taskID string) error {
	task, _, err := s.ownedTask(characterID, taskID)
	if err != nil {
		return err
	}
	if err := s.db.Where("id = ?", task.ID).Delete(&db.Task{}).Error; err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// ListTasks 按 sortOrder 返回计划下的任务，未排序的追加在末尾。
func (s *PlanService) ListTasks(planID string) ([]db.Task, error) {
	var tasks []db.Task
	if err := s.db.Where("plan_id = ?", planID).
		Order("sort_order IS NULL, sort_order ASC, created_at ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// ownedPlan 加载计划并校验归属角色。
func (s *PlanService) ownedPlan(characterID, planID string) (*db.Plan, error) {
	if characterID == "" {
		return nil, ErrCharacterNotSelected
	}

	var plan db.Plan
	if err := s.db.Where("id = ?", planID).First(&plan).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("find plan: %w", err)
	}
	if plan.CharacterID != characterID {
		return nil, ErrPlanMismatch
	}
	return &plan, nil
}

// ownedTask 加载任务并沿 task -> plan -> character 校验归属链。
func (s *PlanService) ownedTask(characterID, taskID string) (*db.Task, *db.Plan, error) {
	var task db.Task
	if err := s.db.Where("id = ?", taskID).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrTaskNotFound
		}
		return nil, nil, fmt.Errorf("find task: %w", err)
	}

	plan, err := s.ownedPlan(characterID, task.PlanID)
	if err != nil {
		return nil, nil, err
	}
	return &task, plan, nil
}

func (s *PlanService) validateReward(characterID string, reward db.Reward) error {
	if err := reward.Validate(); err != nil {
		return err
	}
	if reward.Type != db.RewardTypeAttr {
		return nil
	}

	var definition db.AttributeDefinition
	if err := s.db.Where("id = ?", reward.AttributeID).First(&definition).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAttributeNotFound
		}
		return fmt.Errorf("find attribute definition: %w", err)
	}
	if definition.CharacterID != characterID {
		return ErrAttributeMismatch
	}
	return nil
}
