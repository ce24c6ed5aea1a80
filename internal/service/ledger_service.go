package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/questlog/internal/db"
	"gorm.io/gorm"
)

// LedgerService 是唯一允许因完成/撤销任务而修改角色
// money/token/attributes 的代码路径。完成记录构成只追加的账本：
// 撤销打墓碑而非删除。角色更新与完成记录落库在同一事务内。
type LedgerService struct {
	db *gorm.DB

	// now 可注入，测试用固定时钟。
	now func() time.Time

	// OnCharacterChanged 在角色数值变更落库后触发，供外部观察者
	// 刷新展示；与存储自身的变更无关。
	OnCharacterChanged func(characterID string, at time.Time)
}

// NewLedgerService 构造 LedgerService。
func NewLedgerService(gdb *gorm.DB) *LedgerService {
	return &LedgerService{db: gdb, now: time.Now}
}

// PeriodKey 计算完成记录的周期分桶键。时区策略：一律取传入时间
// 自身的挂钟字段（调用方传 time.Now()，即进程本地时间）。
//   - none    -> 空串，唯一性按"该任务是否存在过未撤销的完成记录"判定
//   - daily   -> "2006-01-02"
//   - weekly  -> "W{年}-W{周}"，周 = ceil((年内第几天 + 1月1日星期值 + 1) / 7)，周日记 0
//   - monthly -> "{年}-M{两位月}"
func PeriodKey(resetRule string, now time.Time) string {
	switch resetRule {
	case db.ResetRuleDaily:
		return now.Format("2006-01-02")
	case db.ResetRuleWeekly:
		jan1 := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
		week := (now.YearDay() - 1 + int(jan1.Weekday()) + 1 + 6) / 7
		return fmt.Sprintf("W%d-W%d", now.Year(), week)
	case db.ResetRuleMonthly:
		return fmt.Sprintf("%d-M%02d", now.Year(), int(now.Month()))
	default:
		return ""
	}
}

// Complete 完成任务：校验归属链，快照奖励并加到角色身上，写入完成
// 记录。不可重复任务在同一周期内已有未撤销的完成时静默无操作并返回
// nil（重复点击是预期的 UI 行为，不是错误）。
func (s *LedgerService) Complete(characterID, taskID string) (*db.TaskCompletion, error) {
	if characterID == "" {
		return nil, ErrCharacterNotSelected
	}

	var task db.Task
	if err := s.db.Where("id = ?", taskID).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("find task: %w", err)
	}

	var plan db.Plan
	if err := s.db.Where("id = ?", task.PlanID).First(&plan).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("find plan: %w", err)
	}
	if plan.CharacterID != characterID {
		return nil, ErrPlanMismatch
	}

	var character db.Character
	if err := s.db.Where("id = ?", characterID).First(&character).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCharacterNotFound
		}
		return nil, fmt.Errorf("find character: %w", err)
	}

	now := s.now()
	periodKey := PeriodKey(plan.ResetRule, now)

	if !task.Repeatable {
		done, err := s.activeCompletionExists(task.ID, periodKey)
		if err != nil {
			return nil, err
		}
		if done {
			return nil, nil
		}
	}

	reward, err := task.RewardValue()
	if err != nil {
		return nil, err
	}

	completion := db.TaskCompletion{
		ID:          uuid.NewString(),
		TaskID:      task.ID,
		CharacterID: character.ID,
		PlanID:      plan.ID,
		Ts:          now,
		PeriodKey:   periodKey,
	}
	// 冻结快照：任务奖励之后被编辑不影响这条记录的回退值。
	if err := completion.SetAppliedReward(reward); err != nil {
		return nil, err
	}

	if err := applyReward(&character, reward, 1); err != nil {
		return nil, err
	}
	character.UpdatedAt = now

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&character).Error; err != nil {
			return fmt.Errorf("save character: %w", err)
		}
		if err := tx.Create(&completion).Error; err != nil {
			return fmt.Errorf("create completion: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.signalCharacterChanged(character.ID, now)
	return &completion, nil
}

// Undo 撤销任务最近一次未撤销的完成：按快照反向扣回奖励，给记录
// 打上 undone 墓碑。没有可撤销的记录、或记录属于别的角色时静默无操作。
func (s *LedgerService) Undo(characterID, taskID string) error {
	if characterID == "" {
		return nil
	}

	var completion db.TaskCompletion
	err := s.db.Where("task_id = ? AND undone = ?", taskID, false).
		Order("ts DESC").First(&completion).Error
	switch {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil
	default:
		return fmt.Errorf("find completion: %w", err)
	}

	if completion.CharacterID != characterID {
		return nil
	}

	var character db.Character
	err = s.db.Where("id = ?", characterID).First(&character).Error
	switch {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil
	default:
		return fmt.Errorf("find character: %w", err)
	}

	// 回退用的是快照，不是任务当前的奖励。
	reward, err := completion.AppliedReward()
	if err != nil {
		return err
	}
	if err := applyReward(&character, reward, -1); err != nil {
		return err
	}

	now := s.now()
	character.UpdatedAt = now
	completion.Undone = true

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&character).Error; err != nil {
			return fmt.Errorf("save character: %w", err)
		}
		if err := tx.Model(&db.TaskCompletion{}).Where("id = ?", completion.ID).
			Update("undone", true).Error; err != nil {
			return fmt.Errorf("mark completion undone: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.signalCharacterChanged(character.ID, now)
	return nil
}

// IsCompletedInPeriod 判断任务在其计划当前重置周期内是否已有未撤销
// 的完成记录。resetRule=none 时等价于"是否完成过"。
func (s *LedgerService) IsCompletedInPeriod(taskID string) (bool, error) {
	var task db.Task
	if err := s.db.Where("id = ?", taskID).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrTaskNotFound
		}
		return false, fmt.Errorf("find task: %w", err)
	}

	var plan db.Plan
	if err := s.db.Where("id = ?", task.PlanID).First(&plan).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrPlanNotFound
		}
		return false, fmt.Errorf("find plan: %w", err)
	}

	return s.activeCompletionExists(task.ID, PeriodKey(plan.ResetRule, s.now()))
}

func (s *LedgerService) activeCompletionExists(taskID, periodKey string) (bool, error) {
	var count int64
	if err := s.db.Model(&db.TaskCompletion{}).
		Where("task_id = ? AND period_key = ? AND undone = ?", taskID, periodKey, false).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("check active completion: %w", err)
	}
	return count > 0, nil
}

func (s *LedgerService) signalCharacterChanged(characterID string, at time.Time) {
	if s.OnCharacterChanged != nil {
		s.OnCharacterChanged(characterID, at)
	}
}

// applyReward 把奖励按符号作用到角色计数器上。纯有符号加减，
// 不做下限或上限截断，数值允许为负。attr 奖励在键缺失时按 0 起算。
func applyReward(character *db.Character, reward db.Reward, sign int64) error {
	switch reward.Type {
	case db.RewardTypeMoney:
		character.Money += sign * reward.Amount
	case db.RewardTypeToken:
		character.Token += sign * reward.Amount
	case db.RewardTypeAttr:
		values, err := character.AttributeValues()
		if err != nil {
			return err
		}
		values[reward.AttributeID] += sign * reward.Amount
		return character.SetAttributeValues(values)
	default:
		return fmt.Errorf("unsupported reward type %q", reward.Type)
	}
	return nil
}
