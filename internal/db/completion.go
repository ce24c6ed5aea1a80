package db

import (
	"time"

	"gorm.io/datatypes"
)

// TaskCompletion 记录一次任务完成，构成只追加的奖励账本
// ValueApplied 是完成当时实际生效奖励的冻结快照，任务奖励后续被编辑
// 也不受影响；撤销必须按快照回退。
// Undone 为 true 表示该记录已被撤销（墓碑），记录永不删除。
// PeriodKey 把完成记录分桶到重置周期，resetRule=none 时为空串。
type TaskCompletion struct {
	ID           string `gorm:"primaryKey;size:64"`
	TaskID       string `gorm:"index"`
	CharacterID  string `gorm:"index"`
	PlanID       string `gorm:"index"`
	Ts           time.Time
	ValueApplied datatypes.JSON
	Undone       bool
	PeriodKey    string `gorm:"index"`
}

// AppliedReward 解码完成记录中的奖励快照。
func (c *TaskCompletion) AppliedReward() (Reward, error) {
	return decodeReward(c.ValueApplied)
}

// SetAppliedReward 编码并回写奖励快照。
func (c *TaskCompletion) SetAppliedReward(r Reward) error {
	raw, err := encodeReward(r)
	if err != nil {
		return err
	}
	c.ValueApplied = raw
	return nil
}
