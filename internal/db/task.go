package db

import (
	"time"

	"gorm.io/datatypes"
)

// Task 定义了任务模型
// Reward 以 JSON 存储带标签联合（见 Reward）。
// SortOrder 可空：nil 表示未排序，展示时追加在末尾。
type Task struct {
	ID         string `gorm:"primaryKey;size:64"`
	PlanID     string `gorm:"index"`
	Name       string `gorm:"not null"`
	Reward     datatypes.JSON
	Repeatable bool
	SortOrder  *int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// RewardValue 解码任务当前的奖励。
func (t *Task) RewardValue() (Reward, error) {
	return decodeReward(t.Reward)
}

// SetRewardValue 编码并回写任务奖励。
func (t *Task) SetRewardValue(r Reward) error {
	raw, err := encodeReward(r)
	if err != nil {
		return err
	}
	t.Reward = raw
	return nil
}
