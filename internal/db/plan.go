package db

import "time"

const (
	// ResetRuleNone 表示任务完成不随周期重置。
	ResetRuleNone = "none"
	// ResetRuleDaily 表示按日重置。
	ResetRuleDaily = "daily"
	// ResetRuleWeekly 表示按周重置。
	ResetRuleWeekly = "weekly"
	// ResetRuleMonthly 表示按月重置。
	ResetRuleMonthly = "monthly"
)

// ValidResetRule 判断重置规则是否在支持的集合内。
func ValidResetRule(rule string) bool {
	switch rule {
	case ResetRuleNone, ResetRuleDaily, ResetRuleWeekly, ResetRuleMonthly:
		return true
	}
	return false
}

// Plan 定义了计划模型
// ResetRule 创建后即固定，决定其下任务完成记录的周期分桶。
type Plan struct {
	ID          string `gorm:"primaryKey;size:64"`
	CharacterID string `gorm:"index"`
	Name        string `gorm:"not null"`
	ResetRule   string `gorm:"not null;default:none"`
	SortOrder   int64
	ImageURL    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
