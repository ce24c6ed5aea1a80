package db

import "time"

// Account 定义了账号模型
// 密码按原样存储为修剪后的明文字符串，登录时做字符串比较。
// 这是已知的设计弱点（见 DESIGN.md），哈希化属于未来的显式变更，
// 这里不做隐式加固。
type Account struct {
	ID        string `gorm:"primaryKey;size:64"`
	Username  string `gorm:"uniqueIndex;not null"`
	Password  string `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DefaultAccountID 是迁移期间为无主历史数据合成的默认账号 ID。
const DefaultAccountID = "default-account"
