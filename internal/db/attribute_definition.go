package db

import "time"

// AttributeDefinition 定义了角色的可重命名属性槽
// ID 永久且不被复用，奖励与角色属性值均按 ID 引用。
// IsDefault 对角色创建时播种的五个属性为 true。
type AttributeDefinition struct {
	ID          string `gorm:"primaryKey;size:128"`
	Name        string `gorm:"not null"`
	CharacterID string `gorm:"index"`
	SortOrder   int64
	IsDefault   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DefaultAttributeSeed 描述角色创建（及第 4 代迁移）时播种的默认属性。
type DefaultAttributeSeed struct {
	LegacyKey string
	Name      string
}

// DefaultAttributeSeeds 为五个默认属性，顺序即 sortOrder。
// 名称沿用历史数据中的繁体写法，属于产品数据而非代码风格。
var DefaultAttributeSeeds = []DefaultAttributeSeed{
	{LegacyKey: "str", Name: "力量"},
	{LegacyKey: "int", Name: "智力"},
	{LegacyKey: "dex", Name: "敏捷"},
	{LegacyKey: "vit", Name: "體力"},
	{LegacyKey: "wis", Name: "智慧"},
}

// DefaultAttributeID 由 (角色 ID, 旧属性键) 推导确定性的属性定义 ID。
// 同一输入永远得到同一 ID，不同角色之间不会冲突。
func DefaultAttributeID(characterID, legacyKey string) string {
	return characterID + "_attr_" + legacyKey
}
