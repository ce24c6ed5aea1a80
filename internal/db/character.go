package db

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Character 定义了角色模型
// Attributes 以 JSON 存储 attributeDefinitionId -> 数值 的映射，
// key 永远是属性定义的永久 ID，而非显示名称，重命名不会破坏奖励绑定。
// Money/Token 为普通有符号计数器，允许为负。
type Character struct {
	ID         string `gorm:"primaryKey;size:64"`
	AccountID  string `gorm:"index"`
	Name       string `gorm:"not null"`
	Level      int64  `gorm:"default:1"`
	Money      int64
	Token      int64
	Attributes datatypes.JSON
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// AttributeValues 解码角色的属性映射。空列返回空映射而非 nil 错误。
func (c *Character) AttributeValues() (map[string]int64, error) {
	if len(c.Attributes) == 0 {
		return map[string]int64{}, nil
	}

	values := map[string]int64{}
	if err := json.Unmarshal(c.Attributes, &values); err != nil {
		return nil, fmt.Errorf("decode character attributes: %w", err)
	}
	return values, nil
}

// SetAttributeValues 编码并回写角色的属性映射。
func (c *Character) SetAttributeValues(values map[string]int64) error {
	if values == nil {
		values = map[string]int64{}
	}

	raw, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode character attributes: %w", err)
	}
	c.Attributes = raw
	return nil
}
