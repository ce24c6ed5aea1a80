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
	// ErrAttributeNotFound 在指定属性定义不存在时返回
	ErrAttributeNotFound = errors.New("attribute definition not found")
	// ErrAttributeMismatch 在属性定义不属于预期角色时返回
	ErrAttributeMismatch = errors.New("attribute definition does not belong to character")
	// ErrAttributeInUse 在仍有任务奖励引用该属性定义时返回。
	// 与重复完成的静默无操作不同，这里必须硬失败，否则会悄悄破坏奖励绑定。
	ErrAttributeInUse = errors.New("attribute definition is referenced by task rewards")
)

// AttributeService 负责属性定义的生命周期：新增、重命名、删除与重排。
// 定义 ID 永久且不被复用，角色属性映射按 ID 取值。
type AttributeService struct {
	db *gorm.DB
}

// NewAttributeService 构造 AttributeService。
func NewAttributeService(gdb *gorm.DB) *AttributeService {
	return &AttributeService{db: gdb}
}

// Add 为角色新增属性定义：sortOrder 排在末尾，同时把角色该属性值
// 初始化为 0，定义与角色在同一事务内落库。
func (s *AttributeService) Add(characterID, name string) (*db.AttributeDefinition, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, ErrNameEmpty
	}

	var character db.Character
	if err := s.db.Where("id = ?", characterID).First(&character).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCharacterNotFound
		}
		return nil, fmt.Errorf("find character: %w", err)
	}

	var current struct{ Max *int64 }
	if err := s.db.Model(&db.AttributeDefinition{}).
		Where("character_id = ?", characterID).
		Select("MAX(sort_order) AS max").Scan(&current).Error; err != nil {
		return nil, fmt.Errorf("read max attribute order: %w", err)
	}
	next := int64(0)
	if current.Max != nil {
		next = *current.Max + 1
	}

	now := time.Now()
	definition := db.AttributeDefinition{
		ID:          uuid.NewString(),
		Name:        trimmed,
		CharacterID: character.ID,
		SortOrder:   next,
		IsDefault:   false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	values, err := character.AttributeValues()
	if err != nil {
		return nil, err
	}
	values[definition.ID] = 0
	if err := character.SetAttributeValues(values); err != nil {
		return nil, err
	}
	character.UpdatedAt = now

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&definition).Error; err != nil {
			return fmt.Errorf("create attribute definition: %w", err)
		}
		if err := tx.Model(&db.Character{}).Where("id = ?", character.ID).
			Updates(map[string]interface{}{
				"attributes": character.Attributes,
				"updated_at": character.UpdatedAt,
			}).Error; err != nil {
			return fmt.Errorf("init attribute value: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &definition, nil
}

// Rename 更新属性定义的显示名称。奖励按 ID 绑定，重命名不影响绑定。
func (s *AttributeService) Rename(id, name string) (*db.AttributeDefinition, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, ErrNameEmpty
	}

	definition, err := s.get(id)
	if err != nil {
		return nil, err
	}

	definition.Name = trimmed
	definition.UpdatedAt = time.Now()
	if err := s.db.Save(definition).Error; err != nil {
		return nil, fmt.Errorf("rename attribute definition: %w", err)
	}
	return definition, nil
}

// Delete 删除属性定义并移除角色属性映射中的对应键。
// 仍有任务奖励引用时返回 ErrAttributeInUse，什么都不改。
func (s *AttributeService) Delete(id string) error {
	definition, err := s.get(id)
	if err != nil {
		return err
	}

	inUse, err := s.rewardReferences(definition)
	if err != nil {
		return err
	}
	if inUse {
		return ErrAttributeInUse
	}

	var character db.Character
	if err := s.db.Where("id = ?", definition.CharacterID).First(&character).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCharacterNotFound
		}
		return fmt.Errorf("find character: %w", err)
	}

	values, err := character.AttributeValues()
	if err != nil {
		return err
	}
	delete(values, definition.ID)
	if err := character.SetAttributeValues(values); err != nil {
		return err
	}
	character.UpdatedAt = time.Now()

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", definition.ID).
			Delete(&db.AttributeDefinition{}).Error; err != nil {
			return fmt.Errorf("delete attribute definition: %w", err)
		}
		if err := tx.Model(&db.Character{}).Where("id = ?", character.ID).
			Updates(map[string]interface{}{
				"attributes": character.Attributes,
				"updated_at": character.UpdatedAt,
			}).Error; err != nil {
			return fmt.Errorf("remove attribute value: %w", err)
		}
		return nil
	})
}

// Reorder 按给定 ID 顺序重排角色的属性定义；未知 ID 被静默跳过。
func (s *AttributeService) Reorder(characterID string, ids []string) error {
	var definitions []db.AttributeDefinition
	if err := s.db.Where("character_id = ?", characterID).
		Find(&definitions).Error; err != nil {
		return fmt.Errorf("list attribute definitions: %w", err)
	}
	known := make(map[string]struct{}, len(definitions))
	for _, definition := range definitions {
		known[definition.ID] = struct{}{}
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		for index, id := range ids {
			if _, ok := known[id]; !ok {
				continue
			}
			if err := tx.Model(&db.AttributeDefinition{}).Where("id = ?", id).
				Update("sort_order", int64(index)).Error; err != nil {
				return fmt.Errorf("reorder attribute definition %s: %w", id, err)
			}
		}
		return nil
	})
}

// ListByCharacter 按 sortOrder 返回角色的属性定义。
func (s *AttributeService) ListByCharacter(characterID string) ([]db.AttributeDefinition, error) {
	var definitions []db.AttributeDefinition
	if err := s.db.Where("character_id = ?", characterID).
		Order("sort_order ASC, created_at ASC").
		Find(&definitions).Error; err != nil {
		return nil, fmt.Errorf("list attribute definitions: %w", err)
	}
	return definitions, nil
}

func (s *AttributeService) get(id string) (*db.AttributeDefinition, error) {
	var definition db.AttributeDefinition
	if err := s.db.Where("id = ?", id).First(&definition).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttributeNotFound
		}
		return nil, fmt.Errorf("find attribute definition: %w", err)
	}
	return &definition, nil
}

// rewardReferences 检查角色名下是否还有任务奖励引用该定义。
// 奖励存为 JSON，逐条解码比对而非字符串匹配。
func (s *AttributeService) rewardReferences(definition *db.AttributeDefinition) (bool, error) {
	var tasks []db.Task
	if err := s.db.
		Joins("JOIN plans ON plans.id = tasks.plan_id").
		Where("plans.character_id = ?", definition.CharacterID).
		Find(&tasks).Error; err != nil {
		return false, fmt.Errorf("list character tasks: %w", err)
	}

	for _, task := range tasks {
		reward, err := task.RewardValue()
		if err != nil {
			return false, fmt.Errorf("task %s: %w", task.ID, err)
		}
		if reward.Type == db.RewardTypeAttr && reward.AttributeID == definition.ID {
			return true, nil
		}
	}
	return false, nil
}
