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
	// ErrCharacterNotFound 在指定角色不存在时返回
	ErrCharacterNotFound = errors.New("character not found")
	// ErrCharacterMismatch 在角色不属于当前账号时返回
	ErrCharacterMismatch = errors.New("character does not belong to account")
	// ErrNameEmpty 在名称去除空白后为空时返回
	ErrNameEmpty = errors.New("name is required")
)

// CharacterService 负责角色的创建与基础维护。
// 创建角色会原子地播种五个默认属性定义并把对应属性值置零。
type CharacterService struct {
	db *gorm.DB
}

// NewCharacterService 构造 CharacterService。
func NewCharacterService(gdb *gorm.DB) *CharacterService {
	return &CharacterService{db: gdb}
}

// Create 在指定账号下创建角色。
func (s *CharacterService) Create(accountID, name string) (*db.Character, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, ErrNameEmpty
	}

	var account db.Account
	if err := s.db.Where("id = ?", accountID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}

	now := time.Now()
	character := db.Character{
		ID:        uuid.NewString(),
		AccountID: account.ID,
		Name:      trimmed,
		Level:     1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	values := make(map[string]int64, len(db.DefaultAttributeSeeds))
	definitions := make([]db.AttributeDefinition, 0, len(db.DefaultAttributeSeeds))
	for i, seed := range db.DefaultAttributeSeeds {
		id := db.DefaultAttributeID(character.ID, seed.LegacyKey)
		values[id] = 0
		definitions = append(definitions, db.AttributeDefinition{
			ID:          id,
			Name:        seed.Name,
			CharacterID: character.ID,
			SortOrder:   int64(i),
			IsDefault:   true,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	if err := character.SetAttributeValues(values); err != nil {
		return nil, err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&character).Error; err != nil {
			return fmt.Errorf("create character: %w", err)
		}
		if err := tx.Create(&definitions).Error; err != nil {
			return fmt.Errorf("seed attribute definitions: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &character, nil
}

// Rename 更新角色名称。
func (s *CharacterService) Rename(id, name string) (*db.Character, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, ErrNameEmpty
	}

	var character db.Character
	if err := s.db.Where("id = ?", id).First(&character).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCharacterNotFound
		}
		return nil, fmt.Errorf("find character: %w", err)
	}

	character.Name = trimmed
	character.UpdatedAt = time.Now()
	if err := s.db.Save(&character).Error; err != nil {
		return nil, fmt.Errorf("rename character: %w", err)
	}
	return &character, nil
}

// Get 根据 ID 获取角色。
func (s *CharacterService) Get(id string) (*db.Character, error) {
	var character db.Character
	if err := s.db.Where("id = ?", id).First(&character).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCharacterNotFound
		}
		return nil, fmt.Errorf("get character: %w", err)
	}
	return &character, nil
}

// ListByAccount 按创建先后返回账号下的全部角色。
func (s *CharacterService) ListByAccount(accountID string) ([]db.Character, error) {
	var characters []db.Character
	if err := s.db.Where("account_id = ?", accountID).
		Order("created_at ASC, id ASC").
		Find(&characters).Error; err != nil {
		return nil, fmt.Errorf("list characters: %w", err)
	}
	return characters, nil
}
