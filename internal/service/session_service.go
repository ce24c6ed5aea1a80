package service

import (
	"errors"
	"fmt"

	"github.com/questlog/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrCharacterNotSelected 在需要当前角色而会话未选中任何角色时返回
var ErrCharacterNotSelected = errors.New("character not selected")

// SessionService 是会话一致性守卫：当前账号与当前角色以键值对
// 持久化在 store_metas 中，EnsureConsistency 保证两者始终互相一致。
// 会话状态是显式对象而非包级全局，由启动流程构造后注入。
type SessionService struct {
	db *gorm.DB
}

// NewSessionService 构造 SessionService。
func NewSessionService(gdb *gorm.DB) *SessionService {
	return &SessionService{db: gdb}
}

// CurrentAccountID 返回会话当前账号 ID，未选中时为空串。
func (s *SessionService) CurrentAccountID() (string, error) {
	return s.readMeta(db.MetaKeyCurrentAccountID)
}

// CurrentCharacterID 返回会话当前角色 ID，未选中时为空串。
func (s *SessionService) CurrentCharacterID() (string, error) {
	return s.readMeta(db.MetaKeyCurrentCharacterID)
}

// SetCurrentAccount 切换当前账号并重选角色。账号不存在时返回
// ErrAccountNotFound，会话状态不变。
func (s *SessionService) SetCurrentAccount(accountID string) error {
	var account db.Account
	if err := s.db.Where("id = ?", accountID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("find account: %w", err)
	}

	if err := s.writeMeta(db.MetaKeyCurrentAccountID, account.ID); err != nil {
		return err
	}
	return s.ensureCharacter()
}

// SetCurrentCharacter 切换当前角色；角色必须属于当前账号。
func (s *SessionService) SetCurrentCharacter(characterID string) error {
	if characterID == "" {
		return s.writeMeta(db.MetaKeyCurrentCharacterID, "")
	}

	accountID, err := s.CurrentAccountID()
	if err != nil {
		return err
	}

	var character db.Character
	if err := s.db.Where("id = ?", characterID).First(&character).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCharacterNotFound
		}
		return fmt.Errorf("find character: %w", err)
	}
	if character.AccountID != accountID {
		return ErrCharacterMismatch
	}

	return s.writeMeta(db.MetaKeyCurrentCharacterID, character.ID)
}

// Logout 清空当前账号与角色。
func (s *SessionService) Logout() error {
	if err := s.writeMeta(db.MetaKeyCurrentAccountID, ""); err != nil {
		return err
	}
	return s.writeMeta(db.MetaKeyCurrentCharacterID, "")
}

// EnsureConsistency 在启动时调用：丢弃失效的选择，必要时回退到
// 第一个账号/第一个角色，保证选中的账号与角色始终互相一致。
func (s *SessionService) EnsureConsistency() error {
	if err := s.ensureAccount(); err != nil {
		return err
	}
	return s.ensureCharacter()
}

func (s *SessionService) ensureAccount() error {
	accountID, err := s.CurrentAccountID()
	if err != nil {
		return err
	}

	if accountID != "" {
		var account db.Account
		err := s.db.Where("id = ?", accountID).First(&account).Error
		switch {
		case err == nil:
			return nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := s.Logout(); err != nil {
				return err
			}
		default:
			return fmt.Errorf("check current account: %w", err)
		}
	}

	var first db.Account
	err = s.db.Order("created_at ASC, id ASC").First(&first).Error
	switch {
	case err == nil:
		return s.writeMeta(db.MetaKeyCurrentAccountID, first.ID)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil
	default:
		return fmt.Errorf("pick first account: %w", err)
	}
}

func (s *SessionService) ensureCharacter() error {
	accountID, err := s.CurrentAccountID()
	if err != nil {
		return err
	}
	if accountID == "" {
		return s.writeMeta(db.MetaKeyCurrentCharacterID, "")
	}

	characterID, err := s.CurrentCharacterID()
	if err != nil {
		return err
	}
	if characterID != "" {
		var existing db.Character
		err := s.db.Where("id = ?", characterID).First(&existing).Error
		switch {
		case err == nil:
			if existing.AccountID == accountID {
				return nil
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return fmt.Errorf("check current character: %w", err)
		}
	}

	var first db.Character
	err = s.db.Where("account_id = ?", accountID).
		Order("created_at ASC, id ASC").First(&first).Error
	switch {
	case err == nil:
		return s.writeMeta(db.MetaKeyCurrentCharacterID, first.ID)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return s.writeMeta(db.MetaKeyCurrentCharacterID, "")
	default:
		return fmt.Errorf("pick first character: %w", err)
	}
}

func (s *SessionService) readMeta(key string) (string, error) {
	var meta db.StoreMeta
	err := s.db.Where("key = ?", key).First(&meta).Error
	switch {
	case err == nil:
		return meta.Value, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return "", nil
	default:
		return "", fmt.Errorf("read session state %s: %w", key, err)
	}
}

func (s *SessionService) writeMeta(key, value string) error {
	meta := db.StoreMeta{Key: key, Value: value}
	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&meta).Error; err != nil {
		return fmt.Errorf("write session state %s: %w", key, err)
	}
	return nil
}
