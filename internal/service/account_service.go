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
	// ErrCredentialsEmpty 在用户名或密码去除空白后为空时返回
	ErrCredentialsEmpty = errors.New("username or password is empty")
	// ErrUsernameExists 在注册的用户名已被占用时返回
	ErrUsernameExists = errors.New("username already exists")
	// ErrInvalidCredentials 在登录的用户名或密码不匹配时返回
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrAccountNotFound 在指定账号不存在时返回
	ErrAccountNotFound = errors.New("account not found")
)

// AccountService 负责账号的注册、登录与查询。
// 凭据按修剪后的明文存储与比较，这是已知弱点（见 DESIGN.md），
// 在当前契约内不做哈希化。
type AccountService struct {
	db *gorm.DB
}

// NewAccountService 构造 AccountService。
func NewAccountService(gdb *gorm.DB) *AccountService {
	return &AccountService{db: gdb}
}

// Register 注册新账号；用户名区分大小写且唯一。
func (s *AccountService) Register(username, password string) (*db.Account, error) {
	trimmedUser := strings.TrimSpace(username)
	trimmedPass := strings.TrimSpace(password)
	if trimmedUser == "" || trimmedPass == "" {
		return nil, ErrCredentialsEmpty
	}

	var existing db.Account
	err := s.db.Where("username = ?", trimmedUser).First(&existing).Error
	switch {
	case err == nil:
		return nil, ErrUsernameExists
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return nil, fmt.Errorf("check username: %w", err)
	}

	now := time.Now()
	account := db.Account{
		ID:        uuid.NewString(),
		Username:  trimmedUser,
		Password:  trimmedPass,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.Create(&account).Error; err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	return &account, nil
}

// Login 校验用户名与密码，成功时返回账号。
func (s *AccountService) Login(username, password string) (*db.Account, error) {
	var account db.Account
	err := s.db.Where("username = ?", strings.TrimSpace(username)).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find account: %w", err)
	}

	if account.Password != strings.TrimSpace(password) {
		return nil, ErrInvalidCredentials
	}
	return &account, nil
}

// Get 根据 ID 获取账号。
func (s *AccountService) Get(id string) (*db.Account, error) {
	var account db.Account
	if err := s.db.Where("id = ?", id).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &account, nil
}

// List 按用户名排序返回全部账号。
func (s *AccountService) List() ([]db.Account, error) {
	var accounts []db.Account
	if err := s.db.Order("username ASC").Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}
