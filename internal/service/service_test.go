package service

import (
	"fmt"
	"testing"

	"github.com/questlog/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T, name string) (*gorm.DB, func()) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return gdb, func() {
		sqlDB, err := gdb.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}

// setupCharacter 建好账号 -> 角色的常用夹具。
func setupCharacter(t *testing.T, gdb *gorm.DB, username, characterName string) (*db.Account, *db.Character) {
	t.Helper()

	account, err := NewAccountService(gdb).Register(username, "secret")
	if err != nil {
		t.Fatalf("failed to register account: %v", err)
	}

	character, err := NewCharacterService(gdb).Create(account.ID, characterName)
	if err != nil {
		t.Fatalf("failed to create character: %v", err)
	}
	return account, character
}
