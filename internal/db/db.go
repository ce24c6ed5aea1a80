package db

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Open 打开数据库、建表并执行数据迁移，返回可注入各服务的句柄。
// databasePath 为空时将回退到默认值 questlog.db。
// 迁移失败意味着存储不可用，调用方必须把错误视为致命错误向上传播。
func Open(databasePath string) (*gorm.DB, error) {
	path := strings.TrimSpace(databasePath)
	if path == "" {
		path = "questlog.db"
	}

	if err := ensureParentDir(path); err != nil {
		return nil, err
	}

	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := AutoMigrate(gdb); err != nil {
		return nil, err
	}

	if err := Migrate(gdb); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return gdb, nil
}

// AutoMigrate 为全部核心模型建表/补列。数据迁移由 Migrate 负责。
func AutoMigrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(
		&Account{},
		&Character{},
		&AttributeDefinition{},
		&Plan{},
		&Task{},
		&TaskCompletion{},
		&StoreMeta{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return errors.New("database path parent is not a directory")
		}
		return nil
	}

	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}

	return err
}
