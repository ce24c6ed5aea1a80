package main

import (
	"fmt"
	"log"
	"time"

	"github.com/questlog/internal/config"
	"github.com/questlog/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// 旧数据生成器：写出第 1 代形状的数据集（无主角色、未排序任务、
// 旧属性键奖励），用于手工验证升级路径。刻意绕过 db.Open，
// 不写版本号，下次正常打开时迁移引擎会完整跑一遍。
func main() {
	cfg := config.Load()
	gdb, err := gorm.Open(sqlite.Open(cfg.DatabasePath), &gorm.Config{})
	if err != nil {
		log.Fatal("打开数据库失败:", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		log.Fatal("建表失败:", err)
	}

	now := time.Now()

	character := db.Character{
		ID:         "legacy-char-1",
		AccountID:  "",
		Name:       "Cliff",
		Level:      1,
		Attributes: []byte(`{"str":1,"int":1,"dex":1,"vit":1,"wis":1}`),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	plan := db.Plan{
		ID:          "legacy-plan-1",
		CharacterID: character.ID,
		Name:        "每日習慣",
		ResetRule:   db.ResetRuleDaily,
		SortOrder:   1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tasks := []db.Task{
		{
			ID:        "legacy-task-1",
			PlanID:    plan.ID,
			Name:      "早睡",
			Reward:    []byte(`{"type":"attr","key":"vit","amount":1}`),
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			ID:        "legacy-task-2",
			PlanID:    plan.ID,
			Name:      "30 分鐘閱讀",
			Reward:    []byte(`{"type":"money","amount":10}`),
			CreatedAt: now.Add(time.Second),
			UpdatedAt: now.Add(time.Second),
		},
	}
	completion := db.TaskCompletion{
		ID:           "legacy-completion-1",
		TaskID:       "legacy-task-1",
		CharacterID:  character.ID,
		PlanID:       plan.ID,
		Ts:           now,
		ValueApplied: []byte(`{"type":"attr","key":"vit","amount":1}`),
		PeriodKey:    now.Format("2006-01-02"),
	}

	err = gdb.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&character).Error; err != nil {
			return err
		}
		if err := tx.Create(&plan).Error; err != nil {
			return err
		}
		if err := tx.Create(&tasks).Error; err != nil {
			return err
		}
		return tx.Create(&completion).Error
	})
	if err != nil {
		log.Fatal("写入旧数据失败:", err)
	}

	fmt.Println("旧数据生成完成！")
	fmt.Printf("数据库: %s（下次打开时将执行 2 -> %d 的全部迁移步骤）\n",
		cfg.DatabasePath, db.SchemaVersion)
}
