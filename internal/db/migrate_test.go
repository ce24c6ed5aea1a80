package db

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestStore(t *testing.T, name string) (*gorm.DB, func()) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("failed to create tables: %v", err)
	}

	return gdb, func() {
		sqlDB, err := gdb.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}

// seedLegacyStore 写入第 1 代形状的数据：无主角色、旧属性键、
// 未排序任务、旧形状的奖励与完成记录。
func seedLegacyStore(t *testing.T, gdb *gorm.DB) {
	t.Helper()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.Local)

	characters := []Character{
		{
			ID:         "char-1",
			Name:       "Cliff",
			Level:      1,
			Attributes: []byte(`{"str":1,"int":2,"dex":1,"vit":3,"wis":1}`),
			CreatedAt:  base,
			UpdatedAt:  base,
		},
		{
			ID:         "char-2",
			Name:       "Mira",
			Level:      1,
			Attributes: []byte(`{"str":4,"int":1,"dex":1,"vit":1,"wis":1}`),
			CreatedAt:  base,
			UpdatedAt:  base,
		},
	}
	if err := gdb.Create(&characters).Error; err != nil {
		t.Fatalf("failed to seed characters: %v", err)
	}

	plans := []Plan{
		{ID: "plan-1", CharacterID: "char-1", Name: "每日習慣", ResetRule: ResetRuleDaily, SortOrder: 1, CreatedAt: base, UpdatedAt: base},
		{ID: "plan-2", CharacterID: "char-2", Name: "週目標", ResetRule: ResetRuleWeekly, SortOrder: 1, CreatedAt: base, UpdatedAt: base},
	}
	if err := gdb.Create(&plans).Error; err != nil {
		t.Fatalf("failed to seed plans: %v", err)
	}

	tasks := []Task{
		{ID: "task-1", PlanID: "plan-1", Name: "早睡", Reward: []byte(`{"type":"attr","key":"vit","amount":1}`), CreatedAt: base, UpdatedAt: base},
		{ID: "task-2", PlanID: "plan-1", Name: "閱讀", Reward: []byte(`{"type":"money","amount":10}`), CreatedAt: base.Add(time.Second), UpdatedAt: base.Add(time.Second)},
		{ID: "task-3", PlanID: "plan-2", Name: "跑步", Reward: []byte(`{"type":"attr","key":"str","amount":2}`), CreatedAt: base.Add(2 * time.Second), UpdatedAt: base.Add(2 * time.Second)},
	}
	if err := gdb.Create(&tasks).Error; err != nil {
		t.Fatalf("failed to seed tasks: %v", err)
	}

	completion := TaskCompletion{
		ID:           "completion-1",
		TaskID:       "task-1",
		CharacterID:  "char-1",
		PlanID:       "plan-1",
		Ts:           base,
		ValueApplied: []byte(`{"type":"attr","key":"vit","amount":1}`),
		PeriodKey:    "2024-03-01",
	}
	if err := gdb.Create(&completion).Error; err != nil {
		t.Fatalf("failed to seed completion: %v", err)
	}
}

func TestMigrateLegacyStore(t *testing.T) {
	gdb, cleanup := openTestStore(t, "migrate_legacy")
	defer cleanup()

	seedLegacyStore(t, gdb)

	if err := Migrate(gdb); err != nil {
		t.Fatalf("Migrate returned error: %v", err)
	}

	version, found, err := storedSchemaVersion(gdb)
	if err != nil || !found {
		t.Fatalf("expected stored schema version, got found=%v err=%v", found, err)
	}
	if version != SchemaVersion {
		t.Fatalf("expected schema version %d, got %d", SchemaVersion, version)
	}

	// 第 2 代：默认账号与所有者回填
	var account Account
	if err := gdb.Where("id = ?", DefaultAccountID).First(&account).Error; err != nil {
		t.Fatalf("expected default account: %v", err)
	}
	if account.Username != "demo" || account.Password != "demo" {
		t.Fatalf("unexpected default account credentials: %s/%s", account.Username, account.Password)
	}

	var orphans int64
	if err := gdb.Model(&Character{}).Where("account_id = '' OR account_id IS NULL").Count(&orphans).Error; err != nil {
		t.Fatalf("failed to count orphans: %v", err)
	}
	if orphans != 0 {
		t.Fatalf("expected 0 ownerless characters, got %d", orphans)
	}

	// 第 3 代：任务序号按创建先后严格递增
	var tasks []Task
	if err := gdb.Order("created_at ASC").Find(&tasks).Error; err != nil {
		t.Fatalf("failed to list tasks: %v", err)
	}
	for i, task := range tasks {
		if task.SortOrder == nil {
			t.Fatalf("task %s has no sort order", task.ID)
		}
		if *task.SortOrder != int64(i) {
			t.Fatalf("task %s: expected sort order %d, got %d", task.ID, i, *task.SortOrder)
		}
	}

	// 第 4 代：每个角色五条定义，ID 确定性推导
	for _, characterID := range []string{"char-1", "char-2"} {
		var count int64
		if err := gdb.Model(&AttributeDefinition{}).Where("character_id = ?", characterID).Count(&count).Error; err != nil {
			t.Fatalf("failed to count definitions: %v", err)
		}
		if count != int64(len(DefaultAttributeSeeds)) {
			t.Fatalf("character %s: expected %d definitions, got %d", characterID, len(DefaultAttributeSeeds), count)
		}
	}

	var character Character
	if err := gdb.Where("id = ?", "char-1").First(&character).Error; err != nil {
		t.Fatalf("failed to load character: %v", err)
	}
	values, err := character.AttributeValues()
	if err != nil {
		t.Fatalf("failed to decode attributes: %v", err)
	}
	if values[DefaultAttributeID("char-1", "vit")] != 3 {
		t.Fatalf("expected vit value 3 to be preserved, got %d", values[DefaultAttributeID("char-1", "vit")])
	}
	if _, ok := values["vit"]; ok {
		t.Fatal("expected legacy attribute key to be rewritten")
	}

	// 任务奖励经两遍解析落到归属角色的属性定义上
	var task Task
	if err := gdb.Where("id = ?", "task-3").First(&task).Error; err != nil {
		t.Fatalf("failed to load task: %v", err)
	}
	reward, err := task.RewardValue()
	if err != nil {
		t.Fatalf("failed to decode task reward: %v", err)
	}
	if reward.AttributeID != DefaultAttributeID("char-2", "str") {
		t.Fatalf("expected task reward to reference %s, got %s", DefaultAttributeID("char-2", "str"), reward.AttributeID)
	}
	if reward.Amount != 2 {
		t.Fatalf("expected reward amount 2, got %d", reward.Amount)
	}

	// 完成记录的快照按自身 characterId 单遍解析
	var completion TaskCompletion
	if err := gdb.Where("id = ?", "completion-1").First(&completion).Error; err != nil {
		t.Fatalf("failed to load completion: %v", err)
	}
	applied, err := completion.AppliedReward()
	if err != nil {
		t.Fatalf("failed to decode completion reward: %v", err)
	}
	if applied.AttributeID != DefaultAttributeID("char-1", "vit") {
		t.Fatalf("expected completion reward to reference %s, got %s", DefaultAttributeID("char-1", "vit"), applied.AttributeID)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	gdb, cleanup := openTestStore(t, "migrate_idempotent")
	defer cleanup()

	seedLegacyStore(t, gdb)

	if err := Migrate(gdb); err != nil {
		t.Fatalf("first Migrate returned error: %v", err)
	}

	var firstAttrs string
	if err := gdb.Model(&Character{}).Where("id = ?", "char-1").
		Select("attributes").Scan(&firstAttrs).Error; err != nil {
		t.Fatalf("failed to read attributes: %v", err)
	}

	// 手动回拨版本号，强制全部步骤重跑
	if err := writeSchemaVersion(gdb, 1); err != nil {
		t.Fatalf("failed to rewind version: %v", err)
	}
	if err := Migrate(gdb); err != nil {
		t.Fatalf("second Migrate returned error: %v", err)
	}

	var definitions int64
	if err := gdb.Model(&AttributeDefinition{}).Count(&definitions).Error; err != nil {
		t.Fatalf("failed to count definitions: %v", err)
	}
	if definitions != int64(2*len(DefaultAttributeSeeds)) {
		t.Fatalf("expected %d definitions after rerun, got %d", 2*len(DefaultAttributeSeeds), definitions)
	}

	var accounts int64
	if err := gdb.Model(&Account{}).Count(&accounts).Error; err != nil {
		t.Fatalf("failed to count accounts: %v", err)
	}
	if accounts != 1 {
		t.Fatalf("expected 1 account after rerun, got %d", accounts)
	}

	var secondAttrs string
	if err := gdb.Model(&Character{}).Where("id = ?", "char-1").
		Select("attributes").Scan(&secondAttrs).Error; err != nil {
		t.Fatalf("failed to read attributes: %v", err)
	}
	if firstAttrs != secondAttrs {
		t.Fatalf("expected identical attributes after rerun:\nfirst:  %s\nsecond: %s", firstAttrs, secondAttrs)
	}
}

func TestMigrateFreshStore(t *testing.T) {
	gdb, cleanup := openTestStore(t, "migrate_fresh")
	defer cleanup()

	if err := Migrate(gdb); err != nil {
		t.Fatalf("Migrate returned error: %v", err)
	}

	version, found, err := storedSchemaVersion(gdb)
	if err != nil || !found {
		t.Fatalf("expected stored schema version, got found=%v err=%v", found, err)
	}
	if version != SchemaVersion {
		t.Fatalf("expected schema version %d, got %d", SchemaVersion, version)
	}

	// 全新库不应合成默认账号
	var accounts int64
	if err := gdb.Model(&Account{}).Count(&accounts).Error; err != nil {
		t.Fatalf("failed to count accounts: %v", err)
	}
	if accounts != 0 {
		t.Fatalf("expected no accounts in fresh store, got %d", accounts)
	}
}

func TestDefaultAttributeIDDeterministic(t *testing.T) {
	if DefaultAttributeID("char-1", "str") != DefaultAttributeID("char-1", "str") {
		t.Fatal("expected identical inputs to produce identical ids")
	}
	if DefaultAttributeID("char-1", "str") == DefaultAttributeID("char-2", "str") {
		t.Fatal("expected different parents to produce different ids")
	}
	if DefaultAttributeID("char-1", "str") != "char-1_attr_str" {
		t.Fatalf("unexpected id format: %s", DefaultAttributeID("char-1", "str"))
	}
}
