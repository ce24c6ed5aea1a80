package db

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SchemaVersion 是当前数据代次。store_metas 中记录的版本号决定
// 打开数据库时需要补跑哪些迁移步骤。
const SchemaVersion = 4

// migrationStep 是一个按版本号单调递增、至多应用一次的数据变换。
// Run 的实现必须以幂等为前提：先检查值的当前形状，再决定是否变换。
type migrationStep struct {
	Version int
	Name    string
	Run     func(tx *gorm.DB) error
}

var migrationSteps = []migrationStep{
	{Version: 2, Name: "backfill-account-owner", Run: backfillAccountOwner},
	{Version: 3, Name: "backfill-task-sort-order", Run: backfillTaskSortOrder},
	{Version: 4, Name: "promote-custom-attributes", Run: promoteCustomAttributes},
}

// Migrate 把任意历史代次的库升级到当前代次。
// 每个步骤跑在独立事务中，成功后立即推进版本号；任一步骤失败则
// 整个打开流程失败，存储视为不可用，没有部分迁移的恢复路径。
func Migrate(gdb *gorm.DB) error {
	current, found, err := storedSchemaVersion(gdb)
	if err != nil {
		return err
	}

	if !found {
		// 区分全新库与版本化之前的历史库：没有任何角色数据的库
		// 直接盖上当前版本号，数据步骤无事可做。
		var legacyRows int64
		if err := gdb.Model(&Character{}).Count(&legacyRows).Error; err != nil {
			return fmt.Errorf("count legacy characters: %w", err)
		}
		if legacyRows == 0 {
			return writeSchemaVersion(gdb, SchemaVersion)
		}
		current = 1
	}

	for _, step := range migrationSteps {
		if step.Version <= current {
			continue
		}

		version := step.Version
		err := gdb.Transaction(func(tx *gorm.DB) error {
			if err := step.Run(tx); err != nil {
				return fmt.Errorf("migration step %d (%s): %w", version, step.Name, err)
			}
			return writeSchemaVersion(tx, version)
		})
		if err != nil {
			return err
		}
		current = version
	}

	return nil
}

func storedSchemaVersion(gdb *gorm.DB) (int, bool, error) {
	var meta StoreMeta
	err := gdb.Where("key = ?", MetaKeySchemaVersion).First(&meta).Error
	switch {
	case err == nil:
		version, parseErr := strconv.Atoi(meta.Value)
		if parseErr != nil {
			return 0, false, fmt.Errorf("parse schema version %q: %w", meta.Value, parseErr)
		}
		return version, true, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return 0, false, nil
	default:
		return 0, false, fmt.Errorf("read schema version: %w", err)
	}
}

func writeSchemaVersion(gdb *gorm.DB, version int) error {
	meta := StoreMeta{Key: MetaKeySchemaVersion, Value: strconv.Itoa(version)}
	if err := gdb.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&meta).Error; err != nil {
		return fmt.Errorf("write schema version: %w", err)
	}
	return nil
}

// backfillAccountOwner（第 2 代）：账号表引入之前的角色没有所有者。
// 若存在无主角色，合成一个固定 ID、固定占位凭据的默认账号并回填引用；
// 默认账号已存在时不重复创建。
func backfillAccountOwner(tx *gorm.DB) error {
	var orphans int64
	if err := tx.Model(&Character{}).
		Where("account_id = '' OR account_id IS NULL").
		Count(&orphans).Error; err != nil {
		return fmt.Errorf("count ownerless characters: %w", err)
	}
	if orphans == 0 {
		return nil
	}

	var existing Account
	err := tx.Where("id = ?", DefaultAccountID).First(&existing).Error
	switch {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		now := time.Now()
		account := Account{
			ID:        DefaultAccountID,
			Username:  "demo",
			Password:  "demo",
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Create(&account).Error; err != nil {
			return fmt.Errorf("create default account: %w", err)
		}
	default:
		return fmt.Errorf("check default account: %w", err)
	}

	if err := tx.Model(&Character{}).
		Where("account_id = '' OR account_id IS NULL").
		Update("account_id", DefaultAccountID).Error; err != nil {
		return fmt.Errorf("backfill character owner: %w", err)
	}
	return nil
}

// backfillTaskSortOrder（第 3 代）：排序字段引入之前的任务没有序号。
// 按创建先后为缺序号的任务分配严格递增的序号，从现有最大序号之后续排。
func backfillTaskSortOrder(tx *gorm.DB) error {
	var unordered []Task
	if err := tx.Where("sort_order IS NULL").
		Order("created_at ASC, id ASC").
		Find(&unordered).Error; err != nil {
		return fmt.Errorf("list unordered tasks: %w", err)
	}
	if len(unordered) == 0 {
		return nil
	}

	var current struct{ Max *int64 }
	if err := tx.Model(&Task{}).Select("MAX(sort_order) AS max").Scan(&current).Error; err != nil {
		return fmt.Errorf("read max sort order: %w", err)
	}

	next := int64(0)
	if current.Max != nil {
		next = *current.Max + 1
	}

	for _, task := range unordered {
		if err := tx.Model(&Task{}).Where("id = ?", task.ID).
			Update("sort_order", next).Error; err != nil {
			return fmt.Errorf("assign sort order to task %s: %w", task.ID, err)
		}
		next++
	}
	return nil
}

// unresolvedAttrReward 是迁移内部的未解析引用标记：任务奖励通过
// planId 间接到达角色，第一遍只记下旧键，待计划归属表就绪后第二遍解析。
type unresolvedAttrReward struct {
	TaskID    string
	PlanID    string
	LegacyKey string
	Amount    int64
}

// promoteCustomAttributes（第 4 代）：把角色上固定的五个属性字段提升为
// 动态的属性定义子实体。每个角色物化五条定义（确定性 ID），改写角色
// 属性映射的 key，并把所有按旧键引用属性的奖励改写为新 ID。
// 完成记录自带 characterId，单遍直接解析；任务要经由计划才知道归属，
// 走两遍解析。旧键是否仍存在即是幂等判据。
func promoteCustomAttributes(tx *gorm.DB) error {
	now := time.Now()

	legacyKeys := map[string]struct{}{}
	for _, seed := range DefaultAttributeSeeds {
		legacyKeys[seed.LegacyKey] = struct{}{}
	}

	var characters []Character
	if err := tx.Find(&characters).Error; err != nil {
		return fmt.Errorf("list characters: %w", err)
	}

	for _, character := range characters {
		for i, seed := range DefaultAttributeSeeds {
			id := DefaultAttributeID(character.ID, seed.LegacyKey)
			var existing AttributeDefinition
			err := tx.Where("id = ?", id).First(&existing).Error
			switch {
			case err == nil:
				continue
			case errors.Is(err, gorm.ErrRecordNotFound):
				definition := AttributeDefinition{
					ID:          id,
					Name:        seed.Name,
					CharacterID: character.ID,
					SortOrder:   int64(i),
					IsDefault:   true,
					CreatedAt:   now,
					UpdatedAt:   now,
				}
				if err := tx.Create(&definition).Error; err != nil {
					return fmt.Errorf("create attribute definition %s: %w", id, err)
				}
			default:
				return fmt.Errorf("check attribute definition %s: %w", id, err)
			}
		}

		values, err := character.AttributeValues()
		if err != nil {
			return err
		}

		hasLegacyKey := false
		for key := range values {
			if _, ok := legacyKeys[key]; ok {
				hasLegacyKey = true
				break
			}
		}
		if !hasLegacyKey {
			continue
		}

		rewritten := map[string]int64{}
		for key, value := range values {
			if _, ok := legacyKeys[key]; ok {
				rewritten[DefaultAttributeID(character.ID, key)] = value
			} else {
				rewritten[key] = value
			}
		}
		for _, seed := range DefaultAttributeSeeds {
			id := DefaultAttributeID(character.ID, seed.LegacyKey)
			if _, ok := rewritten[id]; !ok {
				rewritten[id] = 0
			}
		}

		if err := character.SetAttributeValues(rewritten); err != nil {
			return err
		}
		if err := tx.Model(&Character{}).Where("id = ?", character.ID).
			Update("attributes", character.Attributes).Error; err != nil {
			return fmt.Errorf("rewrite attributes of character %s: %w", character.ID, err)
		}
	}

	// 完成记录：记录自带 characterId，直接改写奖励快照。
	var completions []TaskCompletion
	if err := tx.Find(&completions).Error; err != nil {
		return fmt.Errorf("list completions: %w", err)
	}
	for _, completion := range completions {
		legacy, err := decodeLegacyReward(completion.ValueApplied)
		if err != nil {
			return fmt.Errorf("completion %s: %w", completion.ID, err)
		}
		if legacy.Type != RewardTypeAttr || legacy.Key == "" {
			continue
		}

		reward := Reward{
			Type:        RewardTypeAttr,
			AttributeID: DefaultAttributeID(completion.CharacterID, legacy.Key),
			Amount:      legacy.Amount,
		}
		if err := completion.SetAppliedReward(reward); err != nil {
			return err
		}
		if err := tx.Model(&TaskCompletion{}).Where("id = ?", completion.ID).
			Update("value_applied", completion.ValueApplied).Error; err != nil {
			return fmt.Errorf("rewrite reward of completion %s: %w", completion.ID, err)
		}
	}

	// 任务：第一遍收集未解析引用，第二遍经由计划查出归属角色后解析。
	var tasks []Task
	if err := tx.Find(&tasks).Error; err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}

	var pending []unresolvedAttrReward
	for _, task := range tasks {
		legacy, err := decodeLegacyReward(task.Reward)
		if err != nil {
			return fmt.Errorf("task %s: %w", task.ID, err)
		}
		if legacy.Type != RewardTypeAttr || legacy.Key == "" {
			continue
		}
		pending = append(pending, unresolvedAttrReward{
			TaskID:    task.ID,
			PlanID:    task.PlanID,
			LegacyKey: legacy.Key,
			Amount:    legacy.Amount,
		})
	}
	if len(pending) == 0 {
		return nil
	}

	planIDs := make([]string, 0, len(pending))
	for _, p := range pending {
		planIDs = append(planIDs, p.PlanID)
	}
	var plans []Plan
	if err := tx.Where("id IN ?", planIDs).Find(&plans).Error; err != nil {
		return fmt.Errorf("list owning plans: %w", err)
	}
	planOwner := make(map[string]string, len(plans))
	for _, plan := range plans {
		planOwner[plan.ID] = plan.CharacterID
	}

	for _, p := range pending {
		characterID, ok := planOwner[p.PlanID]
		if !ok {
			// 孤儿任务无法解析归属，保留旧形状等待人工处理。
			continue
		}

		var task Task
		if err := tx.Where("id = ?", p.TaskID).First(&task).Error; err != nil {
			return fmt.Errorf("reload task %s: %w", p.TaskID, err)
		}
		reward := Reward{
			Type:        RewardTypeAttr,
			AttributeID: DefaultAttributeID(characterID, p.LegacyKey),
			Amount:      p.Amount,
		}
		if err := task.SetRewardValue(reward); err != nil {
			return err
		}
		if err := tx.Model(&Task{}).Where("id = ?", task.ID).
			Update("reward", task.Reward).Error; err != nil {
			return fmt.Errorf("rewrite reward of task %s: %w", task.ID, err)
		}
	}

	return nil
}
