package db

// StoreMeta 存储库级键值对：模式版本号与当前会话选择。
type StoreMeta struct {
	Key   string `gorm:"primaryKey;size:100"`
	Value string `gorm:"type:text"`
}

// TableName 自定义表名以保持命名一致。
func (StoreMeta) TableName() string {
	return "store_metas"
}

const (
	// MetaKeySchemaVersion 记录已应用到的数据迁移代次。
	MetaKeySchemaVersion = "schema_version"
	// MetaKeyCurrentAccountID 记录会话当前选中的账号。
	MetaKeyCurrentAccountID = "current_account_id"
	// MetaKeyCurrentCharacterID 记录会话当前选中的角色。
	MetaKeyCurrentCharacterID = "current_character_id"
)
