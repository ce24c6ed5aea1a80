package db

import (
	"encoding/json"
	"fmt"
)

const (
	// RewardTypeMoney 表示金钱奖励。
	RewardTypeMoney = "money"
	// RewardTypeToken 表示代币奖励。
	RewardTypeToken = "token"
	// RewardTypeAttr 表示属性点奖励，按属性定义 ID 引用。
	RewardTypeAttr = "attr"
)

// Reward 是任务奖励的带标签联合：money/token 只用 Amount，
// attr 另带 AttributeID。Amount 为有符号整数，负数表示惩罚。
type Reward struct {
	Type        string `json:"type"`
	AttributeID string `json:"attributeId,omitempty"`
	Amount      int64  `json:"amount"`
}

// Validate 检查奖励形状是否合法。
func (r Reward) Validate() error {
	switch r.Type {
	case RewardTypeMoney, RewardTypeToken:
		return nil
	case RewardTypeAttr:
		if r.AttributeID == "" {
			return fmt.Errorf("attr reward requires attributeId")
		}
		return nil
	default:
		return fmt.Errorf("unsupported reward type %q", r.Type)
	}
}

// legacyReward 兼容第 4 代迁移之前的奖励形状：
// attr 奖励以短枚举 key（str/int/...）引用属性，而非属性定义 ID。
type legacyReward struct {
	Type        string `json:"type"`
	Key         string `json:"key,omitempty"`
	AttributeID string `json:"attributeId,omitempty"`
	Amount      int64  `json:"amount"`
}

func encodeReward(r Reward) ([]byte, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode reward: %w", err)
	}
	return raw, nil
}

func decodeReward(raw []byte) (Reward, error) {
	var r Reward
	if len(raw) == 0 {
		return r, fmt.Errorf("decode reward: empty payload")
	}
	if err := json.Unmarshal(raw, &r); err != nil {
		return r, fmt.Errorf("decode reward: %w", err)
	}
	return r, nil
}

func decodeLegacyReward(raw []byte) (legacyReward, error) {
	var r legacyReward
	if len(raw) == 0 {
		return r, fmt.Errorf("decode legacy reward: empty payload")
	}
	if err := json.Unmarshal(raw, &r); err != nil {
		return r, fmt.Errorf("decode legacy reward: %w", err)
	}
	return r, nil
}
