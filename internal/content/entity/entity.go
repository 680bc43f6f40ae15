package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONB JSONB类型
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to scan JSONB: %v", value)
	}
	return json.Unmarshal(bytes, j)
}

// StringList 字符串数组JSONB类型
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to scan StringList: %v", value)
	}
	return json.Unmarshal(bytes, l)
}

// Contains 是否包含指定元素
func (l StringList) Contains(s string) bool {
	for _, v := range l {
		if v == s {
			return true
		}
	}
	return false
}

// Metadata 审批动作的结构化元数据
// 已知键名集中定义，生产方和消费方通过访问器读取，避免键名漂移
type Metadata map[string]interface{}

// Metadata 已知键
const (
	MetaKeyDelegateTo = "delegate_to_id"
	MetaKeyBudget     = "budget"
	MetaKeyReason     = "reason"
)

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *Metadata) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to scan Metadata: %v", value)
	}
	return json.Unmarshal(bytes, m)
}

// DelegateTo 读取委托目标用户ID
func (m Metadata) DelegateTo() (string, bool) {
	v, ok := m[MetaKeyDelegateTo].(string)
	return v, ok && v != ""
}

// Budget 读取预算金额
func (m Metadata) Budget() (float64, bool) {
	switch v := m[MetaKeyBudget].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}
