/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-18 10:12:40
 * @FilePath: \rescue-go-app\backend\internal\domain\audit\record.go
 * @LastEditTime: 2025-10-18 10:12:46
 */
package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Record 映射 audit_logs 表的一条审计记录。
// 入库之后只追加不修改，唯一的可变阶段是刷盘前的窗口合并。
type Record struct {
	ID              uint              `gorm:"column:id;primaryKey" json:"id"`
	Timestamp       time.Time         `gorm:"column:timestamp;index:idx_audit_logs_timestamp" json:"timestamp"`                 // 事件发生时间（UTC）
	UserID          *uint             `gorm:"column:user_id;index:idx_audit_logs_user" json:"user_id,omitempty"`                // 操作人，匿名/系统事件为空
	RescueID        *uint             `gorm:"column:rescue_id;index:idx_audit_logs_rescue" json:"rescue_id,omitempty"`          // 所属救助站（租户），跨租户事件为空
	Action          string            `gorm:"column:action;size:64;index:idx_audit_logs_action" json:"action"`                  // 动作标签，如 login_success / create
	ResourceType    *string           `gorm:"column:resource_type;size:64" json:"resource_type,omitempty"`                      // 资源类型，如 Dog / Appointment
	ResourceID      *uint             `gorm:"column:resource_id" json:"resource_id,omitempty"`                                  // 资源主键
	Details         datatypes.JSONMap `gorm:"column:details;type:json" json:"details,omitempty"`                                // 动作相关的自由结构负载
	Success         bool              `gorm:"column:success" json:"success"`                                                    // 操作结果
	ErrorMessage    *string           `gorm:"column:error_message;type:text" json:"error_message,omitempty"`                    // 失败时的错误信息
	ExecutionTime   *float64          `gorm:"column:execution_time" json:"execution_time,omitempty"`                            // 业务操作耗时（秒）
	IPAddress       *string           `gorm:"column:ip_address;size:64" json:"ip_address,omitempty"`                            // 请求来源 IP
	UserAgent       *string           `gorm:"column:user_agent;size:255" json:"user_agent,omitempty"`                           // 请求 UA
	OccurrenceCount int               `gorm:"column:occurrence_count;default:1" json:"occurrence_count"`                        // 合并后的发生次数，恒 >= 1
	LastOccurrence  *time.Time        `gorm:"column:last_occurrence" json:"last_occurrence,omitempty"`                          // 最近一次重复发生时间，仅在发生合并后有值
}

// TableName 指定审计表名。
func (Record) TableName() string {
	return "audit_logs"
}

// DetailsFingerprint 返回 details 的规范化 JSON 序列化结果。
// encoding/json 对 map 按 key 排序输出，因此同构的负载产生相同指纹，
// 合并判定依赖这种结构化相等。
func (r Record) DetailsFingerprint() string {
	if len(r.Details) == 0 {
		return "{}"
	}
	data, err := json.Marshal(map[string]any(r.Details))
	if err != nil {
		// 不可序列化的负载不参与合并，给出一个唯一指纹。
		return fmt.Sprintf("!unserializable:%p", &r)
	}
	return string(data)
}

// SameMergeKey 判断两条记录是否允许互相合并。
// 合并键为 (user_id, action, resource_type, resource_id, details)，
// details 按结构化相等比较。
func (r Record) SameMergeKey(other Record) bool {
	return EqualUintPtr(r.UserID, other.UserID) &&
		r.Action == other.Action &&
		EqualStringPtr(r.ResourceType, other.ResourceType) &&
		EqualUintPtr(r.ResourceID, other.ResourceID) &&
		r.DetailsFingerprint() == other.DetailsFingerprint()
}

// EqualUintPtr 比较两个可空整型指针的值相等性。
func EqualUintPtr(a, b *uint) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// EqualStringPtr 比较两个可空字符串指针的值相等性。
func EqualStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
