package models

import (
	"time"
)

// WindowState 窗口状态（对应 event_window 表，单行）
// 生命周期：不存在或 now > started_at + period 时删除重建。
type WindowState struct {
	ID        string    `json:"id" db:"id"`
	StartedAt time.Time `json:"started_at" db:"started_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Window 返回该状态覆盖的聚合窗口 [StartedAt, StartedAt+period)
func (s *WindowState) Window(period time.Duration) TimeWindow {
	return TimeWindow{
		Start: s.StartedAt,
		End:   s.StartedAt.Add(period),
	}
}

// AggregateKey 聚合计数器的唯一键
type AggregateKey struct {
	Cuc       string
	AccountID int
	Code      string
}

// TriggerRecord 触发去重记录（对应 event_triggers 表）
// 行存在即表示该键的报警处于激活状态，抑制重复触发。
type TriggerRecord struct {
	AccountID int       `json:"account_id" db:"account_id"`
	Cuc       string    `json:"cuc" db:"cuc"`
	Code      string    `json:"code" db:"code"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// 报警审计状态
const (
	AlarmStatusSent   = "sent"
	AlarmStatusFailed = "failed"
)

// AlarmRecord 报警注入审计记录（对应 alarm_audit 表，只追加）
type AlarmRecord struct {
	ID              string    `json:"id" db:"id"`
	ApplicationType string    `json:"application_type" db:"application_type"`
	Account         string    `json:"account" db:"account"`
	Auxiliary       string    `json:"auxiliary" db:"auxiliary"`
	Code            string    `json:"code" db:"code"`
	CompanyID       int       `json:"company_id" db:"company_id"`
	Complement      string    `json:"complement" db:"complement"`
	EventID         string    `json:"event_id" db:"event_id"`
	EventLog        string    `json:"event_log" db:"event_log"`
	Partition       string    `json:"partition" db:"partition"`
	ProtocolType    string    `json:"protocol_type" db:"protocol_type"`
	Status          string    `json:"status" db:"status"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// RegisterRecord 触发登记记录（对应 trigger_registers 表，只追加）
// 冗余存储账户/公司/客户组名称，独立于通知是否成功。
type RegisterRecord struct {
	ID               string    `json:"id" db:"id"`
	AccountCode      string    `json:"account_code" db:"account_code"`
	TradeName        string    `json:"trade_name" db:"trade_name"`
	CompanyTradeName string    `json:"company_trade_name" db:"company_trade_name"`
	ClientGroupName  string    `json:"client_group_name" db:"client_group_name"`
	Code             string    `json:"code" db:"code"`
	Period           string    `json:"period" db:"period"`
	Quantity         int       `json:"quantity" db:"quantity"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// EnrichedAccount 触发时按需拉取的账户元数据
type EnrichedAccount struct {
	AccountCode      string
	TradeName        string
	CompanyID        int
	CompanyTradeName string
	ClientGroupName  string
}
