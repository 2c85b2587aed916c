package models

import (
	"time"
)

// Event 是 Sigma Cloud 事件流返回的原始事件。
// 每个周期消费一次，不落库。
type Event struct {
	ID           int64   `json:"id"`
	Cuc          string  `json:"cuc"`
	AccountID    int     `json:"accountId"`
	Code         string  `json:"code"`
	OccurrenceID *string `json:"occurrenceId,omitempty"`
	EventDate    string  `json:"eventDate,omitempty"`
}

// Occurrence Sigma Cloud 工单。人工关闭的工单所关联的事件不参与计数。
type Occurrence struct {
	ID                    string `json:"id"`
	OccurrenceClosingUser *int   `json:"occurrenceClosingUserId,omitempty"`
}

// TimeWindow 聚合窗口 [Start, End)。构造后不可变，Start < End。
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// Duration 窗口时长
func (w TimeWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// AccountInfo Sigma Cloud 账户目录（/v5/accounts/{id}）
type AccountInfo struct {
	ID            int    `json:"id"`
	AccountCode   string `json:"accountCode"`
	TradeName     string `json:"tradeName"`
	CompanyID     int    `json:"companyId"`
	ClientGroupID int    `json:"clientGroupId"`
}

// CompanyInfo Sigma Cloud 公司目录（/v1/company/{id}）
type CompanyInfo struct {
	ID        int    `json:"id"`
	TradeName string `json:"tradeName"`
}

// ClientGroup Sigma Cloud 客户组（/v1/clientGroups）
type ClientGroup struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// AlarmEvent 注入 Sigma Cloud 的报警事件负载（/v3/events/alarm）
type AlarmEvent struct {
	Account      string `json:"account"`
	Auxiliary    string `json:"auxiliary"`
	Code         string `json:"code"`
	CompanyID    int    `json:"companyId"`
	Complement   string `json:"complement"`
	EventID      string `json:"eventId"`
	EventLog     string `json:"eventLog"`
	Partition    string `json:"partition"`
	ProtocolType string `json:"protocolType"`
}

// AlarmEventRequest 报警注入请求体
type AlarmEventRequest struct {
	Events []AlarmEvent `json:"events"`
}
