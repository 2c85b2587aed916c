package notifier

import (
	"fmt"

	"sigma-events-tracker/internal/models"
)

// 展示给人看的时间格式
const periodFormat = "2006-01-02 15:04:05"

// FormatPeriod 渲染窗口区间（消息、complement 与登记记录共用同一表示）
func FormatPeriod(window models.TimeWindow) string {
	return fmt.Sprintf("%s -> %s",
		window.Start.UTC().Format(periodFormat),
		window.End.UTC().Format(periodFormat),
	)
}

// RenderChatMessage 渲染群组告警消息
func RenderChatMessage(info *models.EnrichedAccount, code string, count int, window models.TimeWindow) string {
	return fmt.Sprintf(
		"⚠️EXCESSO DE EVENTOS⚠️\n\nConta: %s\nNome: %s\nEmpresa: %s\nGrupo: %s\nEvento: %s\nPeríodo: %s\nQuantidade: %d",
		info.AccountCode,
		info.TradeName,
		info.CompanyTradeName,
		info.ClientGroupName,
		code,
		FormatPeriod(window),
		count,
	)
}

// RenderComplement 渲染报警注入的 complement/eventLog 文本
func RenderComplement(code string, count int, window models.TimeWindow) string {
	return fmt.Sprintf(
		"Advertência: Excesso de eventos detectado, Código: %s, Período: %s, Quantidade: %d",
		code,
		FormatPeriod(window),
		count,
	)
}
