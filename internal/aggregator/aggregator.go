package aggregator

import (
	"sync"

	"sigma-events-tracker/internal/models"
)

// Bundle 三级嵌套计数：cuc → accountId → code → count
type Bundle map[string]map[int]map[string]int

// Add 累加一个键的计数
func (b Bundle) Add(cuc string, accountID int, code string, delta int) {
	accounts, ok := b[cuc]
	if !ok {
		accounts = make(map[int]map[string]int)
		b[cuc] = accounts
	}
	codes, ok := accounts[accountID]
	if !ok {
		codes = make(map[string]int)
		accounts[accountID] = codes
	}
	codes[code] += delta
}

// Merge 将另一个 Bundle 的计数合并进来
func (b Bundle) Merge(other Bundle) {
	for cuc, accounts := range other {
		for accountID, codes := range accounts {
			for code, count := range codes {
				b.Add(cuc, accountID, code, count)
			}
		}
	}
}

// Keys 展开为聚合键+计数列表，供逐键评估使用
func (b Bundle) Keys() []KeyCount {
	var out []KeyCount
	for cuc, accounts := range b {
		for accountID, codes := range accounts {
			for code, count := range codes {
				out = append(out, KeyCount{
					Key: models.AggregateKey{
						Cuc:       cuc,
						AccountID: accountID,
						Code:      code,
					},
					Count: count,
				})
			}
		}
	}
	return out
}

// KeyCount 一个聚合键在当前周期内的计数
type KeyCount struct {
	Key   models.AggregateKey
	Count int
}

// 分片折叠的分片数
const foldShards = 4

// Aggregator 事件过滤聚合器。
// 纯折叠：结果与事件顺序无关；分片并行累加后合并，无共享可变状态。
type Aggregator struct {
	allowedCucs  map[string]struct{}
	allowedCodes map[string]struct{}
}

// NewAggregator 创建聚合器
func NewAggregator(includedCucs, includedCodes []string) *Aggregator {
	allowedCucs := make(map[string]struct{}, len(includedCucs))
	for _, cuc := range includedCucs {
		allowedCucs[cuc] = struct{}{}
	}
	allowedCodes := make(map[string]struct{}, len(includedCodes))
	for _, code := range includedCodes {
		allowedCodes[code] = struct{}{}
	}

	return &Aggregator{
		allowedCucs:  allowedCucs,
		allowedCodes: allowedCodes,
	}
}

// Aggregate 过滤并折叠事件。closedOccurrences 为本周期内人工关闭的工单 ID 集合，
// 关联这些工单的事件不计数（工单过滤关闭时传 nil）。
func (a *Aggregator) Aggregate(events []models.Event, closedOccurrences map[string]struct{}) Bundle {
	if len(events) == 0 {
		return Bundle{}
	}

	shards := foldShards
	if len(events) < shards {
		shards = 1
	}

	// 按偏移量切块：块数可能少于 shards（ceil 取整会提前耗尽事件），
	// 绝不产生越界的空块
	chunkSize := (len(events) + shards - 1) / shards
	partials := make([]Bundle, 0, shards)

	var wg sync.WaitGroup
	for start := 0; start < len(events); start += chunkSize {
		end := start + chunkSize
		if end > len(events) {
			end = len(events)
		}

		partials = append(partials, nil)
		wg.Add(1)
		go func(idx int, chunk []models.Event) {
			defer wg.Done()
			partials[idx] = a.fold(chunk, closedOccurrences)
		}(len(partials)-1, events[start:end])
	}
	wg.Wait()

	result := Bundle{}
	for _, partial := range partials {
		result.Merge(partial)
	}

	return result
}

// fold 单分片的顺序折叠
func (a *Aggregator) fold(events []models.Event, closedOccurrences map[string]struct{}) Bundle {
	bundle := Bundle{}

	for _, event := range events {
		if _, ok := a.allowedCucs[event.Cuc]; !ok {
			continue
		}
		if _, ok := a.allowedCodes[event.Code]; !ok {
			continue
		}
		if event.OccurrenceID != nil && closedOccurrences != nil {
			if _, closed := closedOccurrences[*event.OccurrenceID]; closed {
				continue
			}
		}

		bundle.Add(event.Cuc, event.AccountID, event.Code, 1)
	}

	return bundle
}

// ClosedOccurrenceSet 从工单列表构建关闭工单 ID 集合
func ClosedOccurrenceSet(occurrences []models.Occurrence) map[string]struct{} {
	set := make(map[string]struct{}, len(occurrences))
	for _, occ := range occurrences {
		set[occ.ID] = struct{}{}
	}
	return set
}
