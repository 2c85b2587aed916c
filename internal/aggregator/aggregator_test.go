package aggregator

import (
	"fmt"
	"testing"

	"sigma-events-tracker/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string {
	return &s
}

func TestAggregate_FiltersByWhitelists(t *testing.T) {
	agg := NewAggregator([]string{"ALI"}, []string{"E130"})

	events := []models.Event{
		{Cuc: "ALI", AccountID: 7, Code: "E130"},
		{Cuc: "ALI", AccountID: 7, Code: "E999"}, // 事件码不在白名单
		{Cuc: "XXX", AccountID: 7, Code: "E130"}, // cuc 不在白名单
		{Cuc: "ALI", AccountID: 8, Code: "E130"},
	}

	bundle := agg.Aggregate(events, nil)

	assert.Equal(t, 1, bundle["ALI"][7]["E130"])
	assert.Equal(t, 1, bundle["ALI"][8]["E130"])
	assert.NotContains(t, bundle, "XXX")
	assert.NotContains(t, bundle["ALI"][7], "E999")
}

func TestAggregate_CountsTwentyFiveEvents(t *testing.T) {
	agg := NewAggregator([]string{"ALI"}, []string{"E130"})

	events := make([]models.Event, 0, 25)
	for i := 0; i < 25; i++ {
		events = append(events, models.Event{ID: int64(i), Cuc: "ALI", AccountID: 7, Code: "E130"})
	}

	bundle := agg.Aggregate(events, nil)

	assert.Equal(t, 25, bundle["ALI"][7]["E130"])
}

func TestAggregate_ExcludesClosedOccurrences(t *testing.T) {
	agg := NewAggregator([]string{"ALI"}, []string{"E130"})

	events := []models.Event{
		{Cuc: "ALI", AccountID: 7, Code: "E130", OccurrenceID: strPtr("occ-1")},
		{Cuc: "ALI", AccountID: 7, Code: "E130", OccurrenceID: strPtr("occ-2")},
		{Cuc: "ALI", AccountID: 7, Code: "E130"},
	}

	closed := ClosedOccurrenceSet([]models.Occurrence{{ID: "occ-1"}})

	bundle := agg.Aggregate(events, closed)

	// occ-1 关联事件被排除；occ-2 未关闭，正常计数
	assert.Equal(t, 2, bundle["ALI"][7]["E130"])
}

func TestAggregate_NilClosedSetKeepsOccurrenceEvents(t *testing.T) {
	agg := NewAggregator([]string{"ALI"}, []string{"E130"})

	events := []models.Event{
		{Cuc: "ALI", AccountID: 7, Code: "E130", OccurrenceID: strPtr("occ-1")},
	}

	bundle := agg.Aggregate(events, nil)

	assert.Equal(t, 1, bundle["ALI"][7]["E130"])
}

func TestAggregate_SmallEventCounts(t *testing.T) {
	// 事件数在分片数附近时分块不得越界（5 个事件曾触发 events[6:5]）
	agg := NewAggregator([]string{"ALI"}, []string{"E130"})

	for n := 1; n <= 10; n++ {
		events := make([]models.Event, 0, n)
		for i := 0; i < n; i++ {
			events = append(events, models.Event{ID: int64(i), Cuc: "ALI", AccountID: 7, Code: "E130"})
		}

		bundle := agg.Aggregate(events, nil)

		assert.Equal(t, n, bundle["ALI"][7]["E130"], "event count %d", n)
	}
}

func TestAggregate_Empty(t *testing.T) {
	agg := NewAggregator([]string{"ALI"}, []string{"E130"})

	bundle := agg.Aggregate(nil, nil)

	assert.Empty(t, bundle)
}

func TestAggregate_OrderIndependent(t *testing.T) {
	agg := NewAggregator([]string{"ALI", "BEM"}, []string{"E130", "E131"})

	// 大量事件跨分片折叠，计数必须与顺序和分片无关
	var events []models.Event
	for i := 0; i < 500; i++ {
		events = append(events, models.Event{Cuc: "ALI", AccountID: i % 3, Code: "E130"})
		events = append(events, models.Event{Cuc: "BEM", AccountID: i % 2, Code: "E131"})
	}

	first := agg.Aggregate(events, nil)

	// 反转顺序再聚合
	reversed := make([]models.Event, len(events))
	for i, e := range events {
		reversed[len(events)-1-i] = e
	}
	second := agg.Aggregate(reversed, nil)

	assert.Equal(t, first, second)

	total := 0
	for _, accounts := range first {
		for _, codes := range accounts {
			for _, count := range codes {
				total += count
			}
		}
	}
	assert.Equal(t, 1000, total)
}

func TestBundleKeys(t *testing.T) {
	bundle := Bundle{}
	bundle.Add("ALI", 7, "E130", 25)
	bundle.Add("ALI", 7, "E131", 3)
	bundle.Add("BEM", 9, "E130", 12)

	keys := bundle.Keys()

	require.Len(t, keys, 3)

	found := make(map[string]int)
	for _, kc := range keys {
		found[fmt.Sprintf("%s/%d/%s", kc.Key.Cuc, kc.Key.AccountID, kc.Key.Code)] = kc.Count
	}
	assert.Equal(t, 25, found["ALI/7/E130"])
	assert.Equal(t, 3, found["ALI/7/E131"])
	assert.Equal(t, 12, found["BEM/9/E130"])
}

func TestBundleMerge(t *testing.T) {
	a := Bundle{}
	a.Add("ALI", 7, "E130", 10)

	b := Bundle{}
	b.Add("ALI", 7, "E130", 15)
	b.Add("BEM", 9, "E131", 1)

	a.Merge(b)

	assert.Equal(t, 25, a["ALI"][7]["E130"])
	assert.Equal(t, 1, a["BEM"][9]["E131"])
}
