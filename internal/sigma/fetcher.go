package sigma

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"sigma-events-tracker/internal/models"

	"go.uber.org/zap"
)

// Fetcher 自适应批量抓取器。
// 将窗口均分为 N 个连续子窗口并发抓取；任一子请求因记录数超限被拒时，
// 对同一窗口整体重试并将 N 翻倍（上游的限制是按请求计的，细分必须均匀），
// 直到成功或超过 maxBatches。其他错误立即中止本周期。
type Fetcher struct {
	client     *Client
	maxBatches int
	logger     *zap.Logger
}

// NewFetcher 创建批量抓取器
func NewFetcher(client *Client, maxBatches int, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		client:     client,
		maxBatches: maxBatches,
		logger:     logger,
	}
}

// SplitWindow 将窗口均分为 n 个连续、不重叠的半开子窗口 [start, end)。
// 子窗口时长相等（时长按整数纳秒截断，最后一个子窗口吸收余数），
// 并集恰好覆盖原窗口。
func SplitWindow(window models.TimeWindow, n int) []models.TimeWindow {
	if n < 1 {
		n = 1
	}

	step := window.Duration() / time.Duration(n)
	batches := make([]models.TimeWindow, 0, n)

	start := window.Start
	for i := 0; i < n; i++ {
		end := start.Add(step)
		if i == n-1 {
			end = window.End
		}
		batches = append(batches, models.TimeWindow{Start: start, End: end})
		start = end
	}

	return batches
}

// Fetch 抓取窗口内的全部事件。跨批次结果顺序不作保证。
func (f *Fetcher) Fetch(ctx context.Context, window models.TimeWindow) ([]models.Event, error) {
	if !window.Start.Before(window.End) {
		return nil, fmt.Errorf("invalid window: start must precede end")
	}

	for batches := 1; batches <= f.maxBatches; batches *= 2 {
		events, err := f.fetchBatches(ctx, window, batches)
		if err == nil {
			f.logger.Debug("Window fetched",
				zap.Int("batches", batches),
				zap.Int("event_count", len(events)),
			)
			return events, nil
		}

		if errors.Is(err, ErrRecordsOverLimit) {
			f.logger.Warn("Upstream rejected batch size, doubling",
				zap.Int("batches", batches),
				zap.Time("window_start", window.Start),
				zap.Time("window_end", window.End),
			)
			continue
		}

		return nil, err
	}

	return nil, fmt.Errorf("fetch aborted after %d batches: %w", f.maxBatches, ErrRecordsOverLimit)
}

// fetchBatches 对窗口的一次均分抓取：每个子窗口一个并发请求，全部完成后拼接
func (f *Fetcher) fetchBatches(ctx context.Context, window models.TimeWindow, batches int) ([]models.Event, error) {
	subWindows := SplitWindow(window, batches)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		results  = make([][]models.Event, len(subWindows))
		overflow bool
		fatalErr error
	)

	for i, sub := range subWindows {
		wg.Add(1)
		go func(i int, sub models.TimeWindow) {
			defer wg.Done()

			events, err := f.client.GetEvents(ctx, sub)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				if errors.Is(err, ErrRecordsOverLimit) {
					overflow = true
				} else if fatalErr == nil {
					fatalErr = err
				}
				return
			}
			results[i] = events
		}(i, sub)
	}

	wg.Wait()

	// 致命错误优先于超限：超限可重试，其他错误不可
	if fatalErr != nil {
		return nil, fatalErr
	}
	if overflow {
		return nil, ErrRecordsOverLimit
	}

	total := 0
	for _, r := range results {
		total += len(r)
	}
	all := make([]models.Event, 0, total)
	for _, r := range results {
		all = append(all, r...)
	}

	return all, nil
}
