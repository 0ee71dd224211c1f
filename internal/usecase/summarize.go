package usecase

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/paywatch/paywatch/internal/domain"
)

// revenueBucketMs is the fixed time-series window width.
const revenueBucketMs = 60_000

// SummarizeUseCase computes the dashboard projection over a stable
// snapshot of one scope's events. It is a pure read: calling it twice
// with no intervening append yields identical output.
type SummarizeUseCase struct {
	repo        domain.EventRepository
	recentLimit int
}

// NewSummarizeUseCase creates a new SummarizeUseCase. recentLimit bounds
// the recent-events slice embedded in the summary.
func NewSummarizeUseCase(repo domain.EventRepository, recentLimit int) *SummarizeUseCase {
	if recentLimit <= 0 {
		recentLimit = 50
	}
	return &SummarizeUseCase{repo: repo, recentLimit: recentLimit}
}

// Summary aggregates the scope's full event history. An empty scope
// yields zero counters and empty collections, never an error.
func (uc *SummarizeUseCase) Summary(ctx context.Context, scopeID string) (domain.DashboardSummary, error) {
	scoped, err := uc.repo.All(ctx, scopeID)
	if err != nil {
		return domain.DashboardSummary{}, err
	}

	summary := domain.DashboardSummary{
		Endpoints:         []domain.EndpointSummary{},
		RevenueTimeSeries: []domain.RevenueBucket{},
		RecentEvents:      []domain.PaymentEvent{},
		TopWallets:        []domain.WalletSummary{},
		HourlyInsights:    []domain.HourlyBucket{},
		FailureBreakdown:  []domain.FailureBucket{},
	}
	if len(scoped) == 0 {
		return summary, nil
	}

	var settled []domain.PaymentEvent
	var totalRevenue float64
	var totalDuration int64
	for _, e := range scoped {
		totalDuration += e.DurationMs
		if e.Outcome.Settled() {
			settled = append(settled, e)
			totalRevenue += e.AmountUSDC
		}
	}

	summary.TotalEvents = len(scoped)
	summary.TotalRevenueUSDC = totalRevenue
	summary.SuccessRate = float64(len(settled)) / float64(len(scoped))
	summary.AvgLatencyMs = float64(totalDuration) / float64(len(scoped))
	summary.Endpoints = endpointRollup(scoped)
	summary.RevenueTimeSeries = revenueTimeSeries(settled)
	summary.TopWallets = topWallets(settled)
	summary.HourlyInsights = hourlyInsights(scoped)
	summary.FailureBreakdown = failureBreakdown(scoped)
	// Derived from the same snapshot as the counters, so the recent list
	// never shows an event the totals have not counted.
	summary.RecentEvents = recentFrom(scoped, uc.recentLimit)

	return summary, nil
}

// recentFrom returns up to limit newest events from the insertion-ordered
// snapshot, newest first.
func recentFrom(scoped []domain.PaymentEvent, limit int) []domain.PaymentEvent {
	if limit > len(scoped) {
		limit = len(scoped)
	}
	out := make([]domain.PaymentEvent, 0, limit)
	for i := len(scoped) - 1; i >= len(scoped)-limit; i-- {
		out = append(out, scoped[i])
	}
	return out
}

// endpointRollup groups by endpoint in first-seen order: one row per
// distinct endpoint string in the scope.
func endpointRollup(scoped []domain.PaymentEvent) []domain.EndpointSummary {
	type acc struct {
		summary     domain.EndpointSummary
		durationSum int64
		payers      map[string]struct{}
	}
	byEndpoint := make(map[string]*acc)
	var order []string

	for _, e := range scoped {
		a, ok := byEndpoint[e.Endpoint]
		if !ok {
			a = &acc{
				summary: domain.EndpointSummary{Endpoint: e.Endpoint},
				payers:  make(map[string]struct{}),
			}
			byEndpoint[e.Endpoint] = a
			order = append(order, e.Endpoint)
		}
		a.summary.TotalRequests++
		a.durationSum += e.DurationMs
		if e.Outcome.Settled() {
			a.summary.SuccessfulPayments++
			a.summary.TotalRevenueUSDC += e.AmountUSDC
		} else {
			a.summary.FailedPayments++
		}
		if e.Payer != "" {
			a.payers[e.Payer] = struct{}{}
		}
	}

	out := make([]domain.EndpointSummary, 0, len(order))
	for _, ep := range order {
		a := byEndpoint[ep]
		a.summary.AvgDurationMs = float64(a.durationSum) / float64(a.summary.TotalRequests)
		a.summary.UniquePayers = len(a.payers)
		out = append(out, a.summary)
	}
	return out
}

// revenueTimeSeries buckets settled events into 60-second windows. The
// series is sparse: intervening empty buckets are omitted.
func revenueTimeSeries(settled []domain.PaymentEvent) []domain.RevenueBucket {
	if len(settled) == 0 {
		return []domain.RevenueBucket{}
	}

	type acc struct {
		revenue float64
		count   int
	}
	buckets := make(map[int64]*acc)
	for _, e := range settled {
		start := e.StartedAt / revenueBucketMs * revenueBucketMs
		a, ok := buckets[start]
		if !ok {
			a = &acc{}
			buckets[start] = a
		}
		a.revenue += e.AmountUSDC
		a.count++
	}

	starts := make([]int64, 0, len(buckets))
	for start := range buckets {
		starts = append(starts, start)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })

	out := make([]domain.RevenueBucket, 0, len(starts))
	for _, start := range starts {
		a := buckets[start]
		out = append(out, domain.RevenueBucket{
			Timestamp:        start,
			Label:            time.UnixMilli(start).Format("15:04"),
			RevenueUSDC:      math.Round(a.revenue*1e6) / 1e6,
			TransactionCount: a.count,
		})
	}
	return out
}

// topWallets ranks payers of settled events by total spent, descending,
// truncated to ten. The sort is stable so ties keep encounter order.
func topWallets(settled []domain.PaymentEvent) []domain.WalletSummary {
	byPayer := make(map[string]int)
	out := make([]domain.WalletSummary, 0)

	for _, e := range settled {
		if e.Payer == "" {
			continue
		}
		idx, ok := byPayer[e.Payer]
		if !ok {
			idx = len(out)
			byPayer[e.Payer] = idx
			out = append(out, domain.WalletSummary{Address: e.Payer})
		}
		out[idx].TotalSpent += e.AmountUSDC
		out[idx].TxCount++
		if e.StartedAt > out[idx].LastSeen {
			out[idx].LastSeen = e.StartedAt
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalSpent > out[j].TotalSpent
	})
	if len(out) > 10 {
		out = out[:10]
	}
	return out
}

// hourlyInsights groups all events by local hour-of-day. Only hours with
// at least one event appear, sorted ascending by hour.
func hourlyInsights(scoped []domain.PaymentEvent) []domain.HourlyBucket {
	type acc struct {
		success int
		total   int
	}
	var byHour [24]acc
	for _, e := range scoped {
		hour := time.UnixMilli(e.StartedAt).Hour()
		byHour[hour].total++
		if e.Outcome.Settled() {
			byHour[hour].success++
		}
	}

	out := make([]domain.HourlyBucket, 0)
	for hour, a := range byHour {
		if a.total == 0 {
			continue
		}
		out = append(out, domain.HourlyBucket{
			Hour:             hour,
			SuccessRate:      float64(a.success) / float64(a.total),
			TransactionCount: a.total,
		})
	}
	return out
}

// failureBreakdown counts non-settled events by failure reason, sorted by
// count descending.
func failureBreakdown(scoped []domain.PaymentEvent) []domain.FailureBucket {
	byReason := make(map[string]int)
	var order []string
	for _, e := range scoped {
		if e.Outcome.Settled() {
			continue
		}
		reason := string(e.FailureReason)
		if reason == "" {
			reason = string(domain.FailureUnknown)
		}
		if _, ok := byReason[reason]; !ok {
			order = append(order, reason)
		}
		byReason[reason]++
	}

	out := make([]domain.FailureBucket, 0, len(order))
	for _, reason := range order {
		out = append(out, domain.FailureBucket{Reason: reason, Count: byReason[reason]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	return out
}
