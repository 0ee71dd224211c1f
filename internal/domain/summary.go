package domain

// EndpointSummary is the per-endpoint rollup of all scoped events.
type EndpointSummary struct {
	Endpoint           string  `json:"endpoint"`
	TotalRequests      int     `json:"total_requests"`
	SuccessfulPayments int     `json:"successful_payments"`
	FailedPayments     int     `json:"failed_payments"`
	TotalRevenueUSDC   float64 `json:"total_revenue_usdc"`
	AvgDurationMs      float64 `json:"avg_duration_ms"`
	UniquePayers       int     `json:"unique_payers"`
}

// WalletSummary aggregates settled spending for a single payer.
type WalletSummary struct {
	Address    string  `json:"address"`
	TotalSpent float64 `json:"total_spent_usdc"`
	TxCount    int     `json:"tx_count"`
	LastSeen   int64   `json:"last_seen"` // epoch ms
}

// RevenueBucket is one 60-second window of settled revenue.
type RevenueBucket struct {
	Timestamp        int64   `json:"timestamp"` // bucket start, epoch ms
	Label            string  `json:"label"`
	RevenueUSDC      float64 `json:"revenue_usdc"`
	TransactionCount int     `json:"transaction_count"`
}

// HourlyBucket reports settlement rate for one observed hour of day.
type HourlyBucket struct {
	Hour             int     `json:"hour"` // 0-23, local time
	SuccessRate      float64 `json:"success_rate"`
	TransactionCount int     `json:"transaction_count"`
}

// FailureBucket counts non-settled events by failure reason.
type FailureBucket struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// DashboardSummary is the on-demand analytical projection over one scope.
// All fields are derived and recomputed on read; an empty scope yields
// zero counters and empty collections, never an error.
type DashboardSummary struct {
	TotalEvents       int               `json:"total_events"`
	TotalRevenueUSDC  float64           `json:"total_revenue_usdc"`
	SuccessRate       float64           `json:"success_rate"` // 0-1
	AvgLatencyMs      float64           `json:"avg_latency_ms"`
	Endpoints         []EndpointSummary `json:"endpoints"`
	RevenueTimeSeries []RevenueBucket   `json:"revenue_time_series"`
	RecentEvents      []PaymentEvent    `json:"recent_events"`
	TopWallets        []WalletSummary   `json:"top_wallets"`
	HourlyInsights    []HourlyBucket    `json:"hourly_insights"`
	FailureBreakdown  []FailureBucket   `json:"failure_breakdown"`
}
