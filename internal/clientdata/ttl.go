package clientdata

import "time"

// TTL constants for dataset cache tables.
// These are added to time.Now() when storing to calculate expires_at.
const (
	// Insight datasets refresh when their backend sync jobs run
	TTLInsight = 4 * time.Hour // concepts, industries, peripheral

	// Intraday fund flows go stale quickly during trading hours
	TTLMoneyflow = 30 * time.Minute

	// Index history only grows by one bar per trading day
	TTLIndexHistory = 4 * time.Hour

	// Macro series update on publication schedules, daily at most
	TTLMacro         = 24 * time.Hour // macro indicator panel
	TTLPPI           = 24 * time.Hour
	TTLLeverageRatio = 24 * time.Hour

	// Dollar index moves continuously
	TTLDollarIndex = time.Hour
)

// TTLFor returns the cache TTL for a dataset table.
func TTLFor(table string) time.Duration {
	switch table {
	case "concepts", "industries", "peripheral":
		return TTLInsight
	case "moneyflow":
		return TTLMoneyflow
	case "index_history":
		return TTLIndexHistory
	case "ppi":
		return TTLPPI
	case "dollar_index":
		return TTLDollarIndex
	case "leverage_ratio":
		return TTLLeverageRatio
	default:
		return TTLMacro
	}
}
