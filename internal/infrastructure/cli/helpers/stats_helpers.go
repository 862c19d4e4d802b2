package helpers

import (
	"sort"

	"github.com/doeshing/opsguard/internal/domain"
)

// LedgerStatistics summarizes a slice of ledger records
type LedgerStatistics struct {
	Total      int
	Successful int
	RolledBack int
	Risk       map[domain.RiskLevel]int
	Tools      []ToolStatistic
}

// ToolStatistic represents usage statistics for a tool
type ToolStatistic struct {
	Tool  string
	Count int
}

// AnalyzeRecords computes statistics over ledger records
func AnalyzeRecords(records []domain.OperationRecord) LedgerStatistics {
	stats := LedgerStatistics{Total: len(records), Risk: map[domain.RiskLevel]int{}}
	freq := map[string]int{}
	for _, rec := range records {
		if rec.Success {
			stats.Successful++
		}
		if rec.RolledBack {
			stats.RolledBack++
		}
		stats.Risk[rec.RiskLevel]++
		for _, name := range rec.ToolNames() {
			freq[name]++
		}
	}
	stats.Tools = CalculateTopTools(freq, 5)
	return stats
}

// CalculateTopTools returns the top N most frequently used tools
// If limit is 0 or negative, returns all tools
func CalculateTopTools(frequency map[string]int, limit int) []ToolStatistic {
	stats := make([]ToolStatistic, 0, len(frequency))
	for tool, count := range frequency {
		stats = append(stats, ToolStatistic{Tool: tool, Count: count})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count == stats[j].Count {
			return stats[i].Tool < stats[j].Tool
		}
		return stats[i].Count > stats[j].Count
	})
	if limit > 0 && len(stats) > limit {
		return stats[:limit]
	}
	return stats
}

// CalculateSuccessRate calculates the success rate as a percentage
func CalculateSuccessRate(successfulCount int, executedCount int) float64 {
	if executedCount == 0 {
		return 0.0
	}
	return float64(successfulCount) / float64(executedCount) * 100.0
}
