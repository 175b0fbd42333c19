// Package control orchestrates backend sync jobs: trigger, poll to
// completion, then refresh the affected dataset cache. It is the console
// counterpart of the dashboard's control panel page.
package control

import "strings"

// SyncJob describes one job card on the control panel.
type SyncJob struct {
	Slug    string // path segment for POST /control/sync/{slug}
	Key     string // job key in the control status payload
	Name    string // display name
	Dataset string // dataset refreshed after a successful run, "" for none
}

// Jobs is the registry of named backend sync jobs.
var Jobs = []SyncJob{
	{Slug: "concept-insight", Key: "concept_insight", Name: "Concept Insight", Dataset: "concepts"},
	{Slug: "industry-insight", Key: "industry_insight", Name: "Industry Insight", Dataset: "industries"},
	{Slug: "peripheral-insight", Key: "peripheral_insight", Name: "Peripheral Insight", Dataset: "peripheral"},
	{Slug: "index-history", Key: "index_history", Name: "Index History", Dataset: "index-history"},
	{Slug: "moneyflow", Key: "moneyflow", Name: "Fund Flows", Dataset: "moneyflow"},
	{Slug: "ppi", Key: "ppi_sync", Name: "PPI", Dataset: "ppi"},
	{Slug: "dollar-index", Key: "dollar_index_sync", Name: "Dollar Index", Dataset: "dollar-index"},
	{Slug: "leverage-ratio", Key: "leverage_ratio_sync", Name: "Leverage Ratio", Dataset: "leverage-ratio"},
}

// JobBySlug looks a job up by its URL slug.
func JobBySlug(slug string) (SyncJob, bool) {
	for _, job := range Jobs {
		if job.Slug == slug {
			return job, true
		}
	}
	return SyncJob{}, false
}

// JobByKey looks a job up by its status payload key.
func JobByKey(key string) (SyncJob, bool) {
	for _, job := range Jobs {
		if job.Key == key {
			return job, true
		}
	}
	return SyncJob{}, false
}

// TableFor maps a dataset name to its cache table.
func TableFor(dataset string) string {
	return strings.ReplaceAll(dataset, "-", "_")
}
