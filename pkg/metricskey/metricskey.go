package metricskey

import "github.com/effective-security/metrics"

// Stats
var (
	// StatsSuggestRequests is base for counter metric for total suggest requests
	StatsSuggestRequests = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_suggest_requests",
		Help:         "stats_suggest_requests provides total suggest requests served",
		RequiredTags: []string{"mode"},
	}

	StatsSuggestFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_suggest_failed",
		Help:         "stats_suggest_failed provides total suggest requests failed",
		RequiredTags: []string{"reason"},
	}

	StatsCacheHits = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_cache_hits",
		Help:         "stats_cache_hits provides total suggestion cache hits",
		RequiredTags: []string{"backend"},
	}

	StatsCacheMisses = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_cache_misses",
		Help:         "stats_cache_misses provides total suggestion cache misses",
		RequiredTags: []string{"backend"},
	}

	StatsCacheErrors = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_cache_errors",
		Help:         "stats_cache_errors provides total suggestion cache failures",
		RequiredTags: []string{"op"},
	}

	StatsRollbackToggled = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_rollback_toggled",
		Help:         "stats_rollback_toggled provides total emergency rollback state changes",
		RequiredTags: []string{"enabled"},
	}

	StatsRegistryChanges = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_registry_changes",
		Help:         "stats_registry_changes provides total tool registry changes",
		RequiredTags: []string{"op"},
	}

	StatsHealthChecks = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_health_checks",
		Help:         "stats_health_checks provides total health checks by status",
		RequiredTags: []string{"status"},
	}
)

// Perf
var (
	PerfSuggest = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_suggest",
		Help:         "perf_suggest provides duration of suggest request",
		RequiredTags: []string{"mode"},
	}

	PerfHealthCheck = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_health_check",
		Help:         "perf_health_check provides duration of health check",
		RequiredTags: []string{"status"},
	}
)

// Metrics returns slice of metrics from this repo
// keep sorted by name
var Metrics = []*metrics.Describe{
	&PerfHealthCheck,
	&PerfSuggest,
	&StatsCacheErrors,
	&StatsCacheHits,
	&StatsCacheMisses,
	&StatsHealthChecks,
	&StatsRegistryChanges,
	&StatsRollbackToggled,
	&StatsSuggestFailed,
	&StatsSuggestRequests,
}
