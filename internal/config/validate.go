package config

import (
	"fmt"
	"net/url"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks startup.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is logged and ignored.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding. Path is a dotted path into
// the config, e.g. "storage.dsn".
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// knownStorage lists the built-in storage kinds.
var knownStorage = map[string]struct{}{
	"sqlite": {}, "postgres": {}, "mysql": {}, "mssql": {},
}

// Validate performs static checks over cfg. It does not mutate cfg.
func Validate(cfg Config) []Issue {
	var issues []Issue
	add := func(sev IssueSeverity, path, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(cfg.Addr) == "" {
		add(SeverityError, "addr", "listen address must not be empty")
	}

	switch kind := strings.TrimSpace(cfg.Storage.Kind); {
	case kind == "":
		add(SeverityError, "storage.kind", "storage.kind must not be empty")
	default:
		if _, ok := knownStorage[kind]; !ok {
			add(SeverityWarning, "storage.kind", "unknown storage kind %q; ensure a matching backend is registered", kind)
		}
	}
	if strings.TrimSpace(cfg.Storage.DSN) == "" {
		add(SeverityError, "storage.dsn", "storage.dsn must not be empty")
	}
	if strings.TrimSpace(cfg.Storage.Table) == "" {
		add(SeverityWarning, "storage.table", "storage.table is empty; using the default table")
	}

	if _, err := cfg.Location(); err != nil {
		add(SeverityError, "timezone", "unknown time zone %q: %v", cfg.Timezone, err)
	}
	if cfg.WorkloadLimit < 1 {
		add(SeverityError, "workload_limit", "workload_limit must be >= 1, got %d", cfg.WorkloadLimit)
	}
	if cfg.MaxUploadBytes <= 0 {
		add(SeverityError, "max_upload_bytes", "max_upload_bytes must be > 0")
	}
	if cfg.UploadRate < 0 {
		add(SeverityError, "upload_rate", "upload_rate must not be negative")
	}
	if cfg.UploadRate > 0 && cfg.UploadBurst < 1 {
		add(SeverityError, "upload_burst", "upload_burst must be >= 1 when upload_rate is set")
	}
	if len(cfg.CORSOrigins) == 0 {
		add(SeverityWarning, "cors_origins", "no CORS origins configured; browsers on other origins will be refused")
	}

	issues = append(issues, validateMetrics(cfg.Metrics)...)
	return issues
}

func validateMetrics(m Metrics) []Issue {
	var issues []Issue
	switch m.Backend {
	case "", "none":
	case "prompush":
		if m.PushgatewayURL == "" {
			issues = append(issues, Issue{SeverityError, "metrics.pushgateway_url", "prompush backend requires a pushgateway URL"})
		} else if u, err := url.Parse(m.PushgatewayURL); err != nil || u.Scheme == "" || u.Host == "" {
			issues = append(issues, Issue{SeverityError, "metrics.pushgateway_url", fmt.Sprintf("invalid URL %q", m.PushgatewayURL)})
		}
		if m.FlushInterval <= 0 {
			issues = append(issues, Issue{SeverityWarning, "metrics.flush_interval", "no periodic flush; metrics are pushed only at shutdown"})
		}
	case "datadog":
		if m.DatadogAddr == "" {
			issues = append(issues, Issue{SeverityError, "metrics.datadog_addr", "datadog backend requires an agent address"})
		}
	default:
		issues = append(issues, Issue{SeverityWarning, "metrics.backend", fmt.Sprintf("unknown metrics backend %q; metrics disabled", m.Backend)})
	}
	return issues
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}
