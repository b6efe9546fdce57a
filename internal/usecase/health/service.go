package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure; the pipeline still answers with fewer stages.
	Degraded Status = "degraded"
	// Unhealthy indicates every configured component failed.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Probe names an availability probe in the report.
type Probe struct {
	Name   string
	Target Prober
}

// Service coordinates health checks.
type Service struct {
	db        DBPinger
	embedding EmbeddingChecker
	probes    []Probe
}

// New creates a Service. db and embedding can be nil; probes with a nil target are skipped.
func New(db DBPinger, embedding EmbeddingChecker, probes ...Probe) *Service {
	return &Service{db: db, embedding: embedding, probes: probes}
}

// Check runs health checks against all configured components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if s.db != nil {
		checks["database"] = result(s.db.Ping(ctx) == nil)
	}
	if s.embedding != nil {
		checks["embedding"] = result(s.embedding.HealthCheck(ctx) == nil)
	}
	for _, p := range s.probes {
		if p.Target == nil {
			continue
		}
		checks[p.Name] = result(p.Target.Available())
	}

	failed := 0
	for _, v := range checks {
		if v == CheckError {
			failed++
		}
	}

	status := Healthy
	switch {
	case failed > 0 && failed == len(checks):
		status = Unhealthy
	case failed > 0:
		status = Degraded
	}
	return Report{Status: status, Checks: checks}
}

func result(ok bool) CheckResult {
	if ok {
		return CheckOK
	}
	return CheckError
}
