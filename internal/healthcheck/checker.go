// Package healthcheck defines runtime checks reported by the ops server.
package healthcheck

import "context"

const (
	// StatusOK indicates check passed.
	StatusOK = "ok"
	// StatusWarn indicates check completed with warning.
	StatusWarn = "warn"
	// StatusError indicates check failed.
	StatusError = "error"
)

// CheckResult is one runtime check item produced by a checker.
type CheckResult struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Status  string `json:"status"`
	Summary string `json:"summary"`
	Detail  string `json:"detail,omitempty"`
}

// Checker evaluates one or more runtime checks.
type Checker interface {
	ListChecks(ctx context.Context) []CheckResult
}

// Run evaluates every checker and returns the results with the worst status.
func Run(ctx context.Context, checkers ...Checker) ([]CheckResult, string) {
	results := []CheckResult{}
	overall := StatusOK
	for _, c := range checkers {
		if c == nil {
			continue
		}
		for _, r := range c.ListChecks(ctx) {
			results = append(results, r)
			overall = worse(overall, r.Status)
		}
	}
	return results, overall
}

func worse(a, b string) string {
	if rank(b) > rank(a) {
		return b
	}
	return a
}

func rank(status string) int {
	switch status {
	case StatusOK:
		return 0
	case StatusWarn:
		return 1
	default:
		return 2
	}
}
