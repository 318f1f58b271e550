package patterns

import (
	"sort"
	"strings"

	"runbook/internal/models"
	"runbook/internal/storage"
)

// failureWindow bounds how far back mining looks.
const failureWindow = 50

// maxExamples caps the representative messages kept per pattern.
const maxExamples = 5

// keywordRules is the classification ladder. Order is a contract:
// rules are tried top to bottom and the first hit wins, so a message
// containing both "timeout" and "connection" classifies as timeout.
var keywordRules = []struct {
	label    string
	keywords []string
}{
	{"timeout", []string{"timeout"}},
	{"network_error", []string{"connection", "network"}},
	{"permission_error", []string{"permission", "denied"}},
	{"not_found", []string{"not found", "404"}},
	{"rate_limit", []string{"rate limit", "429"}},
	{"auth_error", []string{"authentication", "401"}},
	{"syntax_error", []string{"syntax"}},
	{"dependency_error", []string{"import", "module"}},
}

// Classify maps an error message to exactly one pattern label. Messages
// matching no rule fall back to their lower-cased first token.
func Classify(message string) string {
	lower := strings.ToLower(message)
	for _, rule := range keywordRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.label
			}
		}
	}

	fields := strings.Fields(message)
	if len(fields) == 0 {
		return "unknown"
	}
	return strings.ToLower(fields[0])
}

// Find groups failed results by classified root cause and returns the
// patterns seen at least minCount times, most frequent first. Results
// without an error message are skipped. Deterministic for a fixed
// input: ties keep encounter order.
func Find(results []*models.ExecutionResult, minCount int) []models.FailurePattern {
	if minCount < 1 {
		minCount = 1
	}

	buckets := make(map[string]*models.FailurePattern)
	var order []string

	for _, res := range results {
		if res.ErrorMessage == "" {
			continue
		}

		label := Classify(res.ErrorMessage)
		p, ok := buckets[label]
		if !ok {
			p = &models.FailurePattern{
				PatternType: label,
				LastSeen:    res.StartedAt,
			}
			buckets[label] = p
			order = append(order, label)
		}

		p.Count++
		if len(p.ErrorMessages) < maxExamples {
			p.ErrorMessages = append(p.ErrorMessages, res.ErrorMessage)
		}
		if res.StartedAt.After(p.LastSeen) {
			p.LastSeen = res.StartedAt
		}
	}

	// Survivors are collected in encounter order; the stable sort
	// keeps that order for equal counts.
	var found []models.FailurePattern
	for _, label := range order {
		if p := buckets[label]; p.Count >= minCount {
			found = append(found, *p)
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].Count > found[j].Count
	})

	return found
}

// Miner mines the history store for recurring failure signatures.
type Miner struct {
	store *storage.Storage
}

func NewMiner(store *storage.Storage) *Miner {
	return &Miner{store: store}
}

// ForWorkflow analyzes the most recent failed and timed-out executions
// of one workflow.
func (m *Miner) ForWorkflow(workflowName string, minCount int) ([]models.FailurePattern, error) {
	failures, err := m.store.QueryExecutions(storage.QueryOptions{
		WorkflowName: workflowName,
		Statuses:     []models.ExecStatus{models.ExecStatusFailed, models.ExecStatusTimeout},
		Limit:        failureWindow,
	})
	if err != nil {
		return nil, err
	}
	return Find(failures, minCount), nil
}
