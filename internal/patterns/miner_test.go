package patterns

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"runbook/internal/models"
	"runbook/internal/storage"
)

func TestClassify(t *testing.T) {
	cases := map[string]string{
		"Connection timeout":               "timeout",
		"Request timeout":                  "timeout",
		"connection refused":               "network_error",
		"Permission denied":                "permission_error",
		"file not found":                   "not_found",
		"HTTP 404 from upstream":           "not_found",
		"rate limit exceeded":              "rate_limit",
		"server returned 429":              "rate_limit",
		"authentication failed":            "auth_error",
		"SyntaxError: invalid syntax":      "syntax_error",
		"ModuleNotFoundError: no module":   "dependency_error",
		"ImportError: cannot import name":  "dependency_error",
		"Segfault in worker":               "segfault",
	}

	for msg, want := range cases {
		assert.Equal(t, want, Classify(msg), "message: %q", msg)
	}
}

func TestClassify_FirstMatchWins(t *testing.T) {
	// Contains both "timeout" and "connection"; the timeout rule runs
	// first.
	assert.Equal(t, "timeout", Classify("connection timeout while dialing"))
}

func failedAt(msg string, at time.Time) *models.ExecutionResult {
	return &models.ExecutionResult{
		WorkflowName: "deploy",
		Status:       models.ExecStatusFailed,
		StartedAt:    at,
		ErrorMessage: msg,
	}
}

func TestFind_GroupsAndFilters(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	results := []*models.ExecutionResult{
		failedAt("Connection timeout", base),
		failedAt("Request timeout", base.Add(time.Minute)),
		failedAt("Permission denied", base.Add(2*time.Minute)),
	}

	found := Find(results, 2)

	require.Len(t, found, 1)
	assert.Equal(t, "timeout", found[0].PatternType)
	assert.Equal(t, 2, found[0].Count)
	assert.Equal(t, base.Add(time.Minute), found[0].LastSeen)
	assert.Equal(t, []string{"Connection timeout", "Request timeout"}, found[0].ErrorMessages)
}

func TestFind_SkipsEmptyMessages(t *testing.T) {
	base := time.Now()
	results := []*models.ExecutionResult{
		failedAt("", base),
		failedAt("", base),
		failedAt("timeout", base),
	}

	found := Find(results, 1)

	require.Len(t, found, 1)
	assert.Equal(t, "timeout", found[0].PatternType)
	assert.Equal(t, 1, found[0].Count)
}

func TestFind_SortsByCountDescending(t *testing.T) {
	base := time.Now()
	var results []*models.ExecutionResult
	for i := 0; i < 2; i++ {
		results = append(results, failedAt("Permission denied", base))
	}
	for i := 0; i < 4; i++ {
		results = append(results, failedAt("Request timeout", base))
	}

	found := Find(results, 2)

	require.Len(t, found, 2)
	assert.Equal(t, "timeout", found[0].PatternType)
	assert.Equal(t, "permission_error", found[1].PatternType)
}

func TestFind_TiesKeepEncounterOrder(t *testing.T) {
	base := time.Now()
	results := []*models.ExecutionResult{
		failedAt("Permission denied", base),
		failedAt("Request timeout", base),
		failedAt("Permission denied", base),
		failedAt("Request timeout", base),
	}

	found := Find(results, 2)

	require.Len(t, found, 2)
	assert.Equal(t, "permission_error", found[0].PatternType)
	assert.Equal(t, "timeout", found[1].PatternType)
}

func TestFind_CapsExamplesAtFive(t *testing.T) {
	base := time.Now()
	var results []*models.ExecutionResult
	for i := 0; i < 8; i++ {
		results = append(results, failedAt(fmt.Sprintf("timeout %d", i), base))
	}

	found := Find(results, 2)

	require.Len(t, found, 1)
	assert.Equal(t, 8, found[0].Count)
	assert.Len(t, found[0].ErrorMessages, 5)
	assert.Equal(t, "timeout 0", found[0].ErrorMessages[0])
}

func TestMiner_ForWorkflow(t *testing.T) {
	store, err := storage.New(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer store.Close()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	save := func(status models.ExecStatus, msg string, at time.Time) {
		_, err := store.SaveExecution(&models.ExecutionResult{
			ExecutionID:  "e",
			WorkflowName: "deploy",
			Status:       status,
			StartedAt:    at,
			ErrorMessage: msg,
		})
		require.NoError(t, err)
	}

	save(models.ExecStatusFailed, "Connection timeout", base)
	save(models.ExecStatusTimeout, "execution timed out after 5s", base.Add(time.Minute))
	save(models.ExecStatusFailed, "Permission denied", base.Add(2*time.Minute))
	save(models.ExecStatusSuccess, "", base.Add(3*time.Minute))

	miner := NewMiner(store)
	found, err := miner.ForWorkflow("deploy", 2)
	require.NoError(t, err)

	// Distinct timeout status still counts as a failure for mining.
	require.Len(t, found, 1)
	assert.Equal(t, "timeout", found[0].PatternType)
	assert.Equal(t, 2, found[0].Count)
}
