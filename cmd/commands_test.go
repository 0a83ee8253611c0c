package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		mergeExistingPath, mergeIncomingPath, mergeDomain, mergeFinalize = "", "", "", false
		starsFile, starsDomain = "", ""
		importDeadLetter = false
		exportOut, exportPrefix = "", ""
	})
}

func TestMergeCommand(t *testing.T) {
	dir := setupCLI(t)
	resetFlags(t)

	existing := writeFile(t, dir, "existing.json", `{
		"id": "c1",
		"normalized_domain": "acme.com",
		"tagline": "Old",
		"rating": {"star4": {"value": 1}}
	}`)
	incoming := writeFile(t, dir, "incoming.yaml", "tagline: New\nrating:\n  star4:\n    value: 0\n")

	out, err := runCLI(t, "merge", "--existing", existing, "--incoming", incoming)
	require.NoError(t, err)

	var merged map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &merged))
	assert.Equal(t, "c1", merged["id"])
	assert.Equal(t, "New", merged["tagline"])
	assert.Equal(t, map[string]any{"value": float64(1)}, merged["rating"].(map[string]any)["star4"])
	assert.NotContains(t, merged, "profile_completeness")
}

func TestMergeCommand_Finalize(t *testing.T) {
	dir := setupCLI(t)
	resetFlags(t)

	incoming := writeFile(t, dir, "incoming.json", `{"tagline": "Widgets", "review_count": 3}`)

	out, err := runCLI(t, "merge", "--incoming", incoming, "--domain", "acme.com", "--finalize")
	require.NoError(t, err)

	var merged map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &merged))
	assert.Equal(t, "acme.com", merged["normalized_domain"])
	assert.Equal(t, "auto", merged["reviews_star_source"])
	assert.Equal(t, float64(35), merged["profile_completeness"])
}

func TestStarsCommand_File(t *testing.T) {
	dir := setupCLI(t)
	resetFlags(t)

	signals := writeFile(t, dir, "signals.json", `{
		"hqEligible": true,
		"approvedEditorialReviews": 1,
		"overrides": {"hq": "suppress"},
		"manualExtra": 5
	}`)

	out, err := runCLI(t, "stars", "--file", signals)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"autoSubtotal": 1,
		"manualExtra": 2,
		"final": 3,
		"reasons": ["review"],
		"overrides": {"hq": "suppress", "manufacturing": null, "review": null},
		"tooltip": ["✗ HQ", "✗ Manufacturing", "✓ Reviews"]
	}`, out)
}

func TestStarsCommand_RequiresOneSource(t *testing.T) {
	setupCLI(t)
	resetFlags(t)

	_, err := runCLI(t, "stars")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one of --file or --domain")
}

func TestStarsCommand_DomainIgnoresImportSettings(t *testing.T) {
	dir := setupCLI(t)
	resetFlags(t)

	_, err := runCLI(t, "migrate")
	require.NoError(t, err)
	_, err = runCLI(t, "import", writeFile(t, dir, "acme.json", `{"normalized_domain": "acme.com", "headquarters_location": "Austin, TX"}`))
	require.NoError(t, err)

	// A read-only report does not need a usable import configuration.
	t.Setenv("DIRECTORY_IMPORT_CONCURRENCY", "0")
	t.Setenv("DIRECTORY_IMPORT_RATE_PER_SECOND", "0")

	out, err := runCLI(t, "stars", "--domain", "acme.com")
	require.NoError(t, err)
	assert.Contains(t, out, `"hq"`)

	_, err = runCLI(t, "import", filepath.Join(dir, "acme.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "import.concurrency must be between 1 and 64")
}

func TestImportExportRestore(t *testing.T) {
	dir := setupCLI(t)
	resetFlags(t)

	_, err := runCLI(t, "migrate")
	require.NoError(t, err)

	writeFile(t, dir, "docs/acme.json", `{"normalized_domain": "acme.com", "company_name": "Acme", "headquarters_location": "Austin, TX"}`)
	writeFile(t, dir, "docs/beta.yaml", "normalized_domain: beta.io\ntagline: Beta things\n")

	out, err := runCLI(t, "import", filepath.Join(dir, "docs"))
	require.NoError(t, err)
	assert.Contains(t, out, "created acme.com (v1, 1 attempt(s))")
	assert.Contains(t, out, "created beta.io (v1, 1 attempt(s))")

	// Re-importing merges into the stored documents.
	writeFile(t, dir, "update.json", `{"normalized_domain": "acme.com", "tagline": "Widgets"}`)
	out, err = runCLI(t, "import", filepath.Join(dir, "update.json"))
	require.NoError(t, err)
	assert.Contains(t, out, "updated acme.com (v2, 1 attempt(s))")

	out, err = runCLI(t, "stars", "--domain", "acme.com")
	require.NoError(t, err)
	assert.Contains(t, out, `"hq"`)
	starsDomain = ""

	snapshot := filepath.Join(dir, "snapshot.jsonl")
	_, err = runCLI(t, "export", "--out", snapshot)
	require.NoError(t, err)

	data, err := os.ReadFile(snapshot)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"tagline":"Widgets"`)
	assert.Contains(t, lines[0], `"company_name":"Acme"`)

	_, err = runCLI(t, "restore", snapshot)
	require.NoError(t, err)

	out, err = runCLI(t, "dlq", "count")
	require.NoError(t, err)
	assert.Equal(t, "0\n", out)
}

func TestImportCommand_FailuresDeadLettered(t *testing.T) {
	dir := setupCLI(t)
	resetFlags(t)

	_, err := runCLI(t, "migrate")
	require.NoError(t, err)

	doc := writeFile(t, dir, "nodomain.json", `{"company_name": "No Domain"}`)
	out, err := runCLI(t, "import", "--dead-letter", doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 documents failed")
	assert.Contains(t, out, "FAIL  #1")

	// Invalid input is not worth replaying, so nothing was parked.
	out, err = runCLI(t, "dlq", "count")
	require.NoError(t, err)
	assert.Equal(t, "0\n", out)
}

func TestHealthCommand(t *testing.T) {
	setupCLI(t)
	resetFlags(t)

	_, err := runCLI(t, "migrate")
	require.NoError(t, err)

	out, err := runCLI(t, "health")
	require.NoError(t, err)

	var got struct {
		Snapshot struct {
			StoreHealthy bool `json:"store_healthy"`
			Companies    int  `json:"companies"`
		} `json:"snapshot"`
		Alerts []any `json:"alerts"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.True(t, got.Snapshot.StoreHealthy)
	assert.Zero(t, got.Snapshot.Companies)
	assert.Empty(t, got.Alerts)
}
