package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/itineraryconcierge/internal/adapters/cache"
	"github.com/zatekoja/itineraryconcierge/internal/adapters/events"
	"github.com/zatekoja/itineraryconcierge/internal/adapters/store"
	"github.com/zatekoja/itineraryconcierge/internal/application/services"
	"github.com/zatekoja/itineraryconcierge/internal/bootstrap"
)

const lisbon = `{"itinerary":{"destination":"Lisbon","schedule":[{"day":1,"activities":[{"time":"09:00","activity":"Belém Tower"}]}]}}`

// useMemoryEngine points every command at one shared in-process store.
func useMemoryEngine(t *testing.T) *cache.MemoryAdapter {
	t.Helper()
	backing := cache.NewMemoryAdapter(time.Minute)
	planStore := store.NewPlanStore(backing, time.Hour)

	previous := openEngine
	openEngine = func(ctx context.Context) (*bootstrap.Engine, error) {
		bus := events.NewMemoryEventBus()
		return &bootstrap.Engine{
			Cache:  backing,
			Store:  planStore,
			Events: bus,
			Plans:  services.NewPlanService(planStore, services.NewPlanKeyResolver([]string{"current"}), bus),
		}, nil
	}
	t.Cleanup(func() { openEngine = previous })
	return backing
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&out)
	RootCmd.SetIn(strings.NewReader(stdin))
	RootCmd.SetArgs(args)
	err := RootCmd.Execute()
	return out.String(), err
}

func TestResolve_PrintsKeys(t *testing.T) {
	useMemoryEngine(t)

	out, err := run(t, "", "resolve", "current")
	require.NoError(t, err)

	var keys services.PlanKeys
	require.NoError(t, json.Unmarshal([]byte(out), &keys))
	assert.Equal(t, "travel_plan:current", keys.PlanKey)
	assert.Equal(t, "chat_history:current", keys.HistoryKey)
	assert.True(t, keys.Sentinel)
}

func TestSeedThenShow(t *testing.T) {
	useMemoryEngine(t)

	out, err := run(t, lisbon, "seed", "trip-1", "--file", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "seeded trip-1 at version 1")

	out, err = run(t, "", "show", "trip-1")
	require.NoError(t, err)

	var shown struct {
		PlanKey string `json:"planKey"`
		Version int64  `json:"version"`
		Plan    struct {
			Itinerary struct {
				Destination string `json:"destination"`
			} `json:"itinerary"`
		} `json:"plan"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	assert.Equal(t, "travel_plan:trip-1", shown.PlanKey)
	assert.Equal(t, int64(1), shown.Version)
	assert.Equal(t, "Lisbon", shown.Plan.Itinerary.Destination)
}

func TestShow_MissingPlan(t *testing.T) {
	useMemoryEngine(t)

	_, err := run(t, "", "show", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSeed_RejectsInvalidJSON(t *testing.T) {
	useMemoryEngine(t)

	_, err := run(t, "{not json", "seed", "trip-2", "--file", "-")
	require.Error(t, err)
}

func TestMigrate_CopiesLegacyKey(t *testing.T) {
	backing := useMemoryEngine(t)
	legacy := "0123456789abcdef0123456789abcdef"
	require.NoError(t, backing.Set(context.Background(), legacy, []byte(lisbon), 0))

	out, err := run(t, "", "migrate", legacy, "trip-3")
	require.Error(t, err, "trip-3 has no plan under any key")
	assert.Contains(t, out, legacy+"\tmigrated")
	assert.Contains(t, out, "trip-3\terror:")

	exists, err := backing.Exists(context.Background(), "travel_plan:"+legacy)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestHistory_EmptyLog(t *testing.T) {
	useMemoryEngine(t)

	_, err := run(t, lisbon, "seed", "trip-4")
	require.NoError(t, err)

	out, err := run(t, "", "history", "trip-4", "--limit", "5")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", strings.TrimSpace(out))
}

func TestChat_RequiresModel(t *testing.T) {
	useMemoryEngine(t)

	_, err := run(t, "", "chat", "trip-5", "--message", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no generative model")
}

func TestEvaluate_ShippedGoldenSet(t *testing.T) {
	out, err := run(t, "", "evaluate", "--golden", "../../config/golden_messages.json")
	require.NoError(t, err)
	assert.Contains(t, out, `"RetrievalAccuracy": 1`)
}

func TestEvaluate_FailsGuardrail(t *testing.T) {
	path := t.TempDir() + "/golden.json"
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"m1","message":"move lunch to noon","needs_retrieval":true,"difficulty":"easy"}]`), 0o644))

	_, err := run(t, "", "evaluate", "--golden", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retrieval accuracy")
}
