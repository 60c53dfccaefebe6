package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/revuekit/revue/internal/cache"
	"github.com/revuekit/revue/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeRunner records per-worker start/end times and call counts, and
// simulates delay and failure per worker id.
type fakeRunner struct {
	mu          sync.Mutex
	delay       map[string]time.Duration
	fail        map[string]bool
	starts      map[string]time.Time
	ends        map[string]time.Time
	calls       map[string]int
	inFlight    int
	maxInFlight int
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		delay:  make(map[string]time.Duration),
		fail:   make(map[string]bool),
		starts: make(map[string]time.Time),
		ends:   make(map[string]time.Time),
		calls:  make(map[string]int),
	}
}

func (f *fakeRunner) Run(ctx context.Context, w types.Worker, files types.FileSet, iteration int) types.ExecutionResult {
	f.mu.Lock()
	if _, seen := f.starts[w.ID]; !seen {
		f.starts[w.ID] = time.Now()
	}
	f.calls[w.ID]++
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	d := f.delay[w.ID]
	shouldFail := f.fail[w.ID]
	f.mu.Unlock()

	time.Sleep(d)

	f.mu.Lock()
	f.ends[w.ID] = time.Now()
	f.inFlight--
	f.mu.Unlock()

	if shouldFail {
		return types.ExecutionResult{WorkerID: w.ID, WorkerName: w.DisplayName, Error: "worker exploded"}
	}
	return types.ExecutionResult{
		WorkerID:   w.ID,
		WorkerName: w.DisplayName,
		Issues: []types.Issue{
			{Level: types.LevelWarning, Message: "finding from " + w.ID, SourceWorkerID: w.ID, Type: "general"},
		},
		RawOutputDigest: "digest-" + w.ID,
		SandboxID:       "sb-" + w.ID,
	}
}

func (f *fakeRunner) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func worker(id string, tier types.Tier) types.Worker {
	return types.Worker{
		ID:          id,
		DisplayName: "Worker " + id,
		ModelTag:    "sonnet",
		Category:    types.CategoryCorrectness,
		Tier:        tier,
		Timeout:     time.Minute,
	}
}

func TestNew(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err, "runner is required")

	s, err := New(Config{Runner: newFakeRunner()})
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxConcurrency, s.maxConcurrency)
}

func TestTierOrderingStrict(t *testing.T) {
	f := newFakeRunner()
	f.delay["a"] = 50 * time.Millisecond
	f.delay["b"] = 50 * time.Millisecond
	f.delay["c"] = 50 * time.Millisecond

	s, err := New(Config{Runner: f})
	require.NoError(t, err)

	workers := []types.Worker{
		worker("a", types.TierCritical),
		worker("b", types.TierMedium),
		worker("c", types.TierMedium),
	}
	results := s.ExecuteAll(context.Background(), workers, nil, 1)
	require.Len(t, results, 3)

	// B and C only start after A's result is available.
	assert.False(t, f.starts["b"].Before(f.ends["a"]), "b must not start before a finishes")
	assert.False(t, f.starts["c"].Before(f.ends["a"]), "c must not start before a finishes")

	// B and C run concurrently: both begin before either completes.
	assert.True(t, f.starts["b"].Before(f.ends["c"]), "b must start before c completes")
	assert.True(t, f.starts["c"].Before(f.ends["b"]), "c must start before b completes")
}

func TestResultsPreserveInputOrder(t *testing.T) {
	f := newFakeRunner()
	// Make earlier-listed workers finish last.
	f.delay["m1"] = 80 * time.Millisecond
	f.delay["m2"] = 40 * time.Millisecond
	f.delay["m3"] = 5 * time.Millisecond

	s, err := New(Config{Runner: f})
	require.NoError(t, err)

	workers := []types.Worker{
		worker("m1", types.TierMedium),
		worker("m2", types.TierMedium),
		worker("m3", types.TierMedium),
	}
	results := s.ExecuteAll(context.Background(), workers, nil, 1)
	require.Len(t, results, 3)
	assert.Equal(t, "m1", results[0].WorkerID)
	assert.Equal(t, "m2", results[1].WorkerID)
	assert.Equal(t, "m3", results[2].WorkerID)
}

func TestFailureIsolation(t *testing.T) {
	f := newFakeRunner()
	f.fail["b"] = true

	s, err := New(Config{Runner: f})
	require.NoError(t, err)

	workers := []types.Worker{
		worker("a", types.TierCritical),
		worker("b", types.TierMedium),
		worker("c", types.TierMedium),
	}
	results := s.ExecuteAll(context.Background(), workers, nil, 1)
	require.Len(t, results, 3)

	for _, r := range results {
		hasOutcome := len(r.Issues) > 0 || r.Error != ""
		assert.True(t, hasOutcome, "worker %s must have issues or an error", r.WorkerID)
	}
	assert.Empty(t, results[0].Error)
	assert.Equal(t, "worker exploded", results[1].Error)
	assert.Empty(t, results[2].Error)
}

func TestConcurrencyCap(t *testing.T) {
	f := newFakeRunner()
	for i := 0; i < 6; i++ {
		f.delay[fmt.Sprintf("w%d", i)] = 20 * time.Millisecond
	}

	s, err := New(Config{Runner: f, MaxConcurrency: 2})
	require.NoError(t, err)

	var workers []types.Worker
	for i := 0; i < 6; i++ {
		workers = append(workers, worker(fmt.Sprintf("w%d", i), types.TierLow))
	}
	results := s.ExecuteAll(context.Background(), workers, nil, 1)
	require.Len(t, results, 6)

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.LessOrEqual(t, f.maxInFlight, 2, "tier fan-out must respect the concurrency cap")
}

func TestEmptyTiersSkipped(t *testing.T) {
	f := newFakeRunner()
	s, err := New(Config{Runner: f})
	require.NoError(t, err)

	workers := []types.Worker{
		worker("lo", types.TierLow),
		worker("crit", types.TierCritical),
	}
	results := s.ExecuteAll(context.Background(), workers, nil, 1)
	require.Len(t, results, 2)

	// Critical tier drains first even though it was listed second.
	assert.Equal(t, "crit", results[0].WorkerID)
	assert.Equal(t, "lo", results[1].WorkerID)
}

func TestNoWorkers(t *testing.T) {
	s, err := New(Config{Runner: newFakeRunner()})
	require.NoError(t, err)
	assert.Empty(t, s.ExecuteAll(context.Background(), nil, nil, 1))
}

func TestCacheHitSkipsRun(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.js")
	require.NoError(t, os.WriteFile(file, []byte("var x;"), 0644))

	f := newFakeRunner()
	c := cache.New()
	s, err := New(Config{Runner: f, Cache: c})
	require.NoError(t, err)

	workers := []types.Worker{
		worker("sec", types.TierCritical),
		worker("doc", types.TierLow),
	}
	files := types.FileSet{file}

	// First run executes both workers, critical first in the output.
	results := s.ExecuteAll(context.Background(), workers, files, 1)
	require.Len(t, results, 2)
	assert.Equal(t, "sec", results[0].WorkerID)
	assert.Equal(t, "doc", results[1].WorkerID)
	assert.Equal(t, 2, f.totalCalls())

	// Second identical call is served entirely from cache.
	results = s.ExecuteAll(context.Background(), workers, files, 1)
	require.Len(t, results, 2)
	assert.Equal(t, "sec", results[0].WorkerID)
	assert.Equal(t, "doc", results[1].WorkerID)
	assert.Equal(t, 2, f.totalCalls(), "second call must not spawn new runs")
	require.Len(t, results[0].Issues, 1)
}

func TestFailedRunsNotCached(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.js")
	require.NoError(t, os.WriteFile(file, []byte("var x;"), 0644))

	f := newFakeRunner()
	f.fail["flaky"] = true
	c := cache.New()
	s, err := New(Config{Runner: f, Cache: c})
	require.NoError(t, err)

	workers := []types.Worker{worker("flaky", types.TierHigh)}
	files := types.FileSet{file}

	s.ExecuteAll(context.Background(), workers, files, 1)
	s.ExecuteAll(context.Background(), workers, files, 1)
	assert.Equal(t, 2, f.calls["flaky"], "failed results must not be served from cache")
}

func TestCacheIterationSeparation(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.js")
	require.NoError(t, os.WriteFile(file, []byte("var x;"), 0644))

	f := newFakeRunner()
	c := cache.New()
	s, err := New(Config{Runner: f, Cache: c})
	require.NoError(t, err)

	workers := []types.Worker{worker("sec", types.TierCritical)}
	files := types.FileSet{file}

	s.ExecuteAll(context.Background(), workers, files, 1)
	s.ExecuteAll(context.Background(), workers, files, 2)
	assert.Equal(t, 2, f.calls["sec"], "different iterations must not share cache entries")
}
