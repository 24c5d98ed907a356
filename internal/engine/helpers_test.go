package engine_test

import (
	"context"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/headline-goat/split-goat/internal/engine"
	"github.com/headline-goat/split-goat/internal/store"
	"github.com/headline-goat/split-goat/internal/testutil"
)

type harness struct {
	engine   *engine.Engine
	store    store.Store
	clock    *testutil.Clock
	metrics  *engine.Metrics
	notifier *recordingNotifier
	logs     *observer.ObservedLogs
}

func newHarness(t *testing.T, s store.Store) *harness {
	t.Helper()

	core, logs := observer.New(zap.DebugLevel)
	h := &harness{
		store:    s,
		clock:    testutil.NewClock(testutil.Epoch),
		metrics:  engine.NewMetrics(prometheus.NewRegistry()),
		notifier: &recordingNotifier{},
		logs:     logs,
	}
	h.engine = engine.New(engine.StoreCollaborators(s),
		engine.WithLogger(zap.New(core)),
		engine.WithMetrics(h.metrics),
		engine.WithNotifier(h.notifier),
		engine.WithClock(h.clock.Now),
	)
	return h
}

func newMemoryHarness(t *testing.T) *harness {
	return newHarness(t, store.NewMemoryStore())
}

type recordingNotifier struct {
	mu         sync.Mutex
	results    []*store.StatisticalResult
	promotions []engine.Promotion
}

func (n *recordingNotifier) ResultRecorded(_ context.Context, r *store.StatisticalResult) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.results = append(n.results, r)
	return nil
}

func (n *recordingNotifier) WinnerPromoted(_ context.Context, p engine.Promotion) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.promotions = append(n.promotions, p)
	return nil
}

func (n *recordingNotifier) Promotions() []engine.Promotion {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]engine.Promotion(nil), n.promotions...)
}

func ptr[T any](v T) *T {
	return &v
}
