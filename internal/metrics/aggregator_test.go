package metrics_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/headline-goat/split-goat/internal/metrics"
	"github.com/headline-goat/split-goat/internal/store"
)

var at = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func mustEvent(t *testing.T, kind metrics.Kind, variantID string) metrics.Event {
	t.Helper()
	ev, err := metrics.NewEvent(kind, variantID, at)
	require.NoError(t, err)
	return ev
}

func TestParseKind(t *testing.T) {
	for _, name := range []string{"sent", "delivered", "opened", "clicked"} {
		k, err := metrics.ParseKind(name)
		require.NoError(t, err)
		assert.Equal(t, metrics.Kind(name), k)
	}

	for _, name := range []string{"assigned", "conversion", "bounced", ""} {
		_, err := metrics.ParseKind(name)
		assert.Error(t, err, name)
	}
}

func TestNewEventKinds(t *testing.T) {
	ev := mustEvent(t, metrics.KindOpened, "v1")
	assert.Equal(t, metrics.KindOpened, ev.Kind())
	assert.Equal(t, "v1", ev.VariantID())
	assert.Equal(t, at, ev.OccurredAt())

	_, err := metrics.NewEvent(metrics.KindConversion, "v1", at)
	assert.Error(t, err, "conversions are built with NewConversion")
}

func TestTally(t *testing.T) {
	events := []metrics.Event{
		mustEvent(t, metrics.KindAssigned, "a"),
		mustEvent(t, metrics.KindSent, "a"),
		mustEvent(t, metrics.KindSent, "a"),
		mustEvent(t, metrics.KindDelivered, "a"),
		mustEvent(t, metrics.KindOpened, "b"),
		mustEvent(t, metrics.KindClicked, "b"),
		metrics.NewConversion("b", "user-1", "qualified", nil, at),
		nil,
	}

	got := metrics.Tally(events...)
	assert.Equal(t, store.Counters{ParticipantsAssigned: 1, EmailsSent: 2, EmailsDelivered: 1}, got["a"])
	assert.Equal(t, store.Counters{EmailsOpened: 1, EmailsClicked: 1, Conversions: 1}, got["b"])
	assert.Len(t, got, 2)
}

func TestTallyIsOrderIndependent(t *testing.T) {
	a := mustEvent(t, metrics.KindSent, "v")
	b := mustEvent(t, metrics.KindOpened, "v")
	c := metrics.NewConversion("v", "s", "qualified", nil, at)

	assert.Equal(t, metrics.Tally(a, b, c), metrics.Tally(c, a, b))
}

func TestApply(t *testing.T) {
	variants := []*store.Variant{
		{ID: "a", Counters: store.Counters{ParticipantsAssigned: 10}},
		{ID: "b"},
	}

	metrics.Apply(variants,
		mustEvent(t, metrics.KindAssigned, "a"),
		mustEvent(t, metrics.KindSent, "b"),
		mustEvent(t, metrics.KindSent, "missing"),
	)

	assert.Equal(t, int64(11), variants[0].ParticipantsAssigned)
	assert.Equal(t, int64(1), variants[1].EmailsSent)
}

func TestConversionEventCarriesDetails(t *testing.T) {
	v := 42.0
	ev := metrics.NewConversion("v", "user-9", "purchase", &v, at)

	assert.Equal(t, metrics.KindConversion, ev.Kind())
	assert.Equal(t, "user-9", ev.SubjectID)
	assert.Equal(t, "purchase", ev.Type)
	require.NotNil(t, ev.Value)
	assert.Equal(t, 42.0, *ev.Value)
}
