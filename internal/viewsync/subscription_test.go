package viewsync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart_aquarium/internal/store"
)

func TestSubscription_DeliversInOrderUntilUnsubscribed(t *testing.T) {
	fs := newFakeStore()
	fs.leaky = true
	var got []any
	sub, err := Subscribe(fs, "aquarium/sensors", func(s store.Snapshot) { got = append(got, s.Value) })
	require.NoError(t, err)
	assert.Equal(t, "aquarium/sensors", sub.Path())

	fs.deliver("aquarium/sensors", 1)
	fs.deliver("aquarium/sensors", 2)
	sub.Unsubscribe()
	sub.Unsubscribe()
	fs.deliver("aquarium/sensors", 3)

	assert.Equal(t, []any{1, 2}, got)
	assert.Equal(t, 1, fs.cancels)
}

func TestSubscription_IndependentPerSubscriber(t *testing.T) {
	fs := newFakeStore()
	var a, b int
	subA, err := Subscribe(fs, "p", func(store.Snapshot) { a++ })
	require.NoError(t, err)
	_, err = Subscribe(fs, "p", func(store.Snapshot) { b++ })
	require.NoError(t, err)

	fs.deliver("p", 1)
	subA.Unsubscribe()
	fs.deliver("p", 2)

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
}

func TestScope_CloseReleasesEverything(t *testing.T) {
	fs := newFakeStore()
	sc := &Scope{}
	for _, p := range []string{"a", "b", "c"} {
		require.NoError(t, sc.Subscribe(fs, p, func(store.Snapshot) {}))
	}
	assert.Equal(t, 3, sc.Len())

	sc.Close()
	sc.Close()
	assert.Equal(t, 0, fs.live())
	assert.Equal(t, 3, fs.cancels)
	assert.Equal(t, 0, sc.Len())

	assert.ErrorIs(t, sc.Subscribe(fs, "d", func(store.Snapshot) {}), ErrUnmounted)
}
