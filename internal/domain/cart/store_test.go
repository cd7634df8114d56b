package cart

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-gateway/internal/domain/catalog"
)

const sid = "3b7c2f0e-1111-4a4a-9c9c-000000000001"

func setupStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	logger, _ := test.NewNullLogger()
	return NewStore(client, time.Hour, logger), mr
}

func cartKey() string {
	return "storefront:session:" + sid + ":cartItems"
}

func TestAddLine_TwiceMergesIntoOneLine(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	_, err := store.AddLine(ctx, sid, 1, 1)
	require.NoError(t, err)
	lines, err := store.AddLine(ctx, sid, 1, 1)
	require.NoError(t, err)

	assert.Equal(t, []Line{{ProductID: 1, Quantity: 2}}, lines)

	read, err := store.Read(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, lines, read)
}

func TestAddLine_PersistsJSONArray(t *testing.T) {
	store, mr := setupStore(t)

	_, err := store.AddLine(context.Background(), sid, 7, 3)
	require.NoError(t, err)

	raw, err := mr.Get(cartKey())
	require.NoError(t, err)
	assert.JSONEq(t, `[{"productId":7,"quantity":3}]`, raw)
	assert.Equal(t, time.Hour, mr.TTL(cartKey()))
}

func TestAddLine_RejectsInvalidInput(t *testing.T) {
	store, _ := setupStore(t)

	_, err := store.AddLine(context.Background(), sid, 0, 1)
	assert.ErrorIs(t, err, ErrInvalidProduct)

	_, err = store.AddLine(context.Background(), sid, 1, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = store.AddLine(context.Background(), sid, 1, math.MaxInt)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestAddLine_PastCapIsRejectedAndLineKept(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	_, err := store.AddLine(ctx, sid, 1, MaxLineQuantity)
	require.NoError(t, err)

	_, err = store.AddLine(ctx, sid, 1, 1)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	lines, err := store.Read(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, []Line{{ProductID: 1, Quantity: MaxLineQuantity}}, lines)
}

func TestRead_CapsStoredQuantities(t *testing.T) {
	store, mr := setupStore(t)
	require.NoError(t, mr.Set(cartKey(), `[{"productId":1,"quantity":9223372036854775807},{"productId":2,"quantity":600},{"productId":2,"quantity":600}]`))

	lines, err := store.Read(context.Background(), sid)
	require.NoError(t, err)
	assert.Equal(t, []Line{
		{ProductID: 1, Quantity: MaxLineQuantity},
		{ProductID: 2, Quantity: MaxLineQuantity},
	}, lines)
}

func TestRemoveLine_AbsentIsNoop(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	_, err := store.AddLine(ctx, sid, 1, 2)
	require.NoError(t, err)

	lines, err := store.RemoveLine(ctx, sid, 99)
	require.NoError(t, err)
	assert.Equal(t, []Line{{ProductID: 1, Quantity: 2}}, lines)

	lines, err = store.RemoveLine(ctx, sid, 1)
	require.NoError(t, err)
	assert.Empty(t, lines)

	_, err = store.RemoveLine(ctx, sid, 1)
	require.NoError(t, err)
}

func TestSetQuantity_ClampsToOne(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	_, err := store.AddLine(ctx, sid, 5, 4)
	require.NoError(t, err)

	lines, err := store.SetQuantity(ctx, sid, 5, 0)
	require.NoError(t, err)
	assert.Equal(t, []Line{{ProductID: 5, Quantity: 1}}, lines)

	lines, err = store.SetQuantity(ctx, sid, 5, -3)
	require.NoError(t, err)
	assert.Equal(t, []Line{{ProductID: 5, Quantity: 1}}, lines)

	lines, err = store.SetQuantity(ctx, sid, 5, 6)
	require.NoError(t, err)
	assert.Equal(t, []Line{{ProductID: 5, Quantity: 6}}, lines)

	lines, err = store.SetQuantity(ctx, sid, 5, math.MaxInt)
	require.NoError(t, err)
	assert.Equal(t, []Line{{ProductID: 5, Quantity: MaxLineQuantity}}, lines)
}

func TestRead_CorruptDataIsEmpty(t *testing.T) {
	store, mr := setupStore(t)
	ctx := context.Background()

	require.NoError(t, mr.Set(cartKey(), "{not json"))

	lines, err := store.Read(ctx, sid)
	require.NoError(t, err)
	assert.Empty(t, lines)

	lines, err = store.AddLine(ctx, sid, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, []Line{{ProductID: 2, Quantity: 1}}, lines)
}

func TestRead_NormalizesDuplicates(t *testing.T) {
	store, mr := setupStore(t)

	require.NoError(t, mr.Set(cartKey(), `[{"productId":1,"quantity":1},{"productId":2,"quantity":0},{"productId":1,"quantity":2}]`))

	lines, err := store.Read(context.Background(), sid)
	require.NoError(t, err)
	assert.Equal(t, []Line{{ProductID: 1, Quantity: 3}}, lines)
}

func TestClear_RemovesKey(t *testing.T) {
	store, mr := setupStore(t)
	ctx := context.Background()

	_, err := store.AddLine(ctx, sid, 1, 1)
	require.NoError(t, err)
	require.NoError(t, store.Clear(ctx, sid))

	assert.False(t, mr.Exists(cartKey()))
	count, err := store.Count(ctx, sid)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSubscribe_ReceivesCartChanged(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	sub, err := store.Subscribe(ctx, sid)
	require.NoError(t, err)
	defer sub.Close()

	_, err = store.AddLine(ctx, sid, 1, 2)
	require.NoError(t, err)

	select {
	case ev := <-sub.Events():
		assert.Equal(t, EventCartChanged, ev.Type)
		assert.Equal(t, sid, ev.SessionID)
		assert.Equal(t, 2, ev.Count)
		assert.Equal(t, []Line{{ProductID: 1, Quantity: 2}}, ev.Lines)
	case <-time.After(2 * time.Second):
		t.Fatal("no cart-changed event received")
	}

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
}

type fakeProducts map[int64]*catalog.Product

func (f fakeProducts) Product(_ context.Context, id int64) (*catalog.Product, error) {
	if p, ok := f[id]; ok {
		return p, nil
	}
	return nil, errors.New("not found")
}

func TestView_EstimatesFromCatalog(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	_, err := store.AddLine(ctx, sid, 1, 2)
	require.NoError(t, err)
	_, err = store.AddLine(ctx, sid, 2, 1)
	require.NoError(t, err)

	view, err := store.View(ctx, sid, fakeProducts{
		1: {ID: 1, Name: "Mug", Price: decimal.RequireFromString("19.99")},
	})
	require.NoError(t, err)

	require.Len(t, view.Lines, 2)
	assert.True(t, view.Lines[0].Available)
	assert.Equal(t, "39.98", view.Lines[0].LineTotal.String())
	assert.False(t, view.Lines[1].Available)
	assert.Equal(t, 3, view.Count)
	assert.Equal(t, "39.98", view.EstimatedTotal.String())
	assert.False(t, view.Authoritative)
}

func TestAddLine_ConcurrentMutationsAreNotLost(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.AddLine(ctx, sid, 5, 1)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrConcurrentUpdate)
		}()
	}
	wg.Wait()

	lines, err := store.Read(ctx, sid)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, succeeded, lines[0].Quantity)
}
