package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-gateway/internal/domain/cart"
	"github.com/your-org/storefront-gateway/internal/domain/catalog"
)

type stubProducts map[int64]*catalog.Product

func (s stubProducts) Product(_ context.Context, id int64) (*catalog.Product, error) {
	if p, ok := s[id]; ok {
		return p, nil
	}
	return nil, errors.New("not found")
}

func newCartRouter(t *testing.T) (http.Handler, *cart.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	logger, _ := test.NewNullLogger()
	store := cart.NewStore(rdb, time.Hour, logger)
	products := stubProducts{
		7: {ID: 7, Name: "Mug", Price: decimal.RequireFromString("19.99")},
	}
	h := NewCartHandler(store, products, logger)

	r := newRouter()
	r.GET("/cart", h.GetCart)
	r.DELETE("/cart", h.ClearCart)
	r.POST("/cart/items", h.AddItem)
	r.PUT("/cart/items/:productId", h.UpdateItem)
	r.DELETE("/cart/items/:productId", h.RemoveItem)
	return r, store
}

func cartCount(body map[string]interface{}) float64 {
	data := body["data"].(map[string]interface{})
	return data["count"].(float64)
}

func TestAddItem_DefaultsToOne(t *testing.T) {
	r, store := newCartRouter(t)

	w := doJSON(t, r, http.MethodPost, "/cart/items", gin.H{"productId": 7})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), cartCount(decode(t, w)))

	w = doJSON(t, r, http.MethodPost, "/cart/items", gin.H{"productId": 7, "quantity": 2})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), cartCount(decode(t, w)))

	lines, err := store.Read(context.Background(), testSessionID)
	require.NoError(t, err)
	assert.Equal(t, []cart.Line{{ProductID: 7, Quantity: 3}}, lines)
}

func TestAddItem_RejectsInvalidInput(t *testing.T) {
	r, _ := newCartRouter(t)

	assert.Equal(t, http.StatusBadRequest, doJSON(t, r, http.MethodPost, "/cart/items", gin.H{"productId": 0}).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(t, r, http.MethodPost, "/cart/items", gin.H{"productId": 7, "quantity": 0}).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(t, r, http.MethodPost, "/cart/items", nil).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(t, r, http.MethodPost, "/cart/items", gin.H{"productId": 7, "quantity": 1000}).Code)
}

func TestAddItem_PastLineCapKeepsLine(t *testing.T) {
	r, store := newCartRouter(t)

	w := doJSON(t, r, http.MethodPost, "/cart/items", gin.H{"productId": 7, "quantity": cart.MaxLineQuantity})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/cart/items", gin.H{"productId": 7, "quantity": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	lines, err := store.Read(context.Background(), testSessionID)
	require.NoError(t, err)
	assert.Equal(t, []cart.Line{{ProductID: 7, Quantity: cart.MaxLineQuantity}}, lines)
}

func TestUpdateItem_ClampsToOne(t *testing.T) {
	r, _ := newCartRouter(t)
	doJSON(t, r, http.MethodPost, "/cart/items", gin.H{"productId": 7, "quantity": 4})

	w := doJSON(t, r, http.MethodPut, "/cart/items/7", gin.H{"quantity": -3})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), cartCount(decode(t, w)))

	doJSON(t, r, http.MethodPut, "/cart/items/7", gin.H{"quantity": 5})
	w = doJSON(t, r, http.MethodPut, "/cart/items/7", gin.H{"quantity": 0})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), cartCount(decode(t, w)))

	assert.Equal(t, http.StatusBadRequest, doJSON(t, r, http.MethodPut, "/cart/items/7", gin.H{}).Code)

	assert.Equal(t, http.StatusBadRequest, doJSON(t, r, http.MethodPut, "/cart/items/abc", gin.H{"quantity": 2}).Code)
}

func TestRemoveItemAndClear(t *testing.T) {
	r, store := newCartRouter(t)
	doJSON(t, r, http.MethodPost, "/cart/items", gin.H{"productId": 7})
	doJSON(t, r, http.MethodPost, "/cart/items", gin.H{"productId": 8})

	w := doJSON(t, r, http.MethodDelete, "/cart/items/7", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), cartCount(decode(t, w)))

	w = doJSON(t, r, http.MethodDelete, "/cart", nil)
	require.Equal(t, http.StatusOK, w.Code)

	lines, err := store.Read(context.Background(), testSessionID)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestGetCart_JoinsCatalogData(t *testing.T) {
	r, _ := newCartRouter(t)
	doJSON(t, r, http.MethodPost, "/cart/items", gin.H{"productId": 7, "quantity": 2})
	doJSON(t, r, http.MethodPost, "/cart/items", gin.H{"productId": 99})

	w := doJSON(t, r, http.MethodGet, "/cart", nil)
	require.Equal(t, http.StatusOK, w.Code)

	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(3), data["count"])
	assert.Equal(t, "39.98", data["estimatedTotal"])

	lines := data["lines"].([]interface{})
	require.Len(t, lines, 2)
	assert.Equal(t, "Mug", lines[0].(map[string]interface{})["name"])
	assert.Equal(t, false, lines[1].(map[string]interface{})["available"])
}
