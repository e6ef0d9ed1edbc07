package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestMoney_Discounted(t *testing.T) {
	tests := []struct {
		price    string
		discount float64
		want     string
	}{
		{"100.00", 10, "90.00"},
		{"100.00", 0, "100.00"},
		{"100.00", 100, "0.00"},
		{"5.25", 15, "4.46"},
		{"19.99", 33.3, "13.33"},
	}

	for _, tc := range tests {
		got := MustMoney(tc.price).Discounted(tc.discount)
		assert.Equal(t, tc.want, got.String(), "%s at %v%%", tc.price, tc.discount)
	}
}

func TestMoney_MinorUnits(t *testing.T) {
	assert.Equal(t, int64(27000), MustMoney("270").MinorUnits())
	assert.Equal(t, int64(1999), MustMoney("19.99").MinorUnits())
	assert.Equal(t, int64(1), MustMoney("0.005").MinorUnits())
}

func TestNewMoney_RejectsGarbage(t *testing.T) {
	_, err := NewMoney("ten")
	assert.Error(t, err)
}

func TestMoney_BSONKeepsExactValue(t *testing.T) {
	type doc struct {
		Price Money `bson:"price"`
	}

	raw, err := bson.Marshal(doc{Price: MustMoney("19.99")})
	require.NoError(t, err)

	var stored bson.M
	require.NoError(t, bson.Unmarshal(raw, &stored))
	assert.Equal(t, "19.99", stored["price"].(interface{ String() string }).String())

	var got doc
	require.NoError(t, bson.Unmarshal(raw, &got))
	assert.True(t, got.Price.Equal(MustMoney("19.99")))
}

func TestMoney_BSONAcceptsLegacyNumbers(t *testing.T) {
	raw, err := bson.Marshal(bson.M{"price": 12.5, "count": int32(3)})
	require.NoError(t, err)

	var got struct {
		Price Money `bson:"price"`
		Count Money `bson:"count"`
	}
	require.NoError(t, bson.Unmarshal(raw, &got))
	assert.Equal(t, "12.50", got.Price.String())
	assert.Equal(t, "3.00", got.Count.String())
}

func TestMoney_JSON(t *testing.T) {
	out, err := json.Marshal(struct {
		Total Money `json:"total"`
	}{Total: MustMoney("270")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"total":"270.00"}`, string(out))

	var in struct {
		Price Money `json:"price"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"price":"99.95"}`), &in))
	assert.Equal(t, "99.95", in.Price.String())
}

func TestComputeTotal(t *testing.T) {
	items := []OrderItem{
		{Quantity: 3, UnitPrice: MustMoney("90.00")},
		{Quantity: 2, UnitPrice: MustMoney("0.10")},
	}
	assert.Equal(t, "270.20", ComputeTotal(items).String())
	assert.Equal(t, "0.00", ComputeTotal(nil).String())
}
