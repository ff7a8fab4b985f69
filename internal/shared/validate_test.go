package shared

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type lineFixture struct {
	ProductID int64 `json:"productId" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"gte=1"`
}

type orderFixture struct {
	Purchases []lineFixture `json:"purchases" validate:"required,min=1,dive"`
}

func TestValidateStructMessages(t *testing.T) {
	v := NewValidator()

	err := ValidateStruct(v, orderFixture{})
	require.ErrorIs(t, err, ErrValidation)
	require.Equal(t, "purchases must be a non-empty array", err.Error())

	err = ValidateStruct(v, orderFixture{Purchases: []lineFixture{}})
	require.Equal(t, "purchases must be a non-empty array", err.Error())

	err = ValidateStruct(v, orderFixture{Purchases: []lineFixture{{ProductID: 1, Quantity: 1}, {ProductID: 2, Quantity: 0}}})
	require.Equal(t, "purchases[1].quantity must be >= 1", err.Error())

	err = ValidateStruct(v, orderFixture{Purchases: []lineFixture{{Quantity: 1}}})
	require.Equal(t, "purchases[0].productId is required", err.Error())

	require.NoError(t, ValidateStruct(v, orderFixture{Purchases: []lineFixture{{ProductID: 3, Quantity: 2}}}))
}

func TestErrorTaxonomy(t *testing.T) {
	cause := errors.New("connection reset")
	err := Persistence("insert purchase", cause)
	require.ErrorIs(t, err, ErrPersistence)
	require.ErrorIs(t, err, cause)
	require.Equal(t, "failed to process request", UserMessage(err))
	require.Nil(t, Persistence("noop", nil))

	nf := NotFoundf("product %d not found", 7)
	require.ErrorIs(t, nf, ErrNotFound)
	require.Equal(t, "product 7 not found", UserMessage(nf))

	require.Equal(t, "recommendation service timed out", UserMessage(ErrUpstreamTimeout))
	require.Equal(t, "internal error", UserMessage(errors.New("boom")))
}
