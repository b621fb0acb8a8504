package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestUserCanAfford(t *testing.T) {
	u := &User{Balance: decimal.RequireFromString("1.5")}

	assert.True(t, u.CanAfford(decimal.RequireFromString("1.5")))
	assert.True(t, u.CanAfford(decimal.Zero))
	assert.False(t, u.CanAfford(decimal.RequireFromString("1.5001")))
}

func TestTxTypeSign(t *testing.T) {
	assert.Equal(t, "−", TxTypeDebit.Sign())
	assert.Equal(t, "+", TxTypeCredit.Sign())
}

func TestChunkKindString(t *testing.T) {
	assert.Equal(t, "text", ChunkText.String())
	assert.Equal(t, "image", ChunkImage.String())
	assert.Equal(t, "chunk(0)", ChunkKind(0).String())
}
