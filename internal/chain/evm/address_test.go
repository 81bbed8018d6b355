package evm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidAddress(t *testing.T) {
	assert.True(t, IsValidAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"))
	assert.True(t, IsValidAddress("0x0000000000000000000000000000000000000000"))

	assert.False(t, IsValidAddress(""))
	assert.False(t, IsValidAddress("5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"))
	assert.False(t, IsValidAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAe"))
	assert.False(t, IsValidAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAedd"))
	assert.False(t, IsValidAddress("0xZZZeb6053F3E94C9b9A09f33669435E7Ef1BeAed"))
}

func TestChecksumAddress_KnownVectors(t *testing.T) {
	// Test vectors from EIP-55
	vectors := []string{
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		"0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
		"0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb",
	}
	for _, want := range vectors {
		assert.Equal(t, want, ChecksumAddress(strings.ToLower(want)))
		assert.Equal(t, want, ChecksumAddress("0x"+strings.ToUpper(want[2:])))
		assert.Equal(t, want, ChecksumAddress(want))
	}
}

func TestChecksumAddress_InvalidPassedThrough(t *testing.T) {
	assert.Equal(t, "nonsense", ChecksumAddress("nonsense"))
	assert.Equal(t, "0x123", ChecksumAddress("0x123"))
}
