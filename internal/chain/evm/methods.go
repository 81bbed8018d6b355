package evm

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"

	"whalewatch/internal/domain"
)

// methodClassifications maps leading 4-byte selectors to a transaction
// classification. Selectors are computed from canonical signatures at
// init so the table cannot drift from the signature strings.
var methodClassifications = map[[4]byte]domain.TxClassification{}

func init() {
	register := func(signature string, class domain.TxClassification) {
		h := sha3.NewLegacyKeccak256()
		h.Write([]byte(signature))
		var sel [4]byte
		copy(sel[:], h.Sum(nil)[:4])
		methodClassifications[sel] = class
	}

	register("transfer(address,uint256)", domain.TxTransfer)
	register("transferFrom(address,address,uint256)", domain.TxTransfer)
	register("mint(address,uint256)", domain.TxMint)
	register("mint(uint256)", domain.TxMint)
	register("swapExactTokensForTokens(uint256,uint256,address[],address,uint256)", domain.TxSwap)
	register("swapExactETHForTokens(uint256,address[],address,uint256)", domain.TxSwap)
	register("swapTokensForExactTokens(uint256,uint256,address[],address,uint256)", domain.TxSwap)
	register("swapExactTokensForETH(uint256,uint256,address[],address,uint256)", domain.TxSwap)
	register("exactInputSingle((address,address,uint24,address,uint256,uint256,uint256,uint160))", domain.TxSwap)
}

// ClassifyInput returns the classification for the given call data.
// Plain value transfers and unknown selectors classify as transfer.
func ClassifyInput(input []byte) domain.TxClassification {
	if len(input) < 4 {
		return domain.TxTransfer
	}
	var sel [4]byte
	copy(sel[:], input[:4])
	if class, ok := methodClassifications[sel]; ok {
		return class
	}
	return domain.TxTransfer
}

// Selector returns the hex form of a call data selector, or "" when the
// input carries no selector.
func Selector(input []byte) string {
	if len(input) < 4 {
		return ""
	}
	return "0x" + hex.EncodeToString(input[:4])
}
