package sale

import (
	"encoding/binary"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// PaymentMode selects how the net payment is collected from the buyer.
type PaymentMode uint8

const (
	// PaymentDirect debits the buyer's ledger balance directly.
	PaymentDirect PaymentMode = iota
	// PaymentAuthorized redeems an off-channel-signed transfer
	// authorization, so the buyer needs no prior allowance step.
	PaymentAuthorized
)

// Payment carries the buyer's chosen collection mode. Authorization is
// required for PaymentAuthorized and ignored otherwise.
type Payment struct {
	Mode          PaymentMode
	Authorization *TransferAuthorization
}

// TransferAuthorization is a one-shot signed payment instruction. The
// signature covers every other field; the currency ledger burns (From, Nonce)
// on redemption so a captured authorization cannot be replayed.
type TransferAuthorization struct {
	From        [20]byte
	To          [20]byte
	Value       *big.Int
	ValidAfter  int64
	ValidBefore int64
	Nonce       [32]byte
	Signature   []byte
}

// authorizationDomain separates transfer-authorization digests from any other
// signed payload in the system.
const authorizationDomain = "mintvault/transfer-authorization/v1"

// Digest returns the canonical 32-byte message the authorization signature
// must cover.
func (a *TransferAuthorization) Digest() [32]byte {
	var validAfter, validBefore [8]byte
	binary.BigEndian.PutUint64(validAfter[:], uint64(a.ValidAfter))
	binary.BigEndian.PutUint64(validBefore[:], uint64(a.ValidBefore))
	value := big.NewInt(0)
	if a.Value != nil {
		value = a.Value
	}
	return ethcrypto.Keccak256Hash(
		[]byte(authorizationDomain),
		a.From[:],
		a.To[:],
		ethcommon.LeftPadBytes(value.Bytes(), 32),
		validAfter[:],
		validBefore[:],
		a.Nonce[:],
	)
}

// InWindow reports whether the authorization is valid at the given time. The
// window is half-open: usable strictly after ValidAfter and strictly before
// ValidBefore. A zero ValidBefore means no expiry.
func (a *TransferAuthorization) InWindow(now int64) bool {
	if a == nil {
		return false
	}
	if now <= a.ValidAfter {
		return false
	}
	if a.ValidBefore != 0 && now >= a.ValidBefore {
		return false
	}
	return true
}
