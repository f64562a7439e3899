package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"mintvault/core/types"
	"mintvault/native/codes"
	"mintvault/native/phase"
	"mintvault/native/sale"
	"mintvault/native/tiers"
	"mintvault/native/treasury"
	"mintvault/storage"
)

var (
	ErrInsufficientBalance    = errors.New("state: insufficient balance")
	ErrNegativeAmount         = errors.New("state: negative amount")
	ErrAuthorizationWindow    = errors.New("state: authorization outside validity window")
	ErrAuthorizationReplayed  = errors.New("state: authorization nonce already used")
	ErrAuthorizationSignature = errors.New("state: authorization signature invalid")
	ErrTierCapExceeded        = errors.New("state: tier cap exceeded")
	ErrUnknownTier            = errors.New("state: unknown tier")
)

// RoleSaleAdmin gates phase creation, cap adjustments and code registration.
const RoleSaleAdmin = "ROLE_SALE_ADMIN"

var (
	keyPhaseSeq      = []byte("phase/seq")
	keyPhaseHead     = []byte("phase/head")
	keyWithdrawalSeq = []byte("treasury/withdrawals/seq")
)

func keyAccount(addr [20]byte) []byte { return append([]byte("acct/"), addr[:]...) }

func keyPhase(id uint64) []byte { return []byte(fmt.Sprintf("phase/%d", id)) }

func keyCode(code string) []byte { return append([]byte("code/"), code...) }

func keyWithdrawal(id uint64) []byte { return []byte(fmt.Sprintf("treasury/withdrawals/%d", id)) }

func keyRole(role string, addr []byte) []byte {
	return append([]byte("role/"+role+"/"), addr...)
}

func keyPause(module string) []byte { return []byte("pause/" + module) }

func keyTier(class tiers.ClassID) []byte { return []byte(fmt.Sprintf("tier/%d", class)) }

func keyHoldings(addr [20]byte) []byte { return append([]byte("inv/"), addr[:]...) }

func keyAuthNonce(from [20]byte, nonce [32]byte) []byte {
	key := append([]byte("authnonce/"), from[:]...)
	return append(key, nonce[:]...)
}

// treasurySeed derives the module-owned treasury account address. The
// resulting address has no known private key.
const treasurySeed = "mintvault/treasury-module/v1"

// Manager is the host state backend shared by every engine. It persists all
// ledgers (accounts, tiers, phases, codes, withdrawals, roles, pauses)
// through a single storage.Database. Callers must serialize access; the node
// facade holds the mutual-exclusion boundary.
type Manager struct {
	db       storage.Database
	treasury [20]byte
}

// NewManager creates a state manager over the given database.
func NewManager(db storage.Database) *Manager {
	var treasuryAddr [20]byte
	digest := ethcrypto.Keccak256([]byte(treasurySeed))
	copy(treasuryAddr[:], digest[12:])
	return &Manager{db: db, treasury: treasuryAddr}
}

func (m *Manager) getJSON(key []byte, out interface{}) (bool, error) {
	raw, err := m.db.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Manager) putJSON(key []byte, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return m.db.Put(key, raw)
}

func (m *Manager) nextSeq(key []byte) (uint64, error) {
	var current uint64
	if _, err := m.getJSON(key, &current); err != nil {
		return 0, err
	}
	current++
	if err := m.putJSON(key, current); err != nil {
		return 0, err
	}
	return current, nil
}

// --- accounts / currency ledger ---

// GetAccount loads the account for the address, returning an empty account
// when none is stored yet.
func (m *Manager) GetAccount(addr [20]byte) (*types.Account, error) {
	account := new(types.Account)
	if _, err := m.getJSON(keyAccount(addr), account); err != nil {
		return nil, err
	}
	return types.EnsureAccount(account), nil
}

// PutAccount stores the account for the address.
func (m *Manager) PutAccount(addr [20]byte, account *types.Account) error {
	return m.putJSON(keyAccount(addr), types.EnsureAccount(account))
}

// BalanceOf returns the currency balance of the address.
func (m *Manager) BalanceOf(addr [20]byte) (*big.Int, error) {
	account, err := m.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(account.Balance), nil
}

// Credit adds funds to the address. Used by genesis seeding and tests; the
// sale and treasury engines only move existing balances.
func (m *Manager) Credit(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	account, err := m.GetAccount(addr)
	if err != nil {
		return err
	}
	account.Balance = new(big.Int).Add(account.Balance, amount)
	return m.PutAccount(addr, account)
}

// Transfer moves funds between two accounts.
func (m *Manager) Transfer(from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	fromAccount, err := m.GetAccount(from)
	if err != nil {
		return err
	}
	if fromAccount.Balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: need %s", ErrInsufficientBalance, amount)
	}
	toAccount, err := m.GetAccount(to)
	if err != nil {
		return err
	}
	fromAccount.Balance = new(big.Int).Sub(fromAccount.Balance, amount)
	toAccount.Balance = new(big.Int).Add(toAccount.Balance, amount)
	if err := m.PutAccount(from, fromAccount); err != nil {
		return err
	}
	return m.PutAccount(to, toAccount)
}

// AuthorizedTransfer redeems a signed transfer authorization: the signature
// must recover to the From address, the clock must sit inside the validity
// window, and the (From, Nonce) pair must be unused. The nonce is burned on
// success so the authorization is one-shot.
func (m *Manager) AuthorizedTransfer(auth *sale.TransferAuthorization, now int64) error {
	if auth == nil {
		return ErrAuthorizationSignature
	}
	if !auth.InWindow(now) {
		return ErrAuthorizationWindow
	}
	nonceKey := keyAuthNonce(auth.From, auth.Nonce)
	used, err := m.db.Has(nonceKey)
	if err != nil {
		return err
	}
	if used {
		return ErrAuthorizationReplayed
	}
	digest := auth.Digest()
	if len(auth.Signature) != 65 {
		return ErrAuthorizationSignature
	}
	pub, err := ethcrypto.SigToPub(digest[:], auth.Signature)
	if err != nil {
		return ErrAuthorizationSignature
	}
	recovered := ethcrypto.PubkeyToAddress(*pub)
	if !bytes.Equal(recovered.Bytes(), auth.From[:]) {
		return ErrAuthorizationSignature
	}
	if err := m.Transfer(auth.From, auth.To, auth.Value); err != nil {
		return err
	}
	return m.db.Put(nonceKey, []byte{1})
}

// TreasuryAddress returns the module-owned treasury account.
func (m *Manager) TreasuryAddress() [20]byte { return m.treasury }

// --- inventory ledger ---

// SetTierInfo installs the tier description for a class. Genesis only.
func (m *Manager) SetTierInfo(class tiers.ClassID, info tiers.Info) error {
	if !class.Valid() {
		return ErrUnknownTier
	}
	return m.putJSON(keyTier(class), info)
}

// TierInfo returns the tier description for the class.
func (m *Manager) TierInfo(class tiers.ClassID) (tiers.Info, error) {
	if !class.Valid() {
		return tiers.Info{}, ErrUnknownTier
	}
	var info tiers.Info
	ok, err := m.getJSON(keyTier(class), &info)
	if err != nil {
		return tiers.Info{}, err
	}
	if !ok {
		return tiers.Info{}, fmt.Errorf("%w: %s", ErrUnknownTier, class)
	}
	return info, nil
}

// MintInventory mints quantity units of the class to the recipient, failing
// when the hard tier cap would be exceeded.
func (m *Manager) MintInventory(to [20]byte, class tiers.ClassID, quantity uint64) error {
	info, err := m.TierInfo(class)
	if err != nil {
		return err
	}
	if info.Minted+quantity > info.Cap {
		return fmt.Errorf("%w: class %s", ErrTierCapExceeded, class)
	}
	info.Minted += quantity
	if err := m.putJSON(keyTier(class), info); err != nil {
		return err
	}
	var held [tiers.ClassCount]uint64
	if _, err := m.getJSON(keyHoldings(to), &held); err != nil {
		return err
	}
	held[class] += quantity
	return m.putJSON(keyHoldings(to), held)
}

// Holdings returns the per-class inventory owned by the address.
func (m *Manager) Holdings(addr [20]byte) ([tiers.ClassCount]uint64, error) {
	var held [tiers.ClassCount]uint64
	_, err := m.getJSON(keyHoldings(addr), &held)
	return held, err
}

// --- roles and pauses ---

// GrantRole gives the address the named role.
func (m *Manager) GrantRole(role string, addr [20]byte) error {
	return m.db.Put(keyRole(role, addr[:]), []byte{1})
}

// HasRole reports whether the address holds the named role.
func (m *Manager) HasRole(role string, addr []byte) bool {
	ok, err := m.db.Has(keyRole(role, addr))
	return err == nil && ok
}

// SetPaused toggles the pause switch for a module.
func (m *Manager) SetPaused(module string, paused bool) error {
	if paused {
		return m.db.Put(keyPause(module), []byte{1})
	}
	return m.db.Delete(keyPause(module))
}

// IsPaused reports whether the module is paused.
func (m *Manager) IsPaused(module string) bool {
	ok, err := m.db.Has(keyPause(module))
	return err == nil && ok
}

// --- phase ledger storage ---

// PhaseCurrent returns the active phase, if any.
func (m *Manager) PhaseCurrent() (*phase.Phase, bool, error) {
	var head uint64
	ok, err := m.getJSON(keyPhaseHead, &head)
	if err != nil || !ok {
		return nil, false, err
	}
	return m.PhaseByID(head)
}

// PhaseByID returns the stored phase with the given identifier.
func (m *Manager) PhaseByID(id uint64) (*phase.Phase, bool, error) {
	stored := new(phase.Phase)
	ok, err := m.getJSON(keyPhase(id), stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return stored, true, nil
}

// PhasePut persists the phase and advances the head pointer when the phase
// is the newest. History entries are never deleted.
func (m *Manager) PhasePut(p *phase.Phase) error {
	sanitized, err := phase.Sanitize(p)
	if err != nil {
		return err
	}
	if err := m.putJSON(keyPhase(sanitized.ID), sanitized); err != nil {
		return err
	}
	var head uint64
	if _, err := m.getJSON(keyPhaseHead, &head); err != nil {
		return err
	}
	if sanitized.ID >= head {
		return m.putJSON(keyPhaseHead, sanitized.ID)
	}
	return nil
}

// PhaseNextID allocates the next monotonic phase identifier.
func (m *Manager) PhaseNextID() (uint64, error) {
	return m.nextSeq(keyPhaseSeq)
}

// PhaseCount returns how many phases have been started.
func (m *Manager) PhaseCount() (uint64, error) {
	var count uint64
	_, err := m.getJSON(keyPhaseSeq, &count)
	return count, err
}

// --- code registry storage ---

// CodeGet returns the stored record for the normalized code string.
func (m *Manager) CodeGet(code string) (*codes.Record, bool, error) {
	record := new(codes.Record)
	ok, err := m.getJSON(keyCode(code), record)
	if err != nil || !ok {
		return nil, false, err
	}
	return record, true, nil
}

// CodePut persists a code record under its code string.
func (m *Manager) CodePut(record *codes.Record) error {
	if record == nil || record.CodeString() == "" {
		return errors.New("state: invalid code record")
	}
	return m.putJSON(keyCode(record.CodeString()), record)
}

// --- withdrawal storage ---

// WithdrawalNextID allocates the next monotonic withdrawal identifier.
func (m *Manager) WithdrawalNextID() (uint64, error) {
	return m.nextSeq(keyWithdrawalSeq)
}

// WithdrawalPut persists the request, refusing impossible terminal states.
func (m *Manager) WithdrawalPut(r *treasury.WithdrawalRequest) error {
	if r == nil {
		return errors.New("state: nil withdrawal request")
	}
	if r.Executed && r.Blocked {
		return errors.New("state: request cannot be executed and blocked")
	}
	return m.putJSON(keyWithdrawal(r.ID), r)
}

// WithdrawalGet returns the stored request with the given identifier.
func (m *Manager) WithdrawalGet(id uint64) (*treasury.WithdrawalRequest, bool, error) {
	request := new(treasury.WithdrawalRequest)
	ok, err := m.getJSON(keyWithdrawal(id), request)
	if err != nil || !ok {
		return nil, false, err
	}
	return request, true, nil
}

// WithdrawalCount returns how many withdrawal requests exist.
func (m *Manager) WithdrawalCount() (uint64, error) {
	var count uint64
	_, err := m.getJSON(keyWithdrawalSeq, &count)
	return count, err
}
