package rpc

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"mintvault/native/codes"
	"mintvault/native/phase"
	"mintvault/native/sale"
	"mintvault/native/tiers"
	"mintvault/observability/metrics"
)

type salePurchaseParams struct {
	Buyer         string             `json:"buyer"`
	Class         string             `json:"class"`
	Quantity      uint64             `json:"quantity"`
	Code          string             `json:"code,omitempty"`
	Payment       string             `json:"payment,omitempty"`
	Authorization *authorizationJSON `json:"authorization,omitempty"`
}

type authorizationJSON struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidAfter  int64  `json:"validAfter"`
	ValidBefore int64  `json:"validBefore"`
	Nonce       string `json:"nonce"`
	Signature   string `json:"signature"`
}

type splitJSON struct {
	Gross           string `json:"gross"`
	Discount        string `json:"discount"`
	Net             string `json:"net"`
	AmbassadorShare string `json:"ambassadorShare"`
	ManagerShare    string `json:"managerShare"`
	TreasuryShare   string `json:"treasuryShare"`
}

type receiptJSON struct {
	Buyer    string    `json:"buyer"`
	Class    string    `json:"class"`
	Quantity uint64    `json:"quantity"`
	Code     string    `json:"code,omitempty"`
	CodeKind string    `json:"codeKind"`
	Split    splitJSON `json:"split"`
}

type phaseJSON struct {
	ID        uint64   `json:"id"`
	Prices    []string `json:"prices"`
	Caps      []uint64 `json:"caps"`
	Sold      []uint64 `json:"sold"`
	CreatedAt int64    `json:"createdAt"`
}

func newReceiptJSON(receipt *sale.Receipt) receiptJSON {
	return receiptJSON{
		Buyer:    formatAddress(receipt.Buyer),
		Class:    receipt.Class.String(),
		Quantity: receipt.Quantity,
		Code:     receipt.Code,
		CodeKind: receipt.CodeKind.String(),
		Split: splitJSON{
			Gross:           receipt.Split.Gross.String(),
			Discount:        receipt.Split.Discount.String(),
			Net:             receipt.Split.Net.String(),
			AmbassadorShare: receipt.Split.AmbassadorShare.String(),
			ManagerShare:    receipt.Split.ManagerShare.String(),
			TreasuryShare:   receipt.Split.TreasuryShare.String(),
		},
	}
}

func newPhaseJSON(p *phase.Phase) phaseJSON {
	out := phaseJSON{ID: p.ID, CreatedAt: p.CreatedAt}
	for class := range p.Prices {
		out.Prices = append(out.Prices, p.Prices[class].String())
		out.Caps = append(out.Caps, p.Caps[class])
		out.Sold = append(out.Sold, p.Sold[class])
	}
	return out
}

func decodeSingleParam(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}

func parsePositiveBigInt(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount")
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}

func parseHexBytes(value string) ([]byte, error) {
	trimmed := strings.TrimSpace(value)
	trimmed = strings.TrimPrefix(strings.TrimPrefix(trimmed, "0x"), "0X")
	if trimmed == "" {
		return nil, fmt.Errorf("hex value required")
	}
	return hex.DecodeString(trimmed)
}

func parseAuthorization(raw *authorizationJSON) (*sale.TransferAuthorization, error) {
	if raw == nil {
		return nil, fmt.Errorf("authorization required")
	}
	from, err := parseBech32Address(raw.From)
	if err != nil {
		return nil, fmt.Errorf("invalid from: %w", err)
	}
	to, err := parseBech32Address(raw.To)
	if err != nil {
		return nil, fmt.Errorf("invalid to: %w", err)
	}
	value, err := parsePositiveBigInt(raw.Value)
	if err != nil {
		return nil, fmt.Errorf("invalid value: %w", err)
	}
	nonceBytes, err := parseHexBytes(raw.Nonce)
	if err != nil || len(nonceBytes) != 32 {
		return nil, fmt.Errorf("nonce must be 32 hex bytes")
	}
	signature, err := parseHexBytes(raw.Signature)
	if err != nil || len(signature) != 65 {
		return nil, fmt.Errorf("signature must be 65 hex bytes")
	}
	auth := &sale.TransferAuthorization{
		From:        from,
		To:          to,
		Value:       value,
		ValidAfter:  raw.ValidAfter,
		ValidBefore: raw.ValidBefore,
		Signature:   signature,
	}
	copy(auth.Nonce[:], nonceBytes)
	return auth, nil
}

func (s *Server) handleSalePurchase(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params salePurchaseParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	buyer, err := parseBech32Address(params.Buyer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	class, err := tiers.ParseClass(params.Class)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	payment := sale.Payment{Mode: sale.PaymentDirect}
	switch strings.ToLower(strings.TrimSpace(params.Payment)) {
	case "", "direct":
		// Direct mode debits the named buyer without a signature, so it is
		// reserved for operator-mediated sales. Self-served buyers prove
		// ownership of the paying account with a signed authorization.
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
	case "authorized":
		auth, err := parseAuthorization(params.Authorization)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
			return
		}
		payment = sale.Payment{Mode: sale.PaymentAuthorized, Authorization: auth}
	default:
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", "payment must be direct or authorized")
		return
	}

	receipt, err := s.node.Purchase(buyer, class, params.Quantity, params.Code, payment)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, "purchase failed", err.Error())
		return
	}
	metrics.Sale().ObservePurchase(receipt.Class.String(), receipt.CodeKind.String(), receipt.Quantity, receipt.Split.Gross)
	metrics.Sale().ObserveDiscount(receipt.Split.Discount)
	if receipt.Split.AmbassadorShare.Sign() > 0 {
		metrics.Sale().ObserveRewardPaid("ambassador", receipt.Split.AmbassadorShare)
	}
	if receipt.Split.ManagerShare.Sign() > 0 {
		metrics.Sale().ObserveRewardPaid("manager", receipt.Split.ManagerShare)
	}
	if balance, err := s.node.TreasuryBalance(); err == nil {
		metrics.Sale().SetTreasuryBalance(balance)
	}
	writeResult(w, req.ID, newReceiptJSON(receipt))
}

type saleStartPhaseParams struct {
	Caller string   `json:"caller"`
	Prices []string `json:"prices"`
	Caps   []uint64 `json:"caps"`
}

func (s *Server) handleSaleStartPhase(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params saleStartPhaseParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if len(params.Prices) != tiers.ClassCount || len(params.Caps) != tiers.ClassCount {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params",
			fmt.Sprintf("prices and caps must each list %d classes", tiers.ClassCount))
		return
	}
	var prices [tiers.ClassCount]*big.Int
	var caps [tiers.ClassCount]uint64
	for class := range prices {
		price, err := parsePositiveBigInt(params.Prices[class])
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params",
				fmt.Sprintf("price for %s: %v", tiers.ClassID(class), err))
			return
		}
		prices[class] = price
		caps[class] = params.Caps[class]
	}
	started, err := s.node.StartPhase(caller, prices, caps)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, "start phase failed", err.Error())
		return
	}
	metrics.Sale().SetCurrentPhase(started.ID)
	writeResult(w, req.ID, newPhaseJSON(started))
}

type saleAdjustCapParams struct {
	Caller string `json:"caller"`
	Class  string `json:"class"`
	NewCap uint64 `json:"newCap"`
}

func (s *Server) handleSaleAdjustPhaseCap(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params saleAdjustCapParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	class, err := tiers.ParseClass(params.Class)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.AdjustPhaseCap(caller, class, params.NewCap); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, "adjust cap failed", err.Error())
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

type createAmbassadorParams struct {
	Caller  string `json:"caller"`
	Code    string `json:"code"`
	Owner   string `json:"owner"`
	Manager string `json:"manager,omitempty"`
	Rate    uint8  `json:"rate"`
}

func (s *Server) handleSaleCreateAmbassadorCode(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params createAmbassadorParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	owner, err := parseBech32Address(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	var manager [20]byte
	if strings.TrimSpace(params.Manager) != "" {
		manager, err = parseBech32Address(params.Manager)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
			return
		}
	}
	created, err := s.node.CreateAmbassadorCode(caller, params.Code, owner, manager, params.Rate)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, "create code failed", err.Error())
		return
	}
	writeResult(w, req.ID, newAmbassadorJSON(created))
}

type createPersonalParams struct {
	Caller string `json:"caller"`
	Code   string `json:"code"`
	Owner  string `json:"owner"`
	Rate   uint8  `json:"rate"`
}

func (s *Server) handleSaleCreatePersonalCode(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params createPersonalParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	owner, err := parseBech32Address(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	created, err := s.node.CreatePersonalCode(caller, params.Code, owner, params.Rate)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, "create code failed", err.Error())
		return
	}
	writeResult(w, req.ID, newPersonalJSON(created))
}

type setPausedParams struct {
	Caller string `json:"caller"`
	Module string `json:"module"`
	Paused bool   `json:"paused"`
}

func (s *Server) handleSaleSetPaused(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params setPausedParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.SetPaused(caller, params.Module, params.Paused); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, "set paused failed", err.Error())
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

type ambassadorJSON struct {
	Code                   string   `json:"code"`
	Owner                  string   `json:"owner"`
	Manager                string   `json:"manager,omitempty"`
	DiscountRate           uint8    `json:"discountRate"`
	MintedByClass          []uint64 `json:"mintedByClass"`
	TotalEarned            string   `json:"totalEarned"`
	TotalRaisedForTreasury string   `json:"totalRaisedForTreasury"`
}

type personalJSON struct {
	Code          string   `json:"code"`
	Owner         string   `json:"owner"`
	DiscountRate  uint8    `json:"discountRate"`
	MintedByClass []uint64 `json:"mintedByClass"`
}

func newAmbassadorJSON(amb *codes.AmbassadorCode) ambassadorJSON {
	out := ambassadorJSON{
		Code:                   amb.Code,
		Owner:                  formatAddress(amb.Owner),
		DiscountRate:           amb.DiscountRate,
		MintedByClass:          amb.MintedByClass[:],
		TotalEarned:            amb.TotalEarned.String(),
		TotalRaisedForTreasury: amb.TotalRaisedForTreasury.String(),
	}
	if amb.Manager != ([20]byte{}) {
		out.Manager = formatAddress(amb.Manager)
	}
	return out
}

func newPersonalJSON(personal *codes.PersonalCode) personalJSON {
	return personalJSON{
		Code:          personal.Code,
		Owner:         formatAddress(personal.Owner),
		DiscountRate:  personal.DiscountRate,
		MintedByClass: personal.MintedByClass[:],
	}
}
