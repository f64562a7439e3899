package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"mintvault/core"
	"mintvault/crypto"
	"mintvault/native/codes"
	"mintvault/native/phase"
	"mintvault/native/tiers"
)

// Server exposes read-only REST views over the node state. All mutation goes
// through the JSON-RPC surface; the gateway never writes.
type Server struct {
	node *core.Node
	log  *slog.Logger
}

func NewServer(node *core.Node) *Server {
	return &Server{
		node: node,
		log:  slog.Default().With("component", "gateway"),
	}
}

// Router assembles the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Get("/phase/current", s.handleCurrentPhase)
		v1.Get("/phase/{id}", s.handlePhaseByID)
		v1.Get("/tiers", s.handleTiers)
		v1.Get("/tiers/{class}", s.handleTier)
		v1.Get("/codes/{code}", s.handleCode)
		v1.Get("/treasury", s.handleTreasury)
		v1.Get("/treasury/withdrawals", s.handleWithdrawals)
		v1.Get("/treasury/withdrawals/{id}", s.handleWithdrawal)
		v1.Get("/accounts/{address}", s.handleAccount)
		v1.Get("/events", s.handleEvents)
	})
	return r
}

// Start serves the instrumented router on addr and blocks.
func (s *Server) Start(addr string) error {
	s.log.Info("starting gateway", "addr", addr)
	server := &http.Server{
		Addr:              addr,
		Handler:           otelhttp.NewHandler(s.Router(), "mintvault-gateway"),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server.ListenAndServe()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		next.ServeHTTP(w, r)
		s.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"elapsed", time.Since(started).String(),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeErrorJSON(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

type phaseView struct {
	ID        uint64   `json:"id"`
	Prices    []string `json:"prices"`
	Caps      []uint64 `json:"caps"`
	Sold      []uint64 `json:"sold"`
	Available []uint64 `json:"available"`
	CreatedAt int64    `json:"createdAt"`
}

func newPhaseView(p *phase.Phase) phaseView {
	view := phaseView{ID: p.ID, CreatedAt: p.CreatedAt}
	for class := range p.Prices {
		view.Prices = append(view.Prices, p.Prices[class].String())
		view.Caps = append(view.Caps, p.Caps[class])
		view.Sold = append(view.Sold, p.Sold[class])
		view.Available = append(view.Available, p.Available(tiers.ClassID(class)))
	}
	return view
}

func (s *Server) handleCurrentPhase(w http.ResponseWriter, r *http.Request) {
	current, err := s.node.CurrentPhase()
	if err != nil {
		if errors.Is(err, phase.ErrNoActivePhase) {
			writeErrorJSON(w, http.StatusNotFound, "no active phase")
			return
		}
		writeErrorJSON(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newPhaseView(current))
}

func (s *Server) handlePhaseByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid phase id")
		return
	}
	stored, ok, err := s.node.PhaseByID(id)
	if err != nil {
		writeErrorJSON(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeErrorJSON(w, http.StatusNotFound, "phase not found")
		return
	}
	writeJSON(w, http.StatusOK, newPhaseView(stored))
}

type tierView struct {
	Class        string `json:"class"`
	Cap          uint64 `json:"cap"`
	Minted       uint64 `json:"minted"`
	Remaining    uint64 `json:"remaining"`
	RewardWeight uint64 `json:"rewardWeight"`
}

func newTierView(class tiers.ClassID, info tiers.Info) tierView {
	return tierView{
		Class:        class.String(),
		Cap:          info.Cap,
		Minted:       info.Minted,
		Remaining:    info.Remaining(),
		RewardWeight: info.RewardWeight,
	}
}

func (s *Server) handleTiers(w http.ResponseWriter, r *http.Request) {
	table, err := s.node.Tiers()
	if err != nil {
		writeErrorJSON(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]tierView, 0, len(table))
	for class, info := range table {
		views = append(views, newTierView(tiers.ClassID(class), info))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleTier(w http.ResponseWriter, r *http.Request) {
	class, err := tiers.ParseClass(chi.URLParam(r, "class"))
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, err.Error())
		return
	}
	info, err := s.node.TierInfo(class)
	if err != nil {
		writeErrorJSON(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newTierView(class, info))
}

type codeView struct {
	Code                   string   `json:"code"`
	Kind                   string   `json:"kind"`
	Owner                  string   `json:"owner"`
	Manager                string   `json:"manager,omitempty"`
	DiscountRate           uint8    `json:"discountRate"`
	MintedByClass          []uint64 `json:"mintedByClass"`
	TotalEarned            string   `json:"totalEarned,omitempty"`
	TotalRaisedForTreasury string   `json:"totalRaisedForTreasury,omitempty"`
}

func (s *Server) handleCode(w http.ResponseWriter, r *http.Request) {
	record, ok, err := s.node.CodeInfo(chi.URLParam(r, "code"))
	if err != nil {
		writeErrorJSON(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeErrorJSON(w, http.StatusNotFound, "code not found")
		return
	}
	view := codeView{Kind: record.Kind.String()}
	switch record.Kind {
	case codes.KindAmbassador:
		amb := record.Ambassador
		view.Code = amb.Code
		view.Owner = crypto.Address(amb.Owner).String()
		if amb.Manager != ([20]byte{}) {
			view.Manager = crypto.Address(amb.Manager).String()
		}
		view.DiscountRate = amb.DiscountRate
		view.MintedByClass = amb.MintedByClass[:]
		view.TotalEarned = amb.TotalEarned.String()
		view.TotalRaisedForTreasury = amb.TotalRaisedForTreasury.String()
	case codes.KindPersonal:
		personal := record.Personal
		view.Code = personal.Code
		view.Owner = crypto.Address(personal.Owner).String()
		view.DiscountRate = personal.DiscountRate
		view.MintedByClass = personal.MintedByClass[:]
	default:
		writeErrorJSON(w, http.StatusInternalServerError, "corrupt code record")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type withdrawalView struct {
	ID          uint64   `json:"id"`
	Amount      string   `json:"amount"`
	Recipient   string   `json:"recipient"`
	RequestedAt int64    `json:"requestedAt"`
	Approvals   []string `json:"approvals"`
	Executed    bool     `json:"executed"`
	Blocked     bool     `json:"blocked"`
}

func (s *Server) withdrawalView(id uint64) (withdrawalView, error) {
	request, err := s.node.TreasuryWithdrawal(id)
	if err != nil {
		return withdrawalView{}, err
	}
	view := withdrawalView{
		ID:          request.ID,
		Amount:      request.Amount.String(),
		Recipient:   crypto.Address(request.Recipient).String(),
		RequestedAt: request.RequestedAt,
		Approvals:   make([]string, 0, len(request.Approvals)),
		Executed:    request.Executed,
		Blocked:     request.Blocked,
	}
	for _, member := range request.Approvals {
		view.Approvals = append(view.Approvals, crypto.Address(member).String())
	}
	return view, nil
}

func (s *Server) handleTreasury(w http.ResponseWriter, r *http.Request) {
	balance, err := s.node.TreasuryBalance()
	if err != nil {
		writeErrorJSON(w, http.StatusInternalServerError, err.Error())
		return
	}
	board := s.node.TreasuryBoard()
	members := make([]string, 0, len(board))
	for _, member := range board {
		members = append(members, crypto.Address(member).String())
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"address": crypto.Address(s.node.TreasuryAddress()).String(),
		"balance": balance.String(),
		"board":   members,
	})
}

func (s *Server) handleWithdrawals(w http.ResponseWriter, r *http.Request) {
	count, err := s.node.TreasuryWithdrawalCount()
	if err != nil {
		writeErrorJSON(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]withdrawalView, 0, count)
	for id := uint64(1); id <= count; id++ {
		view, err := s.withdrawalView(id)
		if err != nil {
			continue
		}
		views = append(views, view)
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid withdrawal id")
		return
	}
	view, err := s.withdrawalView(id)
	if err != nil {
		writeErrorJSON(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := crypto.DecodeAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, err.Error())
		return
	}
	balance, err := s.node.BalanceOf([20]byte(addr))
	if err != nil {
		writeErrorJSON(w, http.StatusInternalServerError, err.Error())
		return
	}
	held, err := s.node.Holdings([20]byte(addr))
	if err != nil {
		writeErrorJSON(w, http.StatusInternalServerError, err.Error())
		return
	}
	holdings := make(map[string]uint64, len(held))
	for class, count := range held {
		holdings[tiers.ClassID(class).String()] = count
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"address":  addr.String(),
		"balance":  balance.String(),
		"holdings": holdings,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeErrorJSON(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	writeJSON(w, http.StatusOK, s.node.Events(limit))
}
