package server

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/branched-services/go-evmprobe"
	"github.com/branched-services/go-evmprobe/internal/dapp"
)

/* ---- parameters ---- */

// param reads a query or form value.
func param(r *http.Request, name string) string {
	return strings.TrimSpace(r.FormValue(name))
}

func addressParam(r *http.Request, name, fallback string) (common.Address, error) {
	v := param(r, name)
	if v == "" {
		v = fallback
	}
	if v == "" {
		return common.Address{}, fmt.Errorf("missing parameter %q", name)
	}
	if !common.IsHexAddress(v) {
		return common.Address{}, fmt.Errorf("parameter %q: %q is not a hex address", name, v)
	}
	return common.HexToAddress(v), nil
}

func amountParam(r *http.Request, name string) (*big.Rat, error) {
	v := param(r, name)
	if v == "" {
		return nil, fmt.Errorf("missing parameter %q", name)
	}
	amount, err := evmprobe.ParseAmount(v)
	if err != nil {
		return nil, fmt.Errorf("parameter %q: %w", name, err)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("parameter %q: %w", name, evmprobe.ErrNegativeAmount)
	}
	return amount, nil
}

func uintParam(r *http.Request, name string) (*big.Int, error) {
	v := param(r, name)
	n, ok := new(big.Int).SetString(v, 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("parameter %q: %q is not a non-negative integer", name, v)
	}
	return n, nil
}

// addresses resolves several address parameters at once.
func addresses(r *http.Request, names ...string) ([]common.Address, error) {
	out := make([]common.Address, len(names))
	for i, name := range names {
		a, err := addressParam(r, name, "")
		if err != nil {
			return nil, err
		}
		out[i] = a
	}
	return out, nil
}

func badRequest(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
}

func (s *Server) explorer(hash common.Hash) string {
	return s.cfg.Tx.ExplorerTxURL + hash.Hex()
}

/* ---- network ---- */

func (s *Server) handleNetwork(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	writeJSON(w, http.StatusOK, map[string]any{
		"connected":    s.svc.Connected(ctx),
		"rpcUrlMasked": dapp.MaskURL(s.cfg.Chain.RPCURL),
		"rpcHost":      dapp.Host(s.cfg.Chain.RPCURL),
		"cfgChainId":   s.cfg.Chain.ChainID,
		"chainIdHex":   s.svc.ChainIDHex(ctx),
	})
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"address": s.svc.Address().Hex()})
}

func (s *Server) handleBlockNumber(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.BlockNumber(r.Context())
	if err != nil {
		s.writeOpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"blockNumber": n})
}

func (s *Server) handleEthBalance(w http.ResponseWriter, r *http.Request) {
	account, err := addressParam(r, "address", "")
	if err != nil {
		badRequest(w, err)
		return
	}
	bal, err := s.svc.Balance(r.Context(), account)
	if err != nil {
		s.writeOpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"address": account.Hex(),
		"wei":     bal.Wei.String(),
		"eth":     bal.Ether,
	})
}

/* ---- ERC-20 reads ---- */

func (s *Server) handleDecimals(w http.ResponseWriter, r *http.Request) {
	token, err := addressParam(r, "token", s.cfg.Contracts.Token)
	if err != nil {
		badRequest(w, err)
		return
	}
	d, err := s.svc.Decimals(r.Context(), token)
	if err != nil {
		s.writeOpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token.Hex(), "decimals": d})
}

func (s *Server) handleTokenBalance(w http.ResponseWriter, r *http.Request) {
	token, err := addressParam(r, "token", s.cfg.Contracts.Token)
	if err != nil {
		badRequest(w, err)
		return
	}
	owner, err := addressParam(r, "address", "")
	if err != nil {
		badRequest(w, err)
		return
	}
	amt, err := s.svc.TokenBalance(r.Context(), token, owner)
	if err != nil {
		s.writeOpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":    token.Hex(),
		"address":  owner.Hex(),
		"raw":      amt.Raw.String(),
		"decimals": amt.Decimals,
		"human":    amt.Human,
	})
}

func (s *Server) handleAllowance(w http.ResponseWriter, r *http.Request) {
	token, err := addressParam(r, "token", s.cfg.Contracts.Token)
	if err != nil {
		badRequest(w, err)
		return
	}
	addrs, err := addresses(r, "owner", "spender")
	if err != nil {
		badRequest(w, err)
		return
	}
	amt, err := s.svc.TokenAllowance(r.Context(), token, addrs[0], addrs[1])
	if err != nil {
		s.writeOpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":    token.Hex(),
		"owner":    addrs[0].Hex(),
		"spender":  addrs[1].Hex(),
		"raw":      amt.Raw.String(),
		"decimals": amt.Decimals,
		"human":    amt.Human,
	})
}

func (s *Server) handleMeta(w http.ResponseWriter, r *http.Request) {
	token, err := addressParam(r, "token", s.cfg.Contracts.Token)
	if err != nil {
		badRequest(w, err)
		return
	}
	meta, err := s.svc.Meta(r.Context(), token)
	if err != nil {
		s.writeOpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":    token.Hex(),
		"name":     meta.Name,
		"symbol":   meta.Symbol,
		"decimals": meta.Decimals,
	})
}

/* ---- ERC-20 and wallet writes ---- */

// tokenAmount resolves token and amountHuman and scales the amount by the
// token's on-chain decimals. It writes the error response itself.
func (s *Server) tokenAmount(w http.ResponseWriter, r *http.Request) (common.Address, *big.Int, bool) {
	token, err := addressParam(r, "token", s.cfg.Contracts.Token)
	if err != nil {
		badRequest(w, err)
		return common.Address{}, nil, false
	}
	human, err := amountParam(r, "amountHuman")
	if err != nil {
		badRequest(w, err)
		return common.Address{}, nil, false
	}
	raw, err := s.svc.ToRawByToken(r.Context(), token, human)
	if err != nil {
		s.writeOpError(w, r, err)
		return common.Address{}, nil, false
	}
	return token, raw, true
}

// writeTx writes a submitted transaction response. fields gets the hash,
// explorer link and the echoed amounts.
func (s *Server) writeTx(w http.ResponseWriter, r *http.Request, hash common.Hash, raw *big.Int, fields map[string]any) {
	fields["txHash"] = hash.Hex()
	fields["explorer"] = s.explorer(hash)
	if raw != nil {
		fields["amountRaw"] = raw.String()
		fields["amountHuman"] = param(r, "amountHuman")
	}
	writeJSON(w, http.StatusOK, fields)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	spender, err := addressParam(r, "spender", "")
	if err != nil {
		badRequest(w, err)
		return
	}
	token, raw, ok := s.tokenAmount(w, r)
	if !ok {
		return
	}
	hash, err := s.svc.Approve(r.Context(), token, spender, raw)
	if err != nil {
		s.writeOpError(w, r, err)
		return
	}
	s.writeTx(w, r, hash, raw, map[string]any{
		"token":   token.Hex(),
		"spender": spender.Hex(),
	})
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	to, err := addressParam(r, "to", "")
	if err != nil {
		badRequest(w, err)
		return
	}
	token, raw, ok := s.tokenAmount(w, r)
	if !ok {
		return
	}
	hash, err := s.svc.Transfer(r.Context(), token, to, raw)
	if err != nil {
		s.writeOpError(w, r, err)
		return
	}
	s.writeTx(w, r, hash, raw, map[string]any{
		"token": token.Hex(),
		"to":    to.Hex(),
	})
}

func (s *Server) handleTransferFrom(w http.ResponseWriter, r *http.Request) {
	addrs, err := addresses(r, "from", "to")
	if err != nil {
		badRequest(w, err)
		return
	}
	token, raw, ok := s.tokenAmount(w, r)
	if !ok {
		return
	}
	hash, err := s.svc.TransferFrom(r.Context(), token, addrs[0], addrs[1], raw)
	if err != nil {
		s.writeOpError(w, r, err)
		return
	}
	s.writeTx(w, r, hash, raw, map[string]any{
		"token": token.Hex(),
		"from":  addrs[0].Hex(),
		"to":    addrs[1].Hex(),
	})
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	s.handleWallet(w, r, s.svc.DepositERC20)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	s.handleWallet(w, r, s.svc.WithdrawERC20)
}

type walletOp func(ctx context.Context, wallet, token common.Address, raw *big.Int) (common.Hash, error)

// handleWallet runs a SimpleWallet operation. wallet defaults to the
// configured SimpleWallet address.
func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request, op walletOp) {
	wallet, err := addressParam(r, "wallet", s.cfg.Contracts.SimpleWallet)
	if err != nil {
		badRequest(w, err)
		return
	}
	token, raw, ok := s.tokenAmount(w, r)
	if !ok {
		return
	}
	hash, err := op(r.Context(), wallet, token, raw)
	if err != nil {
		s.writeOpError(w, r, err)
		return
	}
	s.writeTx(w, r, hash, raw, map[string]any{
		"wallet": wallet.Hex(),
		"token":  token.Hex(),
	})
}

/* ---- round-based game ---- */

func (s *Server) gameParam(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	game, err := addressParam(r, "contract", s.cfg.Contracts.Game)
	if err != nil {
		badRequest(w, err)
		return common.Address{}, false
	}
	return game, true
}

func (s *Server) handleGameState(w http.ResponseWriter, r *http.Request) {
	game, ok := s.gameParam(w, r)
	if !ok {
		return
	}
	st, err := s.svc.State(r.Context(), game)
	if err != nil {
		s.writeOpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"contract": game.Hex(),
		"round":    st.Round.String(),
		"potRaw":   st.Pot.String(),
	})
}

func (s *Server) handleGameInspect(w http.ResponseWriter, r *http.Request) {
	game, ok := s.gameParam(w, r)
	if !ok {
		return
	}
	in, err := s.svc.Inspect(r.Context(), game)
	if err != nil {
		s.writeOpError(w, r, err)
		return
	}
	out := map[string]any{
		"contract": game.Hex(),
		"round":    in.Round.String(),
		"potRaw":   in.Pot.String(),
	}
	if in.Open != nil {
		out["isOpen"] = *in.Open
	}
	if in.Winner != nil {
		out["winner"] = in.Winner.Hex()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGameSubmit(w http.ResponseWriter, r *http.Request) {
	game, ok := s.gameParam(w, r)
	if !ok {
		return
	}
	guess, err := uintParam(r, "guess")
	if err != nil {
		badRequest(w, err)
		return
	}
	hash, err := s.svc.Submit(r.Context(), game, guess)
	if err != nil {
		s.writeOpError(w, r, err)
		return
	}
	s.writeTx(w, r, hash, nil, map[string]any{
		"contract": game.Hex(),
		"guess":    guess.String(),
	})
}

func (s *Server) handleGameNextRound(w http.ResponseWriter, r *http.Request) {
	game, ok := s.gameParam(w, r)
	if !ok {
		return
	}
	hash, err := s.svc.StartNextRound(r.Context(), game)
	if err != nil {
		s.writeOpError(w, r, err)
		return
	}
	s.writeTx(w, r, hash, nil, map[string]any{"contract": game.Hex()})
}
