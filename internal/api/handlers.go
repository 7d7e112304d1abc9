package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrz1836/cryptorpc/internal/chain"
	rpcerr "github.com/mrz1836/cryptorpc/pkg/errors"
)

// paymentBody is one payment. Amounts are base-unit integers given as a JSON
// number or string.
type paymentBody struct {
	Address string          `json:"address"`
	Amount  chain.RawAmount `json:"amount"`
}

type sendRequest struct {
	Address string          `json:"address" binding:"required"`
	Amount  chain.RawAmount `json:"amount" binding:"required"`
	Secret  string          `json:"secret" binding:"required"`
	Source  string          `json:"source"`
}

// sendManyRequest leaves payment fields unchecked: a bad payment fails in
// its own result slot.
type sendManyRequest struct {
	Payments []paymentBody `json:"payments" binding:"required"`
	Secret   string        `json:"secret" binding:"required"`
	Source   string        `json:"source"`
}

type submitRequest struct {
	SignedTx string `json:"signed_tx" binding:"required"`
}

// rpcRequest is a raw node call. Params are forwarded untouched.
type rpcRequest struct {
	Method string          `json:"method" binding:"required"`
	Params json.RawMessage `json:"params"`
}

func (s *Server) currencies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"currencies": s.gateway.Currencies()})
}

func (s *Server) tip(c *gin.Context) {
	tip, err := s.gateway.GetTip(c.Request.Context(), c.Param("currency"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tip)
}

func (s *Server) bestHash(c *gin.Context) {
	hash, err := s.gateway.GetBestBlockHash(c.Request.Context(), c.Param("currency"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hash": hash})
}

func (s *Server) fee(c *gin.Context) {
	fee, err := s.gateway.EstimateFee(c.Request.Context(), c.Param("currency"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fee": fee})
}

func (s *Server) block(c *gin.Context) {
	b, err := s.gateway.GetBlock(c.Request.Context(), c.Param("currency"), chain.ParseBlockID(c.Param("id")))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (s *Server) balance(c *gin.Context) {
	bal, err := s.gateway.GetBalance(c.Request.Context(), c.Param("currency"), c.Param("address"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": c.Param("address"), "balance": bal.String()})
}

func (s *Server) transaction(c *gin.Context) {
	tx, err := s.gateway.GetTransaction(c.Request.Context(), c.Param("currency"), c.Param("txid"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}

func (s *Server) confirmations(c *gin.Context) {
	n, err := s.gateway.GetConfirmations(c.Request.Context(), c.Param("currency"), c.Param("txid"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"txid": c.Param("txid"), "confirmations": n})
}

func (s *Server) validate(c *gin.Context) {
	ok, err := s.gateway.ValidateAddress(c.Param("currency"), c.Param("address"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": c.Param("address"), "valid": ok})
}

func (s *Server) send(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, rpcerr.WithCause(rpcerr.ErrInvalidInput, err))
		return
	}
	p := chain.NewPaymentRequest(req.Address, string(req.Amount))
	if p.Invalid != nil {
		s.fail(c, p.Invalid)
		return
	}

	secret := []byte(req.Secret)
	defer clear(secret)
	txid, err := s.gateway.UnlockAndSendToAddress(c.Request.Context(), c.Param("currency"), p, secret, req.Source)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"txid": txid})
}

func (s *Server) sendMany(c *gin.Context) {
	var req sendManyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, rpcerr.WithCause(rpcerr.ErrInvalidInput, err))
		return
	}
	payments := make([]chain.PaymentRequest, len(req.Payments))
	for i, body := range req.Payments {
		payments[i] = chain.NewPaymentRequest(body.Address, string(body.Amount))
	}

	secret := []byte(req.Secret)
	defer clear(secret)
	results, err := s.gateway.UnlockAndSendToAddressMany(c.Request.Context(), c.Param("currency"), payments, secret, req.Source)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (s *Server) submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, rpcerr.WithCause(rpcerr.ErrInvalidInput, err))
		return
	}
	txid, err := s.gateway.SubmitSignedTransaction(c.Request.Context(), c.Param("currency"), req.SignedTx)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"txid": txid})
}

func (s *Server) rpc(c *gin.Context) {
	var req rpcRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, rpcerr.WithCause(rpcerr.ErrInvalidInput, err))
		return
	}
	var params any
	if len(req.Params) > 0 && string(req.Params) != "null" {
		params = req.Params
	}
	result, err := s.gateway.Request(c.Request.Context(), c.Param("currency"), req.Method, params)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}
