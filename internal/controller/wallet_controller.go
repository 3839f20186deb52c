package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"aml-monitor/internal/service"
)

// ErrorResponse is the error body every endpoint returns.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type WalletController struct {
	walletService service.WalletService
}

func NewWalletController(walletService service.WalletService) *WalletController {
	return &WalletController{
		walletService: walletService,
	}
}

// RegisterWallet handles POST /api/wallets.
func (c *WalletController) RegisterWallet(ctx *gin.Context) {
	var req service.RegisterWalletRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request format",
			Message: err.Error(),
		})
		return
	}

	wallet, err := c.walletService.RegisterWallet(ctx.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrWalletExists):
			ctx.JSON(http.StatusConflict, ErrorResponse{
				Error: "Wallet already registered",
			})
		case errors.Is(err, service.ErrChainNotSupported), errors.Is(err, service.ErrInvalidAddress):
			ctx.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "Validation failed",
				Message: err.Error(),
			})
		default:
			ctx.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "Failed to register wallet",
				Message: err.Error(),
			})
		}
		return
	}

	ctx.JSON(http.StatusCreated, wallet)
}

// GetWallet handles GET /api/wallets/:address.
func (c *WalletController) GetWallet(ctx *gin.Context) {
	address := ctx.Param("address")

	wallet, err := c.walletService.GetWallet(ctx.Request.Context(), address)
	if err != nil {
		if errors.Is(err, service.ErrWalletNotFound) {
			ctx.JSON(http.StatusNotFound, ErrorResponse{Error: "Wallet not found"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "Failed to get wallet",
			Message: err.Error(),
		})
		return
	}

	ctx.JSON(http.StatusOK, wallet)
}

// GetWalletTransactions handles GET /api/wallets/:address/transactions.
func (c *WalletController) GetWalletTransactions(ctx *gin.Context) {
	address := ctx.Param("address")
	limit, offset := paginationParams(ctx)

	transactions, err := c.walletService.GetWalletTransactions(ctx.Request.Context(), address, limit, offset)
	if err != nil {
		if errors.Is(err, service.ErrWalletNotFound) {
			ctx.JSON(http.StatusNotFound, ErrorResponse{Error: "Wallet not found"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "Failed to list transactions",
			Message: err.Error(),
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"address":      address,
		"transactions": transactions,
		"count":        len(transactions),
	})
}

// ScanWallet handles POST /api/wallets/:address/scan.
func (c *WalletController) ScanWallet(ctx *gin.Context) {
	address := ctx.Param("address")

	result, err := c.walletService.ScanWallet(ctx.Request.Context(), address)
	if err != nil {
		if errors.Is(err, service.ErrWalletNotFound) {
			ctx.JSON(http.StatusNotFound, ErrorResponse{Error: "Wallet not found"})
			return
		}
		ctx.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "Scan failed",
			Message: err.Error(),
		})
		return
	}

	ctx.JSON(http.StatusOK, result)
}

// GetTransaction handles GET /api/transactions/:hash.
func (c *WalletController) GetTransaction(ctx *gin.Context) {
	tx, err := c.walletService.GetTransaction(ctx.Request.Context(), ctx.Param("hash"))
	if err != nil {
		if errors.Is(err, service.ErrTransactionNotFound) {
			ctx.JSON(http.StatusNotFound, ErrorResponse{Error: "Transaction not found"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "Failed to get transaction",
			Message: err.Error(),
		})
		return
	}

	ctx.JSON(http.StatusOK, tx)
}

// ListUserWallets handles GET /api/users/:userId/wallets.
func (c *WalletController) ListUserWallets(ctx *gin.Context) {
	userID, err := strconv.ParseInt(ctx.Param("userId"), 10, 64)
	if err != nil || userID <= 0 {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid user ID"})
		return
	}

	wallets, err := c.walletService.ListUserWallets(ctx.Request.Context(), userID)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "Failed to list wallets",
			Message: err.Error(),
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"user_id": userID,
		"wallets": wallets,
		"count":   len(wallets),
	})
}

// MonitoringRequest toggles continuous polling for a wallet.
type MonitoringRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// SetMonitoring handles PATCH /api/wallets/:address/monitoring.
func (c *WalletController) SetMonitoring(ctx *gin.Context) {
	var req MonitoringRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request format",
			Message: err.Error(),
		})
		return
	}

	wallet, err := c.walletService.SetMonitoring(ctx.Request.Context(), ctx.Param("address"), *req.Enabled)
	if err != nil {
		if errors.Is(err, service.ErrWalletNotFound) {
			ctx.JSON(http.StatusNotFound, ErrorResponse{Error: "Wallet not found"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "Failed to update monitoring",
			Message: err.Error(),
		})
		return
	}

	ctx.JSON(http.StatusOK, wallet)
}

func paginationParams(ctx *gin.Context) (limit, offset int) {
	limit, err := strconv.Atoi(ctx.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 50
	}
	offset, err = strconv.Atoi(ctx.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}
