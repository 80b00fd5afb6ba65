package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/token_locker/handler"
	"github.com/token_locker/service"
)

// AdminController serves the operator-scoped config and fee endpoints.
type AdminController struct {
	FeeService  *service.FeeService
	LockService *service.LockService
}

type feeAssetBody struct {
	FeeAsset string `json:"fee_asset" binding:"required"`
}

// POST /api/config/initialize
func (c *AdminController) InitializeConfig(ctx *gin.Context) {
	caller, ok := handler.MustCaller(ctx)
	if !ok {
		return
	}
	var body feeAssetBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	asset, err := handler.ParseAddress("fee_asset", body.FeeAsset)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg, err := c.FeeService.InitializeConfig(ctx, caller, asset)
	if err != nil {
		handler.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, cfg)
}

// POST /api/config/fee-account
func (c *AdminController) InitializeFeeAccount(ctx *gin.Context) {
	caller, ok := handler.MustCaller(ctx)
	if !ok {
		return
	}
	account, err := c.FeeService.InitializeFeeAccount(ctx, caller)
	if err != nil {
		handler.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"fee_account": account.Hex()})
}

// PUT /api/config/fee-asset
func (c *AdminController) UpdateFeeAsset(ctx *gin.Context) {
	caller, ok := handler.MustCaller(ctx)
	if !ok {
		return
	}
	var body feeAssetBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	asset, err := handler.ParseAddress("fee_asset", body.FeeAsset)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg, err := c.FeeService.UpdateFeeAsset(ctx, caller, asset)
	if err != nil {
		handler.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, cfg)
}

// GET /api/config
func (c *AdminController) GetConfig(ctx *gin.Context) {
	cfg, err := c.FeeService.GetConfig(ctx)
	if err != nil {
		handler.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, cfg)
}

// POST /api/fees/withdraw
func (c *AdminController) WithdrawFees(ctx *gin.Context) {
	caller, ok := handler.MustCaller(ctx)
	if !ok {
		return
	}
	amount, err := c.FeeService.WithdrawFees(ctx, caller)
	if err != nil {
		handler.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"amount": amount})
}

// GET /api/admin/dashboard
func (c *AdminController) Dashboard(ctx *gin.Context) {
	caller, ok := handler.MustCaller(ctx)
	if !ok {
		return
	}
	dash, err := c.FeeService.Dashboard(ctx, caller)
	if err != nil {
		handler.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dash)
}

// GET /api/admin/vaults
func (c *AdminController) ListVaults(ctx *gin.Context) {
	caller, ok := handler.MustCaller(ctx)
	if !ok {
		return
	}
	if err := c.FeeService.RequireOperator(ctx, caller); err != nil {
		handler.RespondError(ctx, err)
		return
	}
	page, _ := strconv.Atoi(ctx.Query("page"))
	size, _ := strconv.Atoi(ctx.Query("size"))

	records, total, err := c.LockService.ListVaults(ctx, page, size)
	if err != nil {
		handler.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"total": total, "records": records})
}
