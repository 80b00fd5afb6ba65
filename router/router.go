package router

import (
	"github.com/gin-gonic/gin"
	"github.com/token_locker/controller"
	"github.com/token_locker/handler"
	"github.com/token_locker/service"
)

func SetupRouter(lockHandler *handler.LockHandler, adminController *controller.AdminController, signer *service.SignerService, development bool) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger())

	public := r.Group("/api")
	{
		public.GET("/config", adminController.GetConfig)
		public.GET("/locks", lockHandler.ListVaults)
		public.GET("/locks/:vault", lockHandler.GetVault)
		public.GET("/locks/:vault/events", lockHandler.GetVaultEvents)
		public.GET("/address/vault", lockHandler.DeriveVaultAddress)
		public.GET("/balance", lockHandler.GetBalance)
	}

	signed := r.Group("/api", RequireSignature(signer))
	{
		signed.POST("/config/initialize", adminController.InitializeConfig)
		signed.POST("/config/fee-account", adminController.InitializeFeeAccount)
		signed.PUT("/config/fee-asset", adminController.UpdateFeeAsset)
		signed.POST("/fees/withdraw", adminController.WithdrawFees)
		signed.GET("/admin/dashboard", adminController.Dashboard)
		signed.GET("/admin/vaults", adminController.ListVaults)

		signed.POST("/locks", lockHandler.LockTokens)
		signed.POST("/native-locks", lockHandler.LockNativeTokens)
		signed.POST("/locks/:vault/withdraw", lockHandler.WithdrawTokens)
		signed.POST("/locks/:vault/withdraw-native", lockHandler.WithdrawNativeTokens)
		signed.POST("/locks/:vault/extend", lockHandler.ExtendLockTime)

		signed.POST("/dev/deposit", DevelopmentOnly(development), lockHandler.Deposit)
	}

	return r
}
