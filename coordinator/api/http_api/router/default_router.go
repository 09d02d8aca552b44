package router

import (
	"github.com/labstack/echo/v4"

	"github.com/walletmesh/quorumd/coordinator/api/http_api/handlers"
	"github.com/walletmesh/quorumd/coordinator/services"
)

func SetRouter(e *echo.Echo, authHandler echo.MiddlewareFunc, sp *services.ServiceProvider) {
	h := handlers.NewHTTPApp(sp)

	e.POST("/createProposal", h.CreateProposal)
	e.GET("/getProposal", h.GetProposal)
	e.GET("/getProposals", h.GetProposals)
	e.POST("/signProposal", h.SignProposal)
	e.POST("/cancelProposal", h.CancelProposal)

	e.GET("/canExecute", h.CanExecute)
	e.GET("/estimateGas", h.EstimateGas)

	e.GET("/getValidators", h.GetValidators)
	e.POST("/addValidator", h.AddValidator)
	e.POST("/removeValidator", h.RemoveValidator)

	e.GET("/getSigningPolicy", h.GetSigningPolicy)
	e.POST("/setSigningPolicy", h.SetSigningPolicy)

	e.GET("/ws", h.Subscribe)
	e.GET("/resync", h.Resync)
}
