package handlers

import (
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	. "github.com/walletmesh/quorumd/coordinator/api/dto"
	cs "github.com/walletmesh/quorumd/coordinator/api/http_api/context_service"
	req "github.com/walletmesh/quorumd/coordinator/api/http_api/requests"
	"github.com/walletmesh/quorumd/coordinator/types"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type subscribeForm struct {
	UserID     string `query:"userID" validate:"attr=userID,min=1"`
	DeviceID   string `query:"deviceID"`
	DeviceName string `query:"deviceName"`
	Platform   string `query:"platform"`
}

// Subscribe upgrades the request to a websocket and registers the device for
// live notification fanout. The connection stays open until the peer goes
// away or the daemon shuts down.
func (a *HTTPApp) Subscribe(c echo.Context) error {
	stx := c.(*cs.ContextService)

	request := &subscribeForm{}
	if err := stx.BindToRequest(request); err != nil {
		return err
	}

	ws, err := upgrader.Upgrade(stx.Response(), stx.Request(), nil)
	if err != nil {
		return stx.JsonError(
			http.StatusBadRequest,
			fmt.Errorf("failed to upgrade connection: %v", err),
		)
	}

	var device *types.DeviceInfo
	if request.DeviceID != "" {
		device = &types.DeviceInfo{
			DeviceID: request.DeviceID,
			Name:     request.DeviceName,
			Platform: request.Platform,
		}
	}

	a.notifier.Subscribe(request.UserID, ws, device)
	return nil
}

// Resync returns the caller's full pending set plus recent notification
// history, for devices that reconnect after a gap.
func (a *HTTPApp) Resync(c echo.Context) error {
	stx := c.(*cs.ContextService)

	request := &req.UserIdForm{}
	formDTO := &UserIdDTO{}

	if err := stx.BindToDTO(request, formDTO); err != nil {
		return err
	}

	result, err := a.notifier.Resync(formDTO.UserID)
	if err != nil {
		return stx.JsonDomainError(err)
	}

	return stx.Json(http.StatusOK, result)
}
