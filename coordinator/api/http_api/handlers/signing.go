package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	. "github.com/walletmesh/quorumd/coordinator/api/dto"
	cs "github.com/walletmesh/quorumd/coordinator/api/http_api/context_service"
	req "github.com/walletmesh/quorumd/coordinator/api/http_api/requests"
	signing_service "github.com/walletmesh/quorumd/coordinator/services/signing"
	"github.com/walletmesh/quorumd/coordinator/types"
)

func (a *HTTPApp) SignProposal(c echo.Context) error {
	stx := c.(*cs.ContextService)

	request := &req.SignProposalForm{}
	formDTO := &SignProposalDTO{}

	if err := stx.BindToDTO(request, formDTO); err != nil {
		return err
	}

	var signedAt time.Time
	if formDTO.SignedAtUnix > 0 {
		signedAt = time.Unix(formDTO.SignedAtUnix, 0)
	}

	var device *types.DeviceInfo
	if formDTO.DeviceID != "" {
		device = &types.DeviceInfo{
			DeviceID: formDTO.DeviceID,
			Name:     formDTO.DeviceName,
			Platform: formDTO.Platform,
		}
	}

	result, err := a.signing.Sign(stx.Request().Context(), signing_service.SignRequest{
		ProposalID:  formDTO.ProposalID,
		ValidatorID: formDTO.ValidatorID,
		Signature:   formDTO.Signature,
		SignedAt:    signedAt,
		Device:      device,
	})
	if err != nil {
		return stx.JsonDomainError(err)
	}

	return stx.Json(http.StatusOK, result)
}
