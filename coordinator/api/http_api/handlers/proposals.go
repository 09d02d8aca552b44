package handlers

import (
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	. "github.com/walletmesh/quorumd/coordinator/api/dto"
	cs "github.com/walletmesh/quorumd/coordinator/api/http_api/context_service"
	req "github.com/walletmesh/quorumd/coordinator/api/http_api/requests"
	proposal_service "github.com/walletmesh/quorumd/coordinator/services/proposal"
	"github.com/walletmesh/quorumd/coordinator/types"
)

func (a *HTTPApp) CreateProposal(c echo.Context) error {
	stx := c.(*cs.ContextService)

	request := &req.CreateProposalForm{}
	formDTO := &CreateProposalDTO{}

	if err := stx.BindToDTO(request, formDTO); err != nil {
		return err
	}

	value := big.NewInt(0)
	if formDTO.Value != "" {
		var ok bool
		if value, ok = new(big.Int).SetString(formDTO.Value, 10); !ok {
			return stx.JsonError(
				http.StatusBadRequest,
				fmt.Errorf("invalid value %q", formDTO.Value),
			)
		}
	}

	proposal, err := a.proposal.Create(proposal_service.CreateParams{
		Creator:            formDTO.Creator,
		To:                 formDTO.To,
		Value:              value,
		Data:               formDTO.Data,
		RequiredSignatures: formDTO.RequiredSignatures,
		ValidatorIDs:       formDTO.ValidatorIDs,
		TTL:                time.Duration(formDTO.TTLSeconds) * time.Second,
		Metadata: types.ProposalMetadata{
			Title:       formDTO.Title,
			Description: formDTO.Description,
			Kind:        formDTO.Kind,
		},
	})
	if err != nil {
		return stx.JsonDomainError(err)
	}

	return stx.Json(http.StatusOK, proposal)
}

func (a *HTTPApp) GetProposal(c echo.Context) error {
	stx := c.(*cs.ContextService)

	request := &req.ProposalIdForm{}
	formDTO := &ProposalIdDTO{}

	if err := stx.BindToDTO(request, formDTO); err != nil {
		return err
	}

	proposal, err := a.proposal.Get(formDTO.ProposalID)
	if err != nil {
		return stx.JsonDomainError(err)
	}

	return stx.Json(http.StatusOK, proposal)
}

func (a *HTTPApp) GetProposals(c echo.Context) error {
	stx := c.(*cs.ContextService)

	request := &req.ProposalListForm{}
	formDTO := &ProposalListDTO{}

	if err := stx.BindToDTO(request, formDTO); err != nil {
		return err
	}

	proposals, err := a.proposal.ListForUser(formDTO.UserID, proposal_service.ListFilter{
		Status: types.ProposalStatus(formDTO.Status),
		Limit:  formDTO.Limit,
		Offset: formDTO.Offset,
	})
	if err != nil {
		return stx.JsonDomainError(err)
	}

	return stx.Json(http.StatusOK, proposals)
}

func (a *HTTPApp) CancelProposal(c echo.Context) error {
	stx := c.(*cs.ContextService)

	request := &req.CancelProposalForm{}
	formDTO := &CancelProposalDTO{}

	if err := stx.BindToDTO(request, formDTO); err != nil {
		return err
	}

	proposal, err := a.proposal.Cancel(formDTO.ProposalID, formDTO.UserID)
	if err != nil {
		return stx.JsonDomainError(err)
	}

	return stx.Json(http.StatusOK, proposal)
}

func (a *HTTPApp) CanExecute(c echo.Context) error {
	stx := c.(*cs.ContextService)

	request := &req.ProposalIdForm{}
	formDTO := &ProposalIdDTO{}

	if err := stx.BindToDTO(request, formDTO); err != nil {
		return err
	}

	result, err := a.executor.CanExecute(formDTO.ProposalID)
	if err != nil {
		return stx.JsonDomainError(err)
	}

	return stx.Json(http.StatusOK, result)
}

func (a *HTTPApp) EstimateGas(c echo.Context) error {
	stx := c.(*cs.ContextService)

	request := &req.ProposalIdForm{}
	formDTO := &ProposalIdDTO{}

	if err := stx.BindToDTO(request, formDTO); err != nil {
		return err
	}

	estimate, err := a.executor.EstimateGas(formDTO.ProposalID)
	if err != nil {
		return stx.JsonDomainError(err)
	}

	return stx.Json(http.StatusOK, estimate)
}
