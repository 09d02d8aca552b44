package handlers

import (
	"fmt"
	"math/big"
	"net/http"

	"github.com/labstack/echo/v4"

	. "github.com/walletmesh/quorumd/coordinator/api/dto"
	cs "github.com/walletmesh/quorumd/coordinator/api/http_api/context_service"
	req "github.com/walletmesh/quorumd/coordinator/api/http_api/requests"
	"github.com/walletmesh/quorumd/coordinator/types"
)

type addValidatorResponse struct {
	Validator           *types.Validator `json:"validator"`
	EnrollmentChallenge string           `json:"enrollment_challenge"`
}

func (a *HTTPApp) GetValidators(c echo.Context) error {
	stx := c.(*cs.ContextService)

	validators, err := a.registry.ListActive()
	if err != nil {
		return stx.JsonDomainError(err)
	}

	return stx.Json(http.StatusOK, validators)
}

func (a *HTTPApp) AddValidator(c echo.Context) error {
	stx := c.(*cs.ContextService)

	request := &req.AddValidatorForm{}
	formDTO := &AddValidatorDTO{}

	if err := stx.BindToDTO(request, formDTO); err != nil {
		return err
	}

	v := &types.Validator{
		ID:        formDTO.ID,
		Owner:     formDTO.Owner,
		Kind:      types.ValidatorKind(formDTO.Kind),
		Name:      formDTO.Name,
		PublicKey: formDTO.PublicKey,
	}

	switch v.Kind {
	case types.KindSocial:
		v.Social = &types.SocialMeta{
			Provider: formDTO.Provider,
			Subject:  formDTO.Subject,
		}
	case types.KindPasskey:
		v.Passkey = &types.PasskeyMeta{
			CredentialID: formDTO.CredentialID,
			AAGUID:       formDTO.AAGUID,
		}
	case types.KindHardware:
		v.Hardware = &types.HardwareMeta{
			Model:      formDTO.Model,
			SerialHash: formDTO.SerialHash,
		}
	default:
		return stx.JsonError(
			http.StatusBadRequest,
			fmt.Errorf("unknown validator kind %q", formDTO.Kind),
		)
	}

	added, challenge, err := a.registry.Add(v)
	if err != nil {
		return stx.JsonDomainError(err)
	}

	return stx.Json(http.StatusOK, &addValidatorResponse{
		Validator:           added,
		EnrollmentChallenge: challenge,
	})
}

func (a *HTTPApp) RemoveValidator(c echo.Context) error {
	stx := c.(*cs.ContextService)

	request := &req.ValidatorIdForm{}
	formDTO := &ValidatorIdDTO{}

	if err := stx.BindToDTO(request, formDTO); err != nil {
		return err
	}

	if err := a.registry.Remove(formDTO.ValidatorID); err != nil {
		return stx.JsonDomainError(err)
	}

	return stx.JsonEmpty(http.StatusOK)
}

func (a *HTTPApp) GetSigningPolicy(c echo.Context) error {
	stx := c.(*cs.ContextService)

	policy, err := a.registry.GetPolicy()
	if err != nil {
		return stx.JsonDomainError(err)
	}

	return stx.Json(http.StatusOK, policy)
}

func (a *HTTPApp) SetSigningPolicy(c echo.Context) error {
	stx := c.(*cs.ContextService)

	request := &req.SigningPolicyForm{}
	formDTO := &SigningPolicyDTO{}

	if err := stx.BindToDTO(request, formDTO); err != nil {
		return err
	}

	policy := &types.SigningPolicy{
		RequireMultiSig: formDTO.RequireMultiSig,
		Threshold:       formDTO.Threshold,
	}
	if formDTO.HighValueThreshold != "" {
		threshold, ok := new(big.Int).SetString(formDTO.HighValueThreshold, 10)
		if !ok {
			return stx.JsonError(
				http.StatusBadRequest,
				fmt.Errorf("invalid high value threshold %q", formDTO.HighValueThreshold),
			)
		}
		policy.HighValueThreshold = threshold
	}

	if err := a.registry.SetPolicy(policy); err != nil {
		return stx.JsonDomainError(err)
	}

	return stx.Json(http.StatusOK, policy)
}
