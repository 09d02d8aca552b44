package handlers

import (
	"github.com/walletmesh/quorumd/coordinator/services"
	"github.com/walletmesh/quorumd/coordinator/services/executor"
	"github.com/walletmesh/quorumd/coordinator/services/notifier"
	proposal_service "github.com/walletmesh/quorumd/coordinator/services/proposal"
	"github.com/walletmesh/quorumd/coordinator/services/registry"
	"github.com/walletmesh/quorumd/coordinator/services/signing"
)

type HTTPApp struct {
	registry registry.RegistryService
	proposal proposal_service.ProposalService
	signing  signing.SigningService
	executor executor.ExecutorService
	notifier notifier.NotifierService
}

func NewHTTPApp(sp *services.ServiceProvider) *HTTPApp {
	return &HTTPApp{
		registry: sp.GetRegistryService(),
		proposal: sp.GetProposalService(),
		signing:  sp.GetSigningService(),
		executor: sp.GetExecutorService(),
		notifier: sp.GetNotifierService(),
	}
}
