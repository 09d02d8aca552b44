package services

import (
	"fmt"
	"math/big"

	"github.com/segmentio/kafka-go/sasl/plain"

	"github.com/walletmesh/quorumd/broadcaster"
	"github.com/walletmesh/quorumd/coordinator/config"
	"github.com/walletmesh/quorumd/coordinator/modules/keylock"
	"github.com/walletmesh/quorumd/coordinator/modules/keystore"
	"github.com/walletmesh/quorumd/coordinator/modules/state"
	proposal_repo "github.com/walletmesh/quorumd/coordinator/repositories/proposal"
	validator_repo "github.com/walletmesh/quorumd/coordinator/repositories/validator"
	"github.com/walletmesh/quorumd/coordinator/services/executor"
	"github.com/walletmesh/quorumd/coordinator/services/notifier"
	proposal_service "github.com/walletmesh/quorumd/coordinator/services/proposal"
	"github.com/walletmesh/quorumd/coordinator/services/registry"
	"github.com/walletmesh/quorumd/coordinator/services/signing"
	"github.com/walletmesh/quorumd/coordinator/services/sweeper"
	"github.com/walletmesh/quorumd/notifylog"
	"github.com/walletmesh/quorumd/verifier"
)

const serviceKeyName = "quorumd"

var provider ServiceProvider

// ServiceProvider wires the storage, services and external collaborators
// together. Everything shares one State handle and one keyed-lock table so
// every mutation of a proposal runs under the same critical section.
type ServiceProvider struct {
	state    state.State
	keystore keystore.KeyStore
	locks    *keylock.KeyLock

	registryService registry.RegistryService
	proposalService proposal_service.ProposalService
	signingService  signing.SigningService
	executorService executor.ExecutorService
	sweeperService  sweeper.SweeperService
	notifierService notifier.NotifierService
}

func (p *ServiceProvider) Init(cfg *config.Config) error {
	stateDb, err := state.NewLevelDBState(cfg.StateConfig.DBDSN)
	if err != nil {
		return fmt.Errorf("failed to open state: %w", err)
	}
	p.state = stateDb

	ks, err := keystore.NewLevelDBKeyStore(cfg.StateConfig.KeystoreDBDSN)
	if err != nil {
		return fmt.Errorf("failed to open keystore: %w", err)
	}
	p.keystore = ks

	serviceKeys, err := ks.LoadKeys(serviceKeyName)
	if err != nil {
		serviceKeys = keystore.NewKeyPair()
		if err := ks.PutKeys(serviceKeyName, serviceKeys); err != nil {
			return fmt.Errorf("failed to store service keys: %w", err)
		}
	}

	sideChannels, err := buildSideChannels(cfg)
	if err != nil {
		return err
	}

	proposalRepo := proposal_repo.NewProposalRepo(p.state)
	validatorRepo, err := validator_repo.NewValidatorRepo(p.state)
	if err != nil {
		return fmt.Errorf("failed to init validator repo: %w", err)
	}

	p.locks = keylock.New()

	gasPrice, ok := new(big.Int).SetString(cfg.GasConfig.GasPrice, 10)
	if !ok {
		return fmt.Errorf("invalid gas price %q", cfg.GasConfig.GasPrice)
	}

	vf := verifier.NewStandardVerifier()
	bc := broadcaster.NewDevBroadcaster(serviceKeys)

	notifierService := notifier.NewNotifierService(cfg.NotifierConfig.HistorySize, sideChannels...)
	registryService := registry.NewRegistryService(validatorRepo)
	proposalService := proposal_service.NewProposalService(
		proposalRepo, registryService, notifierService, p.locks, cfg.SigningConfig)
	executorService := executor.NewExecutorService(
		proposalRepo, registryService, notifierService, bc, vf, p.locks, gasPrice, cfg.SigningConfig)
	signingService := signing.NewSigningService(
		proposalRepo, registryService, proposalService, executorService,
		notifierService, vf, p.locks, cfg.SigningConfig)
	sweeperService := sweeper.NewSweeperService(
		proposalRepo, proposalService, p.locks, cfg.SweeperConfig)

	// Resync needs the pending set; set after construction to avoid a
	// constructor cycle with the proposal service.
	notifierService.SetPendingLister(proposalService)

	p.notifierService = notifierService
	p.registryService = registryService
	p.proposalService = proposalService
	p.executorService = executorService
	p.signingService = signingService
	p.sweeperService = sweeperService

	return nil
}

func buildSideChannels(cfg *config.Config) ([]notifylog.Log, error) {
	channels := make([]notifylog.Log, 0, 2)

	if cfg.NotifierConfig.FileLogPath != "" {
		fileLog, err := notifylog.NewFileLog(cfg.NotifierConfig.FileLogPath, cfg.NotifierConfig.FileLockPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open notification file log: %w", err)
		}
		channels = append(channels, fileLog)
	}

	if cfg.KafkaConfig.Enabled {
		tlsConfig, err := notifylog.GetTLSConfig(cfg.KafkaConfig.TrustStorePath)
		if err != nil {
			return nil, fmt.Errorf("failed to build kafka TLS config: %w", err)
		}
		var creds *plain.Mechanism
		if cfg.KafkaConfig.ProducerUsername != "" {
			creds = &plain.Mechanism{
				Username: cfg.KafkaConfig.ProducerUsername,
				Password: cfg.KafkaConfig.ProducerPassword,
			}
		}
		kafkaLog, err := notifylog.NewKafkaLog(
			cfg.KafkaConfig.BrokerEndpoint, cfg.KafkaConfig.Topic,
			tlsConfig, creds, cfg.KafkaConfig.Timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to init kafka notification log: %w", err)
		}
		channels = append(channels, kafkaLog)
	}

	return channels, nil
}

func (p *ServiceProvider) GetState() state.State                            { return p.state }
func (p *ServiceProvider) GetKeyStore() keystore.KeyStore                   { return p.keystore }
func (p *ServiceProvider) GetRegistryService() registry.RegistryService     { return p.registryService }
func (p *ServiceProvider) GetProposalService() proposal_service.ProposalService {
	return p.proposalService
}
func (p *ServiceProvider) GetSigningService() signing.SigningService   { return p.signingService }
func (p *ServiceProvider) GetExecutorService() executor.ExecutorService { return p.executorService }
func (p *ServiceProvider) GetSweeperService() sweeper.SweeperService   { return p.sweeperService }
func (p *ServiceProvider) GetNotifierService() notifier.NotifierService { return p.notifierService }

func (p *ServiceProvider) Close() error {
	p.notifierService.Close()
	return p.state.Close()
}

func App() *ServiceProvider {
	return &provider
}
