package app

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/voltpacks/packmint/internal/app/services/allowance"
	"github.com/voltpacks/packmint/internal/app/services/feed"
	"github.com/voltpacks/packmint/internal/app/services/inventory"
	"github.com/voltpacks/packmint/internal/app/services/social"
	"github.com/voltpacks/packmint/internal/app/services/txflow"
	"github.com/voltpacks/packmint/internal/app/services/wallet"
	"github.com/voltpacks/packmint/internal/app/storage"
	"github.com/voltpacks/packmint/internal/app/storage/memory"
	"github.com/voltpacks/packmint/internal/app/system"
	"github.com/voltpacks/packmint/internal/chain"
	"github.com/voltpacks/packmint/internal/config"
	"github.com/voltpacks/packmint/internal/gateway"
	"github.com/voltpacks/packmint/pkg/logger"
)

// Stores encapsulates persistence dependencies. A nil store defaults to
// the in-memory implementation.
type Stores struct {
	Inventory storage.KeyValueStore
}

// Application ties the pack opening services together and manages their
// lifecycle. Flow and Feed are nil when no chain endpoint is configured;
// the HTTP layer reports those features unavailable.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Config    *config.Config
	Resolver  *gateway.Resolver
	Inventory *inventory.Service
	Wallets   *wallet.Registry
	Social    *social.Service

	Flow      *txflow.Machine
	Feed      *feed.Service
	FeedCache *feed.Refresher
}

// Log exposes the application logger to surrounding layers.
func (a *Application) Log() *logger.Logger { return a.log }

// New builds a fully initialised application from configuration.
func New(cfg *config.Config, stores Stores, log *logger.Logger) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logger.NewDefault("app")
	}

	if stores.Inventory == nil {
		stores.Inventory = memory.New()
	}

	manager := system.NewManager()

	var resolverOpts []gateway.Option
	if len(cfg.Assets.Gateways) >= 2 {
		resolverOpts = append(resolverOpts, gateway.WithMirrors(cfg.Assets.Gateways))
	}
	resolver := gateway.New(log, resolverOpts...)

	inventorySvc := inventory.NewService(stores.Inventory, log)
	registry := wallet.NewRegistry()
	socialSvc := social.NewService(cfg.Social.SampleEndpoint, []byte(cfg.Social.SigningKey), log)

	appl := &Application{
		manager:   manager,
		log:       log,
		Config:    cfg,
		Resolver:  resolver,
		Inventory: inventorySvc,
		Wallets:   registry,
		Social:    socialSvc,
	}

	if cfg.Chain.RPCURL == "" {
		log.Warn("chain RPC URL not set; purchase flow and feed disabled")
		return appl, nil
	}

	client, err := chain.NewClient(chain.Config{
		RPCURL:            cfg.Chain.RPCURL,
		RequestsPerSecond: cfg.Chain.RequestsPerSecond,
	})
	if err != nil {
		return nil, fmt.Errorf("chain client: %w", err)
	}

	token := common.HexToAddress(cfg.Chain.TokenAddress)
	pack := common.HexToAddress(cfg.Chain.PackAddress)
	reader := chain.NewContractReader(client, token, pack)

	ledger, err := allowance.NewLedger(reader, pack.Hex(), cfg.Sale.UnitPrice, cfg.Sale.TokenDecimals, log)
	if err != nil {
		return nil, fmt.Errorf("allowance ledger: %w", err)
	}

	policy := wallet.NewPolicy(registry, nil, log)
	submitter := txflow.NewChainSubmitter(client, token, pack, log)

	flow := txflow.NewMachine(txflow.Config{
		Wallet:      policy,
		Ledger:      ledger,
		Submitter:   submitter,
		Decoder:     chain.NewDecoder(pack),
		Inventory:   inventorySvc,
		BaseLocator: cfg.BaseLocator(),
		TotalArt:    cfg.Assets.TotalArtCount,
		Log:         log,
	})
	appl.Flow = flow
	if err := manager.Register(flow); err != nil {
		return nil, fmt.Errorf("register txflow: %w", err)
	}

	source := feed.NewChainSource(client, reader, pack, cfg.Chain.FeedWindow)
	feedSvc := feed.NewService(source, cfg.BaseLocator(), log).WithTotalArt(cfg.Assets.TotalArtCount)
	feedCache := feed.NewRefresher(feedSvc, log)
	appl.Feed = feedSvc
	appl.FeedCache = feedCache
	if err := manager.Register(feedCache); err != nil {
		return nil, fmt.Errorf("register feed refresher: %w", err)
	}

	return appl, nil
}

// Start brings up all registered background services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop shuts down background services in reverse order.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
