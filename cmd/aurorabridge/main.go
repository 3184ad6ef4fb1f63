package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/RaghavSood/aurorabridge/apilog"
	"github.com/RaghavSood/aurorabridge/aurora"
	"github.com/RaghavSood/aurorabridge/balances"
	"github.com/RaghavSood/aurorabridge/bot"
	"github.com/RaghavSood/aurorabridge/config"
	"github.com/RaghavSood/aurorabridge/db"
	"github.com/RaghavSood/aurorabridge/near"
	"github.com/RaghavSood/aurorabridge/nep145"
	"github.com/RaghavSood/aurorabridge/registry"
	"github.com/RaghavSood/aurorabridge/resolver"
	"github.com/RaghavSood/aurorabridge/server"
	"github.com/RaghavSood/aurorabridge/session"
	"github.com/RaghavSood/aurorabridge/tracker"
	"github.com/RaghavSood/aurorabridge/transfers"
	"github.com/RaghavSood/aurorabridge/wallet"
)

func main() {
	configPath := flag.String("config", "config.json", "path to config file")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	// Keys
	auroraKey, err := wallet.AuroraKey(cfg.Mnemonic, cfg.WalletIndex)
	if err != nil {
		log.Fatalf("Failed to derive aurora key: %v", err)
	}
	nearKey, err := near.ParsePrivateKey(cfg.NearPrivateKey)
	if err != nil {
		log.Fatalf("Failed to parse near key: %v", err)
	}

	// Chain clients, every request recorded in api_requests
	nearClient := near.NewClient(cfg.NearRPCURL, apilog.NewHTTPClient("near", database))
	nearSigner := near.NewSigner(nearClient, cfg.NearAccountID, nearKey)

	rpcClient, err := rpc.DialOptions(ctx, cfg.AuroraRPCURL, rpc.WithHTTPClient(apilog.NewHTTPClient("aurora", database)))
	if err != nil {
		log.Fatalf("Failed to connect to aurora RPC at %s: %v", cfg.AuroraRPCURL, err)
	}
	ethClient := ethclient.NewClient(rpcClient)
	defer ethClient.Close()

	if chainID, err := ethClient.ChainID(ctx); err != nil {
		log.Warnf("Could not read aurora chain id: %v", err)
	} else if chainID.Int64() != cfg.AuroraChainID {
		log.Fatalf("Aurora RPC reports chain %s, config expects %d", chainID, cfg.AuroraChainID)
	}
	auroraClient := aurora.NewClient(ethClient, cfg.AuroraChainID, auroraKey)
	log.Printf("Connected to %s as %s", aurora.NetworkName(cfg.AuroraChainID), auroraClient.Address().Hex())

	sess, err := session.New(cfg.NearAccountID, auroraClient.Address().Hex())
	if err != nil {
		log.Fatalf("Invalid session: %v", err)
	}

	// Bridge core
	storage := nep145.NewManager(nearClient, nearSigner)
	reg := registry.New(registry.Config{
		Featured:         cfg.FeaturedTokens,
		CustodianAccount: cfg.CustodianAccountID,
		WNearAccount:     cfg.WNearAccountID,
	}, registry.Deps{
		Resolver: resolver.NewAddressResolver(nearClient, cfg.CustodianAccountID),
		Metadata: resolver.NewMetadataCache(nearClient),
		Balances: balances.NewReader(nearClient, auroraClient),
		Storage:  storage,
		Accounts: nearClient,
		KV:       database,
	})

	trk := tracker.New(tracker.Config{
		Interval:   cfg.TrackerInterval(),
		StuckAfter: cfg.StuckAfter(),
	}, database, auroraClient, nil)

	params := transfers.NewParamStore(database)
	initiator := transfers.NewInitiator(transfers.Config{
		CustodianAccount: cfg.CustodianAccountID,
		WNearAccount:     cfg.WNearAccountID,
	}, nearSigner, auroraClient, storage, trk, params)

	var b *bot.Bot
	if cfg.BotEnabled() {
		b, err = bot.New(cfg.TelegramToken, cfg.AdminUserID, sess, reg, trk)
		if err != nil {
			log.Fatalf("Failed to create bot: %v", err)
		}
		trk.SetNotifier(b)
	}

	srv := server.New(server.Config{
		Port:          cfg.Port,
		Password:      cfg.APIPassword,
		AuroraChainID: cfg.AuroraChainID,
		Network:       string(cfg.Network),
	}, sess, reg, initiator, trk, params)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		trk.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return srv.Start(gctx)
	})
	if b != nil {
		g.Go(func() error {
			return b.Run(gctx)
		})
	}

	log.Printf("Starting aurora bridge for %s", cfg.NearAccountID)
	if err := g.Wait(); err != nil {
		log.Fatalf("Bridge error: %v", err)
	}
	log.Println("Shut down")
}
