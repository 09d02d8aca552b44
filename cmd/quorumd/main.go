package main

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/tyler-smith/go-bip39"

	"github.com/walletmesh/quorumd/coordinator/api/http_api"
	"github.com/walletmesh/quorumd/coordinator/config"
	"github.com/walletmesh/quorumd/coordinator/services"
)

const flagConfigPath = "config"

func init() {
	rootCmd.PersistentFlags().String(flagConfigPath, "", "Path to a config file (optional, environment variables with the QUORUMD_ prefix override it)")
}

func startCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "starts the proposal coordination daemon",
		Run: func(cmd *cobra.Command, args []string) {
			configPath, err := cmd.Flags().GetString(flagConfigPath)
			if err != nil {
				log.Fatalf("failed to read configuration: %v", err)
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				log.Fatalf("failed to load config: %v", err)
			}

			ctx, cancel := context.WithCancel(context.Background())

			sp := services.App()
			if err := sp.Init(cfg); err != nil {
				log.Fatalf("failed to init services: %v", err)
			}

			server := &http_api.RESTApiProvider{}
			if err := server.NewServer(cfg, sp); err != nil {
				log.Fatalf("failed to init HTTP server: %v", err)
			}

			go sp.GetSweeperService().Run(ctx)

			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigs

				log.Println("Received signal, stopping daemon...")
				cancel()
				if err := server.Stop(context.Background()); err != nil {
					log.Printf("failed to stop HTTP server: %v", err)
				}
				if err := sp.Close(); err != nil {
					log.Printf("failed to close services: %v", err)
				}

				log.Println("Daemon stopped, exiting")
				os.Exit(0)
			}()

			log.Printf("listening on %s", cfg.HttpApiConfig.ListenAddr())
			if err := server.Start(); err != nil {
				log.Fatalf("HTTP server error: %v", err)
			}
		},
	}
}

// genValidatorKeyCommand produces an ed25519 keypair for a passkey-style
// validator along with a BIP-39 mnemonic that recovers it. Intended for
// local setups and testing; production passkeys come from the device.
func genValidatorKeyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "gen_validator_key",
		Short: "generates an ed25519 validator keypair with a recovery mnemonic",
		RunE: func(cmd *cobra.Command, args []string) error {
			entropy, err := bip39.NewEntropy(256)
			if err != nil {
				return fmt.Errorf("failed to generate entropy: %w", err)
			}
			mnemonic, err := bip39.NewMnemonic(entropy)
			if err != nil {
				return fmt.Errorf("failed to generate mnemonic: %w", err)
			}

			seed := bip39.NewSeed(mnemonic, "")
			priv := ed25519.NewKeyFromSeed(seed[:ed25519.SeedSize])
			pub := priv.Public().(ed25519.PublicKey)

			color.New(color.Bold).Println("Public key:")
			fmt.Println(hex.EncodeToString(pub))
			color.New(color.Bold).Println("Recovery mnemonic (store it offline):")
			color.New(color.FgYellow).Println(mnemonic)
			return nil
		},
	}
}

var rootCmd = &cobra.Command{
	Use:   "quorumd",
	Short: "multi-signature proposal coordination daemon",
}

func main() {
	rootCmd.AddCommand(
		startCommand(),
		genValidatorKeyCommand(),
	)
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Failed to execute root command: %v", err)
	}
}
