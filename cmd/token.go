package cmd

import (
	"fmt"
	"log"

	"github.com/frahmantamala/payment-verification/internal/auth"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token [subject]",
	Short: "Mint a bearer token",
	Long:  `Mint a bearer token for a device forwarder (scope ingest) or an admin console (scope admin).`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		tokens := auth.NewTokenManager(cfg.Security.TokenSecret, cfg.Security.TokenDuration)
		token, err := tokens.Mint(args[0], tokenScope)
		if err != nil {
			log.Fatalf("failed to mint token: %v", err)
		}

		fmt.Println(token)
	},
}

var tokenScope string

func init() {
	tokenCmd.Flags().StringVar(&tokenScope, "scope", auth.ScopeIngest, "Token scope: ingest or admin")

	rootCmd.AddCommand(tokenCmd)
}
