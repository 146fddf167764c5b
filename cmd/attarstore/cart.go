package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var purgeAge time.Duration

var cartCmd = &cobra.Command{
	Use:   "cart",
	Short: "Saved cart maintenance",
}

var cartPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete saved carts idle for longer than --older-than (sql stores only)",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := loadApp()
		if err != nil {
			return err
		}
		defer application.Close(cmd.Context())
		if application.CartRepo == nil {
			return errors.New("purge needs CART_STORE=postgres or sqlite; redis carts expire through CART_TTL")
		}
		if err := application.Migrate(cmd.Context()); err != nil {
			return err
		}
		n, err := application.CartRepo.PurgeOlderThan(cmd.Context(), time.Now().Add(-purgeAge))
		if err != nil {
			return err
		}
		fmt.Printf("purged %d cart(s)\n", n)
		return nil
	},
}

func init() {
	cartPurgeCmd.Flags().DurationVar(&purgeAge, "older-than", 30*24*time.Hour, "idle time before a cart is purged")
	cartCmd.AddCommand(cartPurgeCmd)
	rootCmd.AddCommand(cartCmd)
}
