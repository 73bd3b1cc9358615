package cmd

import (
	"encoding/json"

	"auralend/core"

	"github.com/fox-one/pkg/store/db"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
)

var reserveCmd = &cobra.Command{
	Use:   "reserve",
	Short: "manage reserves",
}

// auralend reserve add <asset_id> <symbol> <feed_id> key=value...
var reserveAddCmd = &cobra.Command{
	Use:   "add <asset_id> <symbol> <feed_id> [key=value...]",
	Short: "create a reserve",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		database := provideDatabase()
		defer database.Close()

		reserve := &core.Reserve{
			AssetID:                 args[0],
			Symbol:                  args[1],
			OracleFeedID:            args[2],
			Decimals:                8,
			LoanToValueBps:          7500,
			LiquidationThresholdBps: 8000,
			LiquidationPenaltyBps:   500,
			BaseRateBps:             200,
			MultiplierBps:           1000,
			JumpMultiplierBps:       30000,
			OptimalUtilizationBps:   8000,
			ProtocolFeeBps:          1000,
			CloseFactorBps:          core.DefaultCloseFactorBps,
			Capabilities:            core.AllCapabilities(),
		}

		flags := cmd.Flags()
		if v, err := flags.GetString("decimals"); err == nil && v != "" {
			reserve.Decimals = cast.ToUint8(v)
		}
		if v, err := flags.GetUint64("ltv"); err == nil && v > 0 {
			reserve.LoanToValueBps = v
		}
		if v, err := flags.GetUint64("threshold"); err == nil && v > 0 {
			reserve.LiquidationThresholdBps = v
		}
		if v, err := flags.GetUint64("penalty"); err == nil && v > 0 {
			reserve.LiquidationPenaltyBps = v
		}

		if err := reserve.Validate(); err != nil {
			return err
		}

		reserveStore := provideReserveStore(database)
		return database.Tx(func(tx *db.DB) error {
			return reserveStore.Save(cmd.Context(), tx, reserve)
		})
	},
}

var reserveListCmd = &cobra.Command{
	Use:   "list",
	Short: "list all reserves",
	RunE: func(cmd *cobra.Command, args []string) error {
		database := provideDatabase()
		defer database.Close()

		reserves, err := provideReserveStore(database).All(cmd.Context())
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(reserves, "", "  ")
		if err != nil {
			return err
		}

		cmd.Println(string(out))
		return nil
	},
}

// recovery path for a lock left behind by a crashed operation
var reserveForceUnlockCmd = &cobra.Command{
	Use:   "force-unlock <asset_id>",
	Short: "clear a stuck reserve lock",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database := provideDatabase()
		defer database.Close()

		reserveStore := provideReserveStore(database)
		reserve, err := reserveStore.Find(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		reserve.ForceUnlock()
		return database.Tx(func(tx *db.DB) error {
			return reserveStore.Update(cmd.Context(), tx, reserve)
		})
	},
}

// auralend reserve claim-fees <asset_id> <amount>
var reserveClaimFeesCmd = &cobra.Command{
	Use:   "claim-fees <asset_id> <amount>",
	Short: "move accumulated protocol fees out of a reserve",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		database := provideDatabase()
		defer database.Close()

		reserveStore := provideReserveStore(database)
		reserve, err := reserveStore.Find(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		reserveSrv := provideReserveService(reserveStore)
		return database.Tx(func(tx *db.DB) error {
			return reserveSrv.ClaimFees(cmd.Context(), tx, reserve, cast.ToUint64(args[1]))
		})
	},
}

func init() {
	rootCmd.AddCommand(reserveCmd)
	reserveCmd.AddCommand(reserveAddCmd, reserveListCmd, reserveForceUnlockCmd, reserveClaimFeesCmd)

	reserveAddCmd.Flags().String("decimals", "8", "asset decimals")
	reserveAddCmd.Flags().Uint64("ltv", 0, "loan to value in bps")
	reserveAddCmd.Flags().Uint64("threshold", 0, "liquidation threshold in bps")
	reserveAddCmd.Flags().Uint64("penalty", 0, "liquidation penalty in bps")
}
