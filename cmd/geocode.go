package main

import (
	"encoding/json"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/inspection-map/internal/runlog"
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode <address>",
	Short: "Resolve one address the way a run would",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		address := strings.Join(args, " ")
		r := newResolver(cfg, newGeocoder(cfg), runlog.Nop())

		coords, err := r.Resolve(ctx, address)
		if err != nil {
			return eris.Wrap(err, "geocode")
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"address":     address,
			"lat":         coords.Latitude,
			"lng":         coords.Longitude,
			"source":      coords.Source,
			"approximate": coords.Approximate,
		})
	},
}

func init() {
	rootCmd.AddCommand(geocodeCmd)
}
