package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-faceverify/pkg/web"
)

func checkCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "check <image>",
		Short: "Run the anti-spoof heuristics on a local image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readImage(args[0], g.cfg.MaxImageBytes)
			if err != nil {
				return err
			}

			v, err := newChecker(g.cfg).AntiSpoofBytes(raw)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), web.NewAntiSpoofResponse(v))
		},
	}
}

func verifyCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <image>",
		Short: "Estimate age and gender for a local image with the configured classifier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readImage(args[0], g.cfg.MaxImageBytes)
			if err != nil {
				return err
			}

			svc, cleanup, err := newService(cmd.Context(), g.cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := svc.VerifyBytes(cmd.Context(), raw)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), web.NewVerifyResponse(res))
		},
	}
}

// readImage reads at most maxBytes+1 so an oversized file is still rejected
// by the validator without loading it whole.
func readImage(path string, maxBytes int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	raw, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return raw, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
