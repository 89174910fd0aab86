package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"sorteio/internal/repository"
	"sorteio/internal/services"

	"github.com/spf13/cobra"
)

func adjudicateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "adjudicate --draw 1ST --draw 2ND --draw 3RD",
		Short: "Decide the three prizes from the Loteria Federal extractions",
		Long: `Freezes the lucky-number pool, applies the campaign rules to the three
Loteria Federal extractions and prints the result.

The pool comes from --numbers (CSV: participant_id,name,cpf,number[,tier])
or, without it, from the configured registry database.`,
		RunE: runAdjudicate,
	}

	cmd.Flags().StringSliceP("draw", "d", nil, "Loteria Federal extraction, once per prize in order")
	cmd.Flags().StringP("numbers", "n", "", "CSV file with the lucky numbers")
	cmd.Flags().StringP("format", "f", "text", "Output format (text, json, csv)")
	cmd.Flags().Bool("save", false, "Store the awards in the registry database")
	cmd.Flags().String("campaign", "", "Campaign ID (default from config)")
	return cmd
}

func runAdjudicate(cmd *cobra.Command, args []string) error {
	rawDraws, _ := cmd.Flags().GetStringSlice("draw")
	numbersPath, _ := cmd.Flags().GetString("numbers")
	format, _ := cmd.Flags().GetString("format")
	save, _ := cmd.Flags().GetBool("save")

	cfg, db, cleanup, err := setup(cmd, save)
	if err != nil {
		return err
	}
	defer cleanup()

	campaignID, _ := cmd.Flags().GetString("campaign")
	if campaignID == "" {
		campaignID = cfg.Campaign.DefaultID
	}

	if save && db == nil {
		return errors.New("--save needs database.dsn")
	}
	var store services.AwardStore
	var source services.NumberSource
	if db != nil {
		source = repository.NewNumberRepository(db)
		if save {
			store = repository.NewAwardRepository(db)
		}
	}
	svc := services.NewCampaignService(source, store)

	if numbersPath != "" {
		f, err := os.Open(numbersPath)
		if err != nil {
			return err
		}
		numbers, err := services.ParseNumbersCSV(f)
		f.Close()
		if err != nil {
			return err
		}
		if err := svc.ReplaceNumbers(campaignID, numbers); err != nil {
			return err
		}
	} else if _, err := svc.LoadNumbers(cmd.Context(), campaignID); err != nil {
		return err
	}

	if _, err := svc.SetDraws(campaignID, rawDraws); err != nil {
		return err
	}
	run, err := svc.Adjudicate(cmd.Context(), campaignID)
	if err != nil {
		return err
	}
	return writeRun(cmd, *run, format)
}

func writeRun(cmd *cobra.Command, run services.AdjudicationRun, format string) error {
	out := cmd.OutOrStdout()
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	case "csv":
		return services.WriteAwardsCSV(out, run.Awards)
	case "text":
		return services.RenderReport(out, run)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report [run-id]",
		Short: "Print the disclosure report of a stored adjudication run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, cleanup, err := setup(cmd, false)
			if err != nil {
				return err
			}
			defer cleanup()
			if db == nil {
				return errors.New("report needs database.dsn")
			}

			run, err := repository.NewAwardRepository(db).FindRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			format, _ := cmd.Flags().GetString("format")
			return writeRun(cmd, *run, format)
		},
	}
	cmd.Flags().StringP("format", "f", "text", "Output format (text, json, csv)")
	return cmd
}
