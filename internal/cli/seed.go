package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/iurnickita/abetos/internal/rules"
	"github.com/iurnickita/abetos/internal/service"
)

// SeedFile - формат YAML-файла заполнения.
type SeedFile struct {
	Rules   []service.RuleSeed   `yaml:"rules"`
	Rewards []service.RewardSeed `yaml:"rewards"`
}

func loadSeedFile(path string) (SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SeedFile{}, err
	}
	var file SeedFile
	if err = yaml.Unmarshal(data, &file); err != nil {
		return SeedFile{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return file, nil
}

func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed earning rules and rewards",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "rules [file.yaml]",
		Short: "Upsert earning rules from a file or the default set",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seeds := service.RuleSeeds(rules.DefaultRules)
			if len(args) == 1 {
				file, err := loadSeedFile(args[0])
				if err != nil {
					return err
				}
				seeds = file.Rules
			}

			svc, s, err := openService(rootOpts)
			if err != nil {
				return err
			}
			defer s.Close()

			report, err := svc.SeedRules(cmd.Context(), seeds)
			if err != nil {
				return err
			}
			return renderSeedReport(cmd.OutOrStdout(), rootOpts.Format, "rules", report)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rewards [file.yaml]",
		Short: "Upsert rewards from a file or the demo catalog",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seeds := service.DefaultRewards(time.Now())
			if len(args) == 1 {
				file, err := loadSeedFile(args[0])
				if err != nil {
					return err
				}
				seeds = file.Rewards
			}

			svc, s, err := openService(rootOpts)
			if err != nil {
				return err
			}
			defer s.Close()

			report, err := svc.SeedRewards(cmd.Context(), seeds)
			if err != nil {
				return err
			}
			return renderSeedReport(cmd.OutOrStdout(), rootOpts.Format, "rewards", report)
		},
	})

	return cmd
}
