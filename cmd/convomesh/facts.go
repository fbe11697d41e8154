package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/hupe1980/convomesh/core"
	"github.com/hupe1980/convomesh/memory"
)

var factsUser string

var factsCmd = &cobra.Command{
	Use:   "facts",
	Short: "Inspect and edit remembered facts",
	Long: `Inspect and edit the facts sessions remember. Without --user the
commands address the global tier shared by every user.`,
}

var factsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List global facts and the facts of --user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMemory(cmd, func(svc *memory.Service) error {
			facts, err := svc.GetAll(cmd.Context(), factsUser)
			if err != nil {
				return err
			}
			keys := make([]string, 0, len(facts))
			for k := range facts {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", k, facts[k])
			}
			return nil
		})
	},
}

var factsSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Save a fact",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMemory(cmd, func(svc *memory.Service) error {
			scope := core.GlobalScope
			if factsUser != "" {
				scope = core.ScopedTo(factsUser)
			}
			if _, err := svc.Save(cmd.Context(), args[0], args[1], scope); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s (%s)\n", args[0], scope)
			return nil
		})
	},
}

var factsDeleteCmd = &cobra.Command{
	Use:   "delete KEY",
	Short: "Delete a fact following the configured delete policy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMemory(cmd, func(svc *memory.Service) error {
			removed, err := svc.Delete(cmd.Context(), args[0], factsUser)
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("fact %q not found", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		})
	},
}

func init() {
	factsCmd.PersistentFlags().StringVarP(&factsUser, "user", "u", "", "User identity the facts belong to")
	factsCmd.AddCommand(factsListCmd, factsSetCmd, factsDeleteCmd)
}

// withMemory opens the configured storage and runs fn on its memory layer.
func withMemory(cmd *cobra.Command, fn func(svc *memory.Service) error) error {
	if cfg.Storage.Driver == "memory" {
		return fmt.Errorf("storage driver memory keeps no facts between runs")
	}
	st, err := openStores(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	svc, err := newMemory(cfg, st.facts)
	if err != nil {
		return err
	}
	return fn(svc)
}
