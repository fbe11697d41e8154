package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest FILE...",
	Short: "Embed documents into the postgres knowledge table",
	Long: `Split each file into paragraph chunks, embed them with the configured
embeddings provider and store them in the documents table searched by
search_knowledge. Requires the postgres storage driver.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Storage.Driver != "postgres" {
			return errors.New("ingest requires the postgres storage driver")
		}
		ctx := cmd.Context()
		embedder, err := newEmbedder(ctx, cfg)
		if err != nil {
			return err
		}
		st, err := openStores(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		total := 0
		err = eachDocument(args, cfg.Knowledge.ChunkSize, func(name string, chunks []string) error {
			for _, chunk := range chunks {
				vec, err := embedder.Embed(ctx, chunk)
				if err != nil {
					return err
				}
				if err := st.index.AddDocument(ctx, name, chunk, vec); err != nil {
					return err
				}
			}
			total += len(chunks)
			logger.Info("knowledge.ingest", "document", name, "chunks", len(chunks))
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ingested %d chunks from %d documents\n", total, len(args))
		return nil
	},
}
