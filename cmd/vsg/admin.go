package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vsg/api/internal/export"
	"vsg/api/internal/slot"
)

var (
	exportFormat  string
	exportOut     string
	exportArchive bool
	resetYes      bool
	historyLimit  int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the full document to a file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStack(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		result, err := st.export.Export(cmd.Context(), export.Request{
			Format:  export.Format(exportFormat),
			Archive: exportArchive,
		})
		if err != nil {
			return err
		}
		out := exportOut
		if out == "" {
			out = result.Filename
		}
		if err := os.WriteFile(out, result.Data, 0o644); err != nil {
			return fmt.Errorf("write export: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, len(result.Data))
		if result.ArchiveKey != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "archived as %s/%s\n", cfg.MinioBucket, result.ArchiveKey)
		}
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Merge an exported document over the stored one",
	Long: `Reads a JSON export and merges it over the current document. The file must
contain news, schedule, rules, teams, faq, users and profiles as lists; otherwise
nothing is changed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read import: %w", err)
		}
		st, err := openStack(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.store.ImportFullDatabase(cmd.Context(), payload); err != nil {
			return err
		}
		st.search.ReindexAll()
		fmt.Fprintf(cmd.OutOrStdout(), "imported %s\n", args[0])
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Replace the stored document with seed data",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !resetYes {
			return errors.New("reset erases every record; rerun with --yes to confirm")
		}
		st, err := openStack(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		st.store.ResetDatabase(cmd.Context())
		st.search.ReindexAll()
		logger.Info("document reset", zap.String("backend", cfg.StorageBackend))
		fmt.Fprintln(cmd.OutOrStdout(), "document reset to seed data")
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored revisions of the document (git backend only)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		gitSlot, err := slot.NewGit(cfg.GitDir, cfg.StorageKey)
		if err != nil {
			return err
		}
		defer gitSlot.Close()

		revisions, err := gitSlot.History(historyLimit)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "HASH\tDATE\tMESSAGE")
		for _, rev := range revisions {
			hash := rev.Hash
			if len(hash) > 10 {
				hash = hash[:10]
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", hash, rev.CreatedAt.Format("2006-01-02 15:04:05"), rev.Message)
		}
		return w.Flush()
	},
}
