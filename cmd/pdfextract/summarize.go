package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/docchat/internal/app"
	"github.com/nikhilbhutani/docchat/internal/document"
	"github.com/nikhilbhutani/docchat/internal/llm"
	"github.com/nikhilbhutani/docchat/pkg/datauri"
)

func newSummarizeCmd(root *rootOptions) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "summarize <file.pdf>",
		Short: "Summarize a PDF with the configured LLM provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			gw := llm.NewGateway(cfg.LLM, logger)
			summarizer := app.NewSummarizer(cfg.Chat, gw, logger)

			var summary string
			if raw {
				summary, err = summarizer.SummarizeFile(cmd.Context(), datauri.File{MIMEType: document.MIMETypePDF, Data: data})
			} else {
				pipeline, perr := app.NewPipeline(cfg, gw, nil, logger)
				if perr != nil {
					return perr
				}
				content, perr := pipeline.Extractor.ExtractPDF(cmd.Context(), data)
				if perr != nil {
					return fmt.Errorf("%s: %w", document.KindName(perr), perr)
				}
				summary, err = summarizer.Summarize(cmd.Context(), content)
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), summary)
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "send the PDF to the model instead of extracting its text")
	return cmd
}
