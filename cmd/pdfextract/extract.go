package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/docchat/internal/app"
	"github.com/nikhilbhutani/docchat/internal/document"
	"github.com/nikhilbhutani/docchat/internal/llm"
	"github.com/nikhilbhutani/docchat/pkg/datauri"
)

func newExtractCmd(root *rootOptions) *cobra.Command {
	var (
		keepImages bool
		imagesDir  string
	)
	cmd := &cobra.Command{
		Use:   "extract <file.pdf>",
		Short: "Print the extracted content of a PDF as JSON",
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

			var gw llm.Gateway
			if cfg.OCR.Engine == "vision" {
				gw = llm.NewGateway(cfg.LLM, logger)
			}
			pipeline, err := app.NewPipeline(cfg, gw, nil, logger)
			if err != nil {
				return err
			}

			content, err := pipeline.Extractor.Extract(cmd.Context(), datauri.Encode(document.MIMETypePDF, data))
			if err != nil {
				return fmt.Errorf("%s: %w", document.KindName(err), err)
			}

			if imagesDir != "" {
				if err := writeImages(imagesDir, content.Images); err != nil {
					return err
				}
			}
			if !keepImages {
				content.Images = [][]byte{}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(content)
		},
	}
	cmd.Flags().BoolVar(&keepImages, "images", false, "include base64 page images in the JSON output")
	cmd.Flags().StringVar(&imagesDir, "images-dir", "", "write rendered page images to this directory")
	return cmd
}

func writeImages(dir string, images [][]byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for i, img := range images {
		name := filepath.Join(dir, fmt.Sprintf("page-%03d.png", i+1))
		if err := os.WriteFile(name, img, 0o644); err != nil {
			return err
		}
	}
	return nil
}
