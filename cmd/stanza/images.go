package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/merenth/stanza"
)

var imagesCmd = &cobra.Command{
	Use:   "images",
	Short: "Image maintenance for the static asset tree",
}

var imagesConvertCmd = &cobra.Command{
	Use:   "convert [dir]",
	Short: "Convert images in a directory to capped-width JPEGs",
	Long: `Convert gives every file in the directory one conversion attempt:
decode, downscale to the width cap, re-encode as JPEG next to the
original. Files that are not images are skipped. Afterwards every
.png under the directory is removed, so the tree ends up JPEG-only.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runImagesConvert,
}

func init() {
	imagesCmd.AddCommand(imagesConvertCmd)
	rootCmd.AddCommand(imagesCmd)
}

func runImagesConvert(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}

	report, err := stanza.ConvertDir(dir)
	if err != nil {
		return err
	}

	fmt.Printf("%s: %d attempted, %d converted, %d skipped, %d .png removed\n",
		dir, report.Attempted, report.Converted, report.Skipped, report.Removed)
	for _, e := range report.Errors {
		fmt.Println("error:", e)
	}
	if len(report.Errors) > 0 {
		return fmt.Errorf("%d file(s) failed", len(report.Errors))
	}
	return nil
}
