package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zedseven/bmpsteg"
	"github.com/zedseven/bmpsteg/internal/config"
	"github.com/zedseven/bmpsteg/internal/logging"
)

// Program entry point

func main() {
	if err := new(app).execute(os.Args[1:], os.Stdout); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

// app carries what every subcommand needs once the persistent flags are parsed.
type app struct {
	configPath string
	logLevel   string
	logFile    string
	quiet      bool

	cfg      *config.Config
	logger   *zap.Logger
	closeLog func() error
}

// execute runs the command line. The logger is flushed and closed even when the command fails.
func (a *app) execute(args []string, out io.Writer) (err error) {
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(out)

	defer func() {
		if terr := a.teardown(); terr != nil && err == nil {
			err = terr
		}
	}()
	return root.Execute()
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "steg",
		Short:         "Hide a file inside a 24-bit bitmap, or dig it back out",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML file overriding the default settings")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug|info|warn|error")
	root.PersistentFlags().StringVar(&a.logFile, "log-file", "", "Also write JSON logs to this file (rotated)")
	root.PersistentFlags().BoolVarP(&a.quiet, "quiet", "q", false, "Only report errors")

	root.AddCommand(newHideCmd(a), newDigCmd(a), newInspectCmd(a), newVersionCmd())
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if cmd.Flags().Changed("log-file") {
		cfg.Log.File = a.logFile
	}
	if err = cfg.Validate(); err != nil {
		return err
	}

	if a.quiet {
		pterm.DisableOutput()
	} else {
		pterm.EnableOutput()
	}

	logger, closeLog, err := logging.New(cfg.LoggingOptions(a.quiet), os.Stderr)
	if err != nil {
		return err
	}
	a.cfg, a.logger, a.closeLog = cfg, logger, closeLog
	return nil
}

func (a *app) teardown() error {
	var errs []error
	if a.logger != nil {
		if err := a.logger.Sync(); err != nil {
			errs = append(errs, fmt.Errorf("flush log: %w", err))
		}
	}
	if a.closeLog != nil {
		if err := a.closeLog(); err != nil {
			errs = append(errs, fmt.Errorf("close log: %w", err))
		}
	}
	a.logger, a.closeLog = nil, nil
	return errors.Join(errs...)
}

// Subcommands

func newHideCmd(a *app) *cobra.Command {
	var imgPath, filePath, outPath, ext string
	var strict bool

	cmd := &cobra.Command{
		Use:   "hide",
		Short: "Hide a file inside a bitmap",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if outPath == "" {
				outPath = a.cfg.StegoImage
			}
			if err := requireBMP("img", imgPath); err != nil {
				return err
			}
			if err := requireBMP("out", outPath); err != nil {
				return err
			}
			if !cmd.Flags().Changed("strict") {
				strict = a.cfg.Strict
			}

			res, err := bmpsteg.Hide(bmpsteg.HideConfig{
				ImagePath: imgPath,
				FilePath:  filePath,
				Extension: ext,
				OutPath:   outPath,
				Strict:    strict,
				Logger:    a.logger,
			})
			if err != nil {
				return explain("encode failed", err)
			}

			pterm.Success.Printfln("Hid '%v' (%v) in '%v'.", filePath, humanize.Bytes(uint64(res.PayloadSize)), res.OutPath)
			pterm.Info.Printfln("Used %v of %v carrier bytes.", humanize.Comma(res.Consumed), humanize.Comma(res.Capacity))
			return nil
		},
	}

	cmd.Flags().StringVar(&imgPath, "img", "", "The carrier bitmap (.bmp)")
	cmd.Flags().StringVar(&filePath, "file", "", "The file to hide")
	cmd.Flags().StringVar(&outPath, "out", "", "The bitmap to write (default from config, stego.bmp)")
	cmd.Flags().StringVar(&ext, "ext", "", "Extension to store instead of the one in --file")
	cmd.Flags().BoolVar(&strict, "strict", false, "Refuse carriers that are not uncompressed 24-bit bitmaps")
	_ = cmd.MarkFlagRequired("img")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newDigCmd(a *app) *cobra.Command {
	var imgPath, outBase string

	cmd := &cobra.Command{
		Use:   "dig",
		Short: "Extract a hidden file from a bitmap",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireBMP("img", imgPath); err != nil {
				return err
			}
			if outBase == "" {
				outBase = a.cfg.OutputBase
			}

			res, err := bmpsteg.Dig(bmpsteg.DigConfig{ImagePath: imgPath, OutBase: outBase, Logger: a.logger})
			if err != nil {
				return explain("decode failed", err)
			}

			pterm.Success.Printfln("Recovered '%v' (%v).", res.OutPath, humanize.Bytes(uint64(res.PayloadSize)))
			return nil
		},
	}

	cmd.Flags().StringVar(&imgPath, "img", "", "The bitmap holding the hidden file (.bmp)")
	cmd.Flags().StringVar(&outBase, "out", "", "Output file name without extension (default from config, output_stego)")
	_ = cmd.MarkFlagRequired("img")
	return cmd
}

func newInspectCmd(a *app) *cobra.Command {
	var imgPath, ext string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show how much a bitmap can hold and whether it already holds something",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := bmpsteg.Inspect(imgPath)
			if err != nil {
				return err
			}
			a.logger.Debug("Inspected image", zap.String("path", imgPath), zap.Stringer("geometry", report.Geometry))

			largest := "nothing fits"
			if max := report.MaxPayload(len(ext)); max >= 0 {
				largest = humanize.Bytes(uint64(max))
			}
			decodable := "yes"
			if !report.Decodable {
				decodable = "no (" + report.DecodeError + ")"
			}
			hidden := "none"
			if report.Embedded {
				hidden = fmt.Sprintf("%v, %v", report.Extension, humanize.Bytes(uint64(report.PayloadSize)))
			}

			return pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData{
				{"Property", "Value"},
				{"File", fmt.Sprintf("%v (%v)", report.Path, humanize.Bytes(uint64(report.FileSize)))},
				{"Dimensions", fmt.Sprintf("%d x %d", report.Geometry.Width, report.Geometry.Height)},
				{"Bits per pixel", fmt.Sprintf("%d", report.Geometry.BitsPerPixel)},
				{"Capacity", humanize.Comma(report.Capacity) + " carrier bytes"},
				{fmt.Sprintf("Largest %v file", ext), largest},
				{"Bitmap decoder", decodable},
				{"Plain 24-bit", fmt.Sprintf("%t", report.Strict)},
				{"Hidden file", hidden},
			}).Render()
		},
	}

	cmd.Flags().StringVar(&imgPath, "img", "", "The bitmap to inspect")
	cmd.Flags().StringVar(&ext, "ext", ".txt", "Extension used to compute the largest file that fits")
	_ = cmd.MarkFlagRequired("img")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "steg v%v\n", bmpsteg.Version())
		},
	}
}

// Helper functions

func requireBMP(flag, path string) error {
	if !strings.HasSuffix(strings.ToLower(path), ".bmp") {
		return fmt.Errorf("--%v must name a .bmp file, got '%v'", flag, path)
	}
	return nil
}

// explain wraps err with the failed operation and a hint for the errors a user can act on.
func explain(op string, err error) error {
	var (
		capErr    *bmpsteg.CapacityError
		formatErr *bmpsteg.FormatError
	)
	switch {
	case errors.As(err, &capErr) && capErr.Required > capErr.Capacity:
		pterm.Warning.Printfln("Pick a larger carrier image or a smaller file (short by %v bytes).", humanize.Comma(capErr.Required-capErr.Capacity))
	case errors.As(err, &formatErr):
		pterm.Warning.Println("The image does not look like one produced by 'steg hide'.")
	}
	return fmt.Errorf("%v: %w", op, err)
}
