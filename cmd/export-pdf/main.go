// Command export-pdf converts an HTML file into a styled PDF.
//
//	export-pdf <input_html> <output_pdf>
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pdfexport/internal/config"
	"pdfexport/internal/converter"
	"pdfexport/internal/domain"
	"pdfexport/internal/infra/chrome"
	"pdfexport/internal/infra/logging"
)

const usage = "Usage: export-pdf <input_html> <output_pdf>"

var errUsage = errors.New("wrong number of arguments")

// rendererFactory builds the renderer once flags are resolved.
type rendererFactory func(cfg config.PDFConfig) domain.Renderer

func chromeRenderer(cfg config.PDFConfig) domain.Renderer {
	return chrome.NewRenderer(cfg)
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, chromeRenderer))
}

// run executes the CLI and returns the process exit code.
func run(args []string, stdout, stderr io.Writer, newRenderer rendererFactory) int {
	cmd := newRootCmd(newRenderer)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintln(stderr, "Error:", err)
		}
		return 1
	}
	return 0
}

func newRootCmd(newRenderer rendererFactory) *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:           "export-pdf <input_html> <output_pdf>",
		Short:         "Convert an HTML file to PDF",
		Long:          "export-pdf wraps the HTML in a printable document with the default stylesheet and renders it to PDF with headless Chrome.",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 2 {
				fmt.Fprintln(cmd.OutOrStdout(), usage)
				return errUsage
			}

			if v.GetBool("verbose") {
				logging.SetLogLevel("debug")
			} else {
				logging.SetLogLevel("warn")
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if !utf8.Valid(data) {
				return fmt.Errorf("%s is not valid UTF-8 text", args[0])
			}

			cfg := pdfConfig(v)
			conv := converter.New(newRenderer(cfg))
			out, err := conv.Convert(cmd.Context(), string(data), args[1])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "PDF generated successfully: %s\n", out)
			return nil
		},
	}

	cmd.Flags().String("chrome-path", "", "Chrome/Chromium executable (default: $CHROME_BIN or auto-detect)")
	cmd.Flags().Bool("no-sandbox", false, "run Chrome without its sandbox (needed as root in containers)")
	cmd.Flags().Duration("timeout", time.Minute, "maximum time for one render")
	cmd.Flags().BoolP("verbose", "v", false, "log renderer activity to stderr")

	v.SetEnvPrefix("EXPORT_PDF")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindPFlags(cmd.Flags())

	return cmd
}

func pdfConfig(v *viper.Viper) config.PDFConfig {
	cfg := config.Default().PDF
	cfg.ChromePath = v.GetString("chrome-path")
	if cfg.ChromePath == "" {
		cfg.ChromePath = os.Getenv("CHROME_BIN")
	}
	cfg.ChromeNoSandbox = v.GetBool("no-sandbox")
	cfg.ChromePoolSize = 0
	if secs := int(v.GetDuration("timeout").Seconds()); secs > 0 {
		cfg.TimeoutSecs = secs
	}
	return cfg
}
