// Command sqlgate runs the gateway and manages its bearer tokens.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/ericfisherdev/sqlgate/internal/config"
	"github.com/ericfisherdev/sqlgate/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "sqlgate",
	Short: "Configuration-driven HTTP gateway in front of SQL Server",
	Long: `sqlgate ingests webhook payloads into dynamically provisioned tables and
serves simple reads from configured endpoints. Requests are authenticated with
bearer tokens managed by the "token" commands.

Configuration comes from SQLGATE_* environment variables; environments and
endpoints are read from the YAML file named by SQLGATE_CONFIG_FILE.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// setup loads configuration and installs the configured logger as the slog
// default. The returned closer flushes the log file, if any.
func setup() (*config.Config, *slog.Logger, io.Closer, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}

	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, nil, err
	}
	slog.SetDefault(logger)

	return cfg, logger, closer, nil
}
