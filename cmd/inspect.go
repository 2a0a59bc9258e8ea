package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/overmindtech/doinspect/inspect"
	"github.com/overmindtech/doinspect/logging"
	"github.com/overmindtech/doinspect/tracing"
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Inspects an appliance and prints the result",
	Long: `Inspects the local appliance, or the one given by --target-host, and
prints the result envelope including the declaration.

The command exits non-zero when the inspection did not succeed; the
envelope is printed either way.`,
	PreRun: func(cmd *cobra.Command, args []string) {
		// Bind these to viper
		err := viper.BindPFlags(cmd.Flags())
		if err != nil {
			log.WithError(err).Fatal("could not bind `inspect` flags")
		}
	},
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		defer tracing.RecoverToError(ctx, "doinspect.inspect", &err)

		return runInspect(ctx)
	},
}

// queryFromViper maps the target flags onto request parameters, so the CLI
// is validated exactly like the HTTP front end.
func queryFromViper() url.Values {
	return queryFrom(viper.GetViper())
}

// queryFrom passes values through as given. An explicit port of 0 is kept
// so that it reaches validation.
func queryFrom(v *viper.Viper) url.Values {
	query := url.Values{}

	set := func(param, value string) {
		if value != "" {
			query.Set(param, value)
		}
	}

	set(inspect.ParamTargetHost, v.GetString("target-host"))
	set(inspect.ParamTargetPort, v.GetString("target-port"))
	set(inspect.ParamTargetUsername, v.GetString("target-username"))
	set(inspect.ParamTargetPassword, v.GetString("target-password"))

	return query
}

func runInspect(ctx context.Context) error {
	inspector, err := inspectorFromViper()
	if err != nil {
		return err
	}

	logger := logging.NewLogger(log.WithField("doinspect.frontend", "cli"))

	result := inspector.Inspect(ctx, logger, queryFromViper())

	if err := writeResult(os.Stdout, result, viper.GetString("output")); err != nil {
		return err
	}

	if result.Code != 200 {
		return fmt.Errorf("inspection finished with %d %s", result.Code, result.Status)
	}

	return nil
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	addTargetFlags(inspectCmd.Flags())
	inspectCmd.Flags().StringP("output", "o", OutputJSON, "Output format, 'json', 'yaml' or 'table'")
}

// addTargetFlags registers the flags selecting a remote appliance. The port
// is a string so that an explicit 0 is told apart from an absent port.
func addTargetFlags(flags *pflag.FlagSet) {
	flags.String("target-host", "", "Host of a remote appliance to inspect instead of the local one")
	flags.String("target-port", "", "Port of the remote appliance, defaults to 443")
	flags.String("target-username", "", "Username for the remote appliance")
	flags.String("target-password", "", "Password for the remote appliance, also read from DOINSPECT_TARGET_PASSWORD")
}
