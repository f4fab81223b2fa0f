package cmd

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/washingtonpost/clokta-go/lib/assumer"
	"github.com/washingtonpost/clokta-go/lib/fail"
	"github.com/washingtonpost/clokta-go/lib/ui"
)

var (
	flagProfile       string
	flagInlineHelp    bool
	flagNoDefaultRole bool
	flagQuiet         bool
	flagVerbose       bool
)

// RootCmd is the clokta command itself; logging into AWS is the default
// and only action.
var RootCmd = &cobra.Command{
	Use:           "clokta",
	Short:         "Generates temporary AWS credentials via Okta",
	RunE:          assumeRun,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&flagProfile, "profile", "p", "",
		"Configuration profile.  Required unless specified by AWS_PROFILE")
	RootCmd.Flags().BoolVarP(&flagInlineHelp, "inline-help", "i", false,
		"Output explicit steps on how to use generated keys and override defaults")
	RootCmd.Flags().BoolVar(&flagNoDefaultRole, "no-default-role", false,
		"Lets you choose a different role than your default")
	RootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false,
		"Silences all output except final export command. All prompts are on stderr. "+
			`This facilitates commands like "eval $(clokta -p default)"`)
	RootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false,
		"Output internal state for debugging")
}

// Execute runs the CLI and exits with the error category's code on a
// fatal failure.
func Execute(version string) {
	RootCmd.Version = version
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(fail.Code(err))
	}
}

// displayMode folds the output flags into the explicit mode value that
// is threaded through every component.
func displayMode() ui.Mode {
	switch {
	case flagVerbose:
		return ui.Debug
	case flagQuiet:
		return ui.Quiet
	case flagInlineHelp:
		return ui.Long
	default:
		return ui.Brief
	}
}

func configureLogging(mode ui.Mode) {
	log.SetOutput(os.Stderr)
	if mode == ui.Debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.WarnLevel)
	}
}

func assumeRun(cmd *cobra.Command, args []string) error {
	profile := flagProfile
	if profile == "" {
		profile = os.Getenv("AWS_PROFILE")
		if profile != "" {
			fmt.Fprintf(os.Stderr, "Using profile '%s' from AWS_PROFILE\n", profile)
		}
	}
	if profile == "" {
		return cmd.Help()
	}

	mode := displayMode()
	configureLogging(mode)
	display := ui.New(mode)
	prompter := &ui.TerminalPrompter{UI: display}

	a, err := assumer.New(profile, display, prompter)
	if err != nil {
		return err
	}
	return a.AssumeRole(flagNoDefaultRole)
}
