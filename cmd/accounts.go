package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/washingtonpost/clokta-go/lib/config"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List all accounts, profile and account number, configured in clokta",
	RunE:  accountsRun,
}

func init() {
	RootCmd.AddCommand(accountsCmd)
}

func accountsRun(cmd *cobra.Command, args []string) error {
	accounts, err := config.ListAccounts()
	if err != nil {
		return err
	}
	for _, account := range accounts {
		fmt.Printf("%s = %s\n", account.Profile, account.Number)
	}
	return nil
}
