package cli

import (
	"fmt"
	"os"

	"github.com/davisilvarafacho/ssh-register-new-key/internal/config"
	"github.com/davisilvarafacho/ssh-register-new-key/internal/errors"
	"github.com/davisilvarafacho/ssh-register-new-key/internal/ui"
	"github.com/spf13/cobra"
)

var initForceFlag bool

// InitOptions holds options for the init command.
type InitOptions struct {
	Path           string // target path; empty means ~/.config/sshreg/config.yaml
	Force          bool   // overwrite an existing file without asking
	NonInteractive bool   // fail on conflicts instead of prompting
}

// initCmd writes a starter configuration file.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	Long: `Write a commented starter config to ~/.config/sshreg/config.yaml.

The file spells out the defaults (identity, port, timeouts, key generation)
so they are easy to tweak. Use --config to write somewhere else.

Examples:
  sshreg init
  sshreg init --force
  sshreg init --config ./sshreg.yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return Init(InitOptions{
			Path:           configFlag,
			Force:          initForceFlag,
			NonInteractive: !ui.IsTerminal(os.Stdin) || !ui.IsTerminal(os.Stdout),
		})
	},
}

func init() {
	initCmd.Flags().BoolVarP(&initForceFlag, "force", "f", false, "overwrite an existing config file")
	rootCmd.AddCommand(initCmd)
}

// Init writes a starter config file with the defaults spelled out.
func Init(opts InitOptions) error {
	path := opts.Path
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return err
		}
	}

	if _, err := os.Stat(path); err == nil && !opts.Force {
		if opts.NonInteractive {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Config file already exists: %s", path),
				"Use --force to overwrite")
		}

		overwrite, err := huhConfirm(fmt.Sprintf("Config file '%s' already exists. Overwrite?", path))
		if err != nil {
			return err
		}
		if !overwrite {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	if err := config.Write(path, config.DefaultConfig()); err != nil {
		return err
	}

	fmt.Printf("%s Created %s\n\n", ui.SymbolSuccess, path)
	fmt.Println("Next steps:")
	fmt.Println("  sshreg <user@host>             - register your default key")
	fmt.Println("  sshreg --generate <user@host>  - create and register a fresh key")

	return nil
}
