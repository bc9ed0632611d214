package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/davisilvarafacho/ssh-register-new-key/internal/config"
	"github.com/davisilvarafacho/ssh-register-new-key/internal/errors"
	"github.com/davisilvarafacho/ssh-register-new-key/internal/host"
	"github.com/davisilvarafacho/ssh-register-new-key/internal/logger"
	"github.com/davisilvarafacho/ssh-register-new-key/internal/register"
	"github.com/davisilvarafacho/ssh-register-new-key/internal/ui"
	"github.com/davisilvarafacho/ssh-register-new-key/pkg/sshutil"
	"github.com/spf13/cobra"
)

// Root command flags
var (
	generateFlag bool
	portFlag     int
	forceFlag    bool
	dryRunFlag   bool
	configFlag   string
	quietFlag    bool
	noColorFlag  bool
	verboseFlag  bool
)

// rootCmd is the action itself: sshreg <target> [public-key].
var rootCmd = &cobra.Command{
	Use:   "sshreg <[user@]host> [public-key]",
	Short: "Register an SSH public key on a remote host",
	Long: `sshreg installs a local SSH public key into a remote host's
~/.ssh/authorized_keys so future logins skip the password prompt.

The target is a user@host destination; bare hosts resolve the user from
~/.ssh/config or the current session. The key defaults to ~/.ssh/id_rsa.pub.
Pass a path to register a different key, or --generate to create a fresh
ed25519 pair first.

Examples:
  sshreg pi@raspberry.local
  sshreg web1 ~/.ssh/id_ed25519.pub
  sshreg --generate deploy@build-box
  sshreg -p 2222 admin@10.0.0.5
  sshreg --dry-run pi@raspberry.local`,
	Args:              cobra.RangeArgs(1, 2),
	SilenceErrors:     true,
	ValidArgsFunction: completeArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return registerRun(cmd, args)
	},
}

func init() {
	rootCmd.Flags().BoolVarP(&generateFlag, "generate", "g", false, "generate a new key pair and register it")
	rootCmd.Flags().IntVarP(&portFlag, "port", "p", register.DefaultPort, "SSH port on the remote host")
	rootCmd.Flags().BoolVarP(&forceFlag, "force", "f", false, "register even when the key is already present")
	rootCmd.Flags().BoolVarP(&dryRunFlag, "dry-run", "n", false, "print the remote commands without running them")

	// Global flags, shared with the subcommands.
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "config file (default ~/.config/sshreg/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "suppress progress output")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command and terminates the process on failure.
func Execute() {
	err := rootCmd.Execute()
	sshutil.CloseAgent()
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, err)
	if code, ok := errors.GetExitCode(err); ok {
		os.Exit(code)
	}
	os.Exit(1)
}

// registerRun is the root RunE implementation.
func registerRun(cmd *cobra.Command, args []string) error {
	if verboseFlag {
		os.Setenv("SSHREG_DEBUG", "1")
	}

	cfg, err := config.LoadOrDefault(configFlag)
	if err != nil {
		return err
	}

	applyColorMode(cfg)
	sshutil.WarningHandler = func(message string) {
		ui.PrintWarning("%s", message)
	}

	opts, err := buildOptions(cmd, cfg, args)
	if err != nil {
		return err
	}

	return buildRegistrar(cfg, quietFlag).Run(opts)
}

// buildOptions freezes flags, arguments, and config into the Options value
// the registrar consumes. Flags win over config; config wins over built-in
// defaults.
func buildOptions(cmd *cobra.Command, cfg *config.Config, args []string) (register.Options, error) {
	port := cfg.Port
	if cmd.Flags().Changed("port") {
		port = portFlag
	}

	target, err := register.ParseTarget(args[0], port)
	if err != nil {
		return register.Options{}, err
	}

	opts := register.Options{
		Target:        target,
		Identity:      cfg.Identity,
		Generate:      generateFlag,
		GeneratePath:  cfg.Generate.Path,
		GenerateType:  cfg.Generate.Type,
		Force:         forceFlag,
		DryRun:        dryRunFlag,
		UseCopyID:     cfg.UseCopyID,
		VerifyTimeout: cfg.VerifyTimeout,
	}
	if len(args) == 2 {
		opts.KeyPath = args[1]
	}
	return opts, nil
}

// buildRegistrar wires a Registrar with the capabilities appropriate for
// this session: spinner-wrapped connect/keygen/verify, ssh-copy-id when
// installed, and huh prompts only when stdin and stdout are a terminal.
func buildRegistrar(cfg *config.Config, quiet bool) *register.Registrar {
	reg := &register.Registrar{
		Connect: connectCapability(cfg, quiet),
		KeyGen:  keyGenCapability(quiet),
		CopyID:  copyIDCapability(quiet),
		Verify:  verifyCapability(quiet),
		Log:     logger.NewEnvLogger("[sshreg]"),
		Out:     os.Stdout,
	}

	if ui.IsTerminal(os.Stdin) && ui.IsTerminal(os.Stdout) {
		reg.ConfirmOverwrite = huhConfirm
		reg.ConfirmDuplicate = huhConfirm
	}

	return reg
}

// connectCapability dials the native SSH client first and falls back to the
// local OpenSSH binary when authentication fails, so first contact can use a
// password prompt. Host key mismatches never fall back.
func connectCapability(cfg *config.Config, quiet bool) register.ConnectFunc {
	return func(target register.Target) (sshutil.SSHClient, error) {
		st := startStep("Connecting to "+target.String(), quiet)

		client, err := host.Connect(target.DialString(), cfg.ConnectTimeout)
		if err == nil {
			st.Success()
			return client, nil
		}

		if host.IsHostKeyFailure(err) {
			st.Fail()
			return nil, err
		}

		if host.IsAuthFailure(err) && sshutil.HaveSSHBinary() {
			st.Skip()
			if !quiet {
				fmt.Printf("%s Key auth is not set up yet; commands will run through ssh so password login still works\n", ui.SymbolPending)
			}
			// Zero port keeps ssh_config Port entries in effect.
			port := 0
			if target.Port != register.DefaultPort {
				port = target.Port
			}
			return sshutil.NewProcClient(target.String(), port), nil
		}

		st.Fail()
		return nil, err
	}
}

// keyGenCapability wraps key generation with progress output.
func keyGenCapability(quiet bool) register.KeyGenFunc {
	return func(path, keyType string) error {
		st := startStep("Generating "+keyType+" key", quiet)
		if err := register.GenerateKeyPair(path, keyType); err != nil {
			st.Fail()
			return err
		}
		st.Success()
		return nil
	}
}

// copyIDCapability returns the ssh-copy-id capability, announced without a
// spinner: the subprocess owns the terminal and may prompt for a password.
func copyIDCapability(quiet bool) register.CopyIDFunc {
	inner := register.LookupCopyID()
	if inner == nil {
		return nil
	}
	return func(target register.Target, keyPath string) error {
		if !quiet {
			fmt.Printf("%s Copying key with ssh-copy-id (any prompts below come from ssh)\n", ui.SymbolProgress)
		}
		return inner(target, keyPath)
	}
}

// verifyCapability wraps the post-registration connection check with
// progress output.
func verifyCapability(quiet bool) register.VerifyFunc {
	return func(target register.Target, timeout time.Duration) error {
		st := startStep("Verifying passwordless login", quiet)
		if err := register.VerifyPasswordlessAuth(target, timeout); err != nil {
			st.Fail()
			return err
		}
		st.Success()
		return nil
	}
}

// huhConfirm asks a yes/no question. Wired only for interactive sessions.
func huhConfirm(prompt string) (bool, error) {
	var answer bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(prompt).
				Value(&answer),
		),
	)
	if err := form.Run(); err != nil {
		return false, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to get user input",
			"Re-run with --force to skip prompts")
	}
	return answer, nil
}

// applyColorMode resolves the color mode from the flag and config.
// "auto" keeps color only when stdout is a terminal.
func applyColorMode(cfg *config.Config) {
	switch {
	case noColorFlag || cfg.Output.Color == "never":
		ui.DisableColors()
	case cfg.Output.Color != "always" && !ui.IsTerminal(os.Stdout):
		ui.DisableColors()
	}
}

// step is a spinner that collapses to a no-op under --quiet.
type step struct {
	s *ui.Spinner
}

func startStep(label string, quiet bool) step {
	if quiet {
		return step{}
	}
	sp := ui.NewSpinner(label)
	sp.Start()
	return step{s: sp}
}

func (st step) Success() {
	if st.s != nil {
		st.s.Success()
	}
}

func (st step) Fail() {
	if st.s != nil {
		st.s.Fail()
	}
}

func (st step) Skip() {
	if st.s != nil {
		st.s.Skip()
	}
}

// completeArgs offers ~/.ssh/config aliases for the target argument and
// falls back to file completion for the key path.
func completeArgs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveDefault
	}

	entries, err := sshutil.ParseSSHConfig()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	var hosts []string
	for _, entry := range entries {
		if strings.HasPrefix(entry.Alias, toComplete) {
			hosts = append(hosts, entry.Alias+"\t"+entry.Description())
		}
	}
	return hosts, cobra.ShellCompDirectiveNoFileComp
}
