package cli

import (
	"github.com/spf13/cobra"
)

// completionCmd generates shell completion scripts.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion scripts for cryptorpc.

To load completions:

Bash:
  $ source <(cryptorpc completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ cryptorpc completion bash > /etc/bash_completion.d/cryptorpc
  # macOS:
  $ cryptorpc completion bash > $(brew --prefix)/etc/bash_completion.d/cryptorpc

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ cryptorpc completion zsh > "${fpath[1]}/_cryptorpc"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ cryptorpc completion fish | source

  # To load completions for each session, execute once:
  $ cryptorpc completion fish > ~/.config/fish/completions/cryptorpc.fish

PowerShell:
  PS> cryptorpc completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> cryptorpc completion powershell > cryptorpc.ps1
  # and source this file from your PowerShell profile.
`,
	Example: `  cryptorpc completion bash > /etc/bash_completion.d/cryptorpc
  cryptorpc completion zsh > "${fpath[1]}/_cryptorpc"`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletion(w)
		case "zsh":
			return cmd.Root().GenZshCompletion(w)
		case "fish":
			return cmd.Root().GenFishCompletion(w, true)
		case "powershell":
			return cmd.Root().GenPowerShellCompletionWithDesc(w)
		}
		return nil
	},
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	completionCmd.GroupID = groupConfig
	rootCmd.AddCommand(completionCmd)
}
