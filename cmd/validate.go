package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aether-ai/mcpregd/internal/cmd"
	"github.com/aether-ai/mcpregd/internal/config"
	"github.com/aether-ai/mcpregd/internal/validate"
)

// ValidateCmd should be used to represent the 'validate' command.
type ValidateCmd struct {
	*cmd.BaseCmd
}

// NewValidateCmd creates a newly configured (Cobra) command.
func NewValidateCmd(baseCmd *cmd.BaseCmd) *cobra.Command {
	c := &ValidateCmd{
		BaseCmd: baseCmd,
	}

	return &cobra.Command{
		Use:   "validate <servers-file>",
		Short: "Validates a server seed file without starting the daemon",
		Long:  "Validates every server descriptor in a YAML seed file, reporting all violations, including duplicate ids",
		Args:  cobra.ExactArgs(1),
		RunE:  c.run,
	}
}

// run is configured (via NewValidateCmd) to be called by the Cobra framework when the command is executed.
func (c *ValidateCmd) run(cobraCmd *cobra.Command, args []string) error {
	descriptors, err := config.LoadServers(args[0])
	if err != nil {
		return err
	}
	if len(descriptors) == 0 {
		return fmt.Errorf("no servers found in %q", args[0])
	}

	validator, err := validate.NewValidator()
	if err != nil {
		return err
	}

	result := validator.ValidateList(descriptors)
	if result.Valid {
		fmt.Fprintf(cobraCmd.OutOrStdout(), "%d server(s) valid\n", len(descriptors))
		return nil
	}

	for _, fieldErr := range result.Errors {
		fmt.Fprintf(os.Stderr, "%s: %s\n", fieldErr.Field, fieldErr.Message)
	}
	return fmt.Errorf("%d validation error(s)", len(result.Errors))
}
