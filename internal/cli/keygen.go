package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/moon/internal/cipher"
	"github.com/roach88/moon/internal/value"
)

// KeygenOptions holds flags for the keygen command.
type KeygenOptions struct {
	*RootOptions
	PrivateFile string
	PublicFile  string
}

// NewKeygenCommand creates the keygen command.
func NewKeygenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &KeygenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an X25519 key pair for encrypt/decrypt",
		Long: `Generate an X25519 key pair, base64 encoded.

Without file flags both keys are printed. Use the public key alone on
hosts that only need encrypt.

Examples:
  moon keygen
  moon keygen --private-file moon.key --public-file moon.pub`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeygen(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.PrivateFile, "private-file", "", "write the private key to this file (mode 0600)")
	cmd.Flags().StringVar(&opts.PublicFile, "public-file", "", "write the public key to this file")

	return cmd
}

func runKeygen(opts *KeygenOptions, cmd *cobra.Command) error {
	private, public, err := cipher.GenerateKeyPair()
	if err != nil {
		return WrapExitError(ExitFailure, "failed to generate keys", err)
	}
	privB64, pubB64 := cipher.EncodeKey(private), cipher.EncodeKey(public)

	out := value.Object{"public": value.String(pubB64)}
	if opts.PrivateFile != "" {
		if err := os.WriteFile(opts.PrivateFile, []byte(privB64+"\n"), 0o600); err != nil {
			return WrapExitError(ExitCommandError, "failed to write private key", err)
		}
		out["private_file"] = value.String(opts.PrivateFile)
	} else {
		out["private"] = value.String(privB64)
	}
	if opts.PublicFile != "" {
		if err := os.WriteFile(opts.PublicFile, []byte(pubB64+"\n"), 0o644); err != nil {
			return WrapExitError(ExitCommandError, "failed to write public key", err)
		}
		out["public_file"] = value.String(opts.PublicFile)
	}

	f := opts.formatter(cmd)
	if opts.Format == "json" {
		return f.Success(out)
	}
	w := cmd.OutOrStdout()
	if opts.PrivateFile == "" {
		fmt.Fprintf(w, "private: %s\n", privB64)
	} else {
		fmt.Fprintf(w, "private key written to %s\n", opts.PrivateFile)
	}
	fmt.Fprintf(w, "public:  %s\n", pubB64)
	if opts.PublicFile != "" {
		fmt.Fprintf(w, "public key written to %s\n", opts.PublicFile)
	}
	return nil
}
