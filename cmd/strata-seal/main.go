// Command strata-seal encrypts and decrypts configuration secrets
// offline. It generates key files, seals plaintext into the marker
// format the store resolves at load time, and opens sealed values for
// inspection.
package main

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/strataconf/strata"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "strata-seal",
		Short:         "Encrypt and decrypt configuration secrets offline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newKeygenCmd(), newEncryptCmd(), newDecryptCmd())
	return root
}

func newKeygenCmd() *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "keygen <name>",
		Short: "Generate a key file usable by every built-in algorithm",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := strata.GenerateKey()
			if err != nil {
				return err
			}
			path := filepath.Join(outDir, args[0]+".key")
			encoded := base64.StdEncoding.EncodeToString(key) + "\n"
			if err := os.WriteFile(path, []byte(encoded), 0o600); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out", ".", "directory to write the key file into")
	return cmd
}

func newEncryptCmd() *cobra.Command {
	var (
		keyFile string
		algo    string
		format  string
		segment string
	)
	cmd := &cobra.Command{
		Use:   "encrypt [plaintext]",
		Short: "Seal a value into a secret marker snippet",
		Long: "Seal a value into a secret marker snippet. The plaintext is read\n" +
			"from the argument, or from stdin when no argument is given.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plaintext, err := readInput(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			keyName, key, err := readKeyFile(keyFile)
			if err != nil {
				return err
			}
			sealed, err := strata.Seal(algo, key, plaintext)
			if err != nil {
				return err
			}
			b64 := base64.StdEncoding.EncodeToString(sealed)

			var out string
			switch format {
			case "yaml":
				out = fmt.Sprintf("%s: [%q, %q, %q]\n", segment, algo, keyName, b64)
			case "toml":
				out = fmt.Sprintf("%q = [%q, %q, %q]\n", segment, algo, keyName, b64)
			case "json":
				out = fmt.Sprintf("{%q: [%q, %q, %q]}\n", segment, algo, keyName, b64)
			default:
				return fmt.Errorf("unknown format %q (want yaml, toml or json)", format)
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&keyFile, "key-file", "", "key file produced by keygen (required)")
	cmd.Flags().StringVar(&algo, "algo", strata.AlgorithmAESGCM, "sealing algorithm")
	cmd.Flags().StringVar(&format, "format", "yaml", "snippet format: yaml, toml or json")
	cmd.Flags().StringVar(&segment, "segment", strata.DefaultSecretSegment, "reserved marker field name")
	_ = cmd.MarkFlagRequired("key-file")
	return cmd
}

func newDecryptCmd() *cobra.Command {
	var (
		keyFile string
		algo    string
	)
	cmd := &cobra.Command{
		Use:   "decrypt <base64-ciphertext>",
		Short: "Open a sealed value and print the plaintext",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, key, err := readKeyFile(keyFile)
			if err != nil {
				return err
			}
			ciphertext, err := base64.StdEncoding.DecodeString(args[0])
			if err != nil {
				return fmt.Errorf("ciphertext is not valid base64: %w", err)
			}
			dec, err := decryptorFor(algo)
			if err != nil {
				return err
			}
			plaintext, err := dec.Decrypt(ciphertext, key)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(plaintext)
			return err
		},
	}
	cmd.Flags().StringVar(&keyFile, "key-file", "", "key file produced by keygen (required)")
	cmd.Flags().StringVar(&algo, "algo", strata.AlgorithmAESGCM, "sealing algorithm")
	_ = cmd.MarkFlagRequired("key-file")
	return cmd
}

// decryptorFor resolves a built-in decryptor through a fresh registry.
func decryptorFor(algo string) (strata.Decryptor, error) {
	reg := strata.NewDecryptorRegistry()
	d, ok := reg.Lookup(algo)
	if !ok {
		return nil, fmt.Errorf("unknown algorithm %q", algo)
	}
	return d, nil
}

func readInput(stdin io.Reader, args []string) ([]byte, error) {
	if len(args) == 1 {
		return []byte(args[0]), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// readKeyFile loads a keygen-produced file; the stem is the key name
// secrets reference.
func readKeyFile(path string) (string, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return "", nil, fmt.Errorf("key file %q is not valid base64: %w", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), ".key")
	return name, key, nil
}
