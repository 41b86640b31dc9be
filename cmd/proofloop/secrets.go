package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"proofloop/pkg/config"
)

func newSecretsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage the encrypted project secrets file",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "set <NAME>",
			Short: "Store a secret (for example GOOGLE_API_KEY); the value is read without echo",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				return a.runSecretsSet(args[0])
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List the names of stored secrets",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				return a.runSecretsList()
			},
		},
	)
	return cmd
}

func (a *app) runSecretsSet(name string) error {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, " =") {
		return fmt.Errorf("invalid secret name %q", name)
	}

	password, err := a.secretsPassword()
	if err != nil {
		return err
	}

	secrets := map[string]string{}
	if config.SecretsFileExists(a.projectDir) {
		secrets, err = config.DecryptSecretsFile(a.projectDir, password)
		if err != nil {
			return fmt.Errorf("failed to unlock secrets: %w", err)
		}
	}

	value, err := a.readSecret(fmt.Sprintf("Enter %s: ", name))
	if err != nil {
		return fmt.Errorf("failed to read value: %w", err)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return fmt.Errorf("empty value for %s", name)
	}
	secrets[name] = value

	if err := config.EncryptSecretsFile(a.projectDir, password, secrets); err != nil {
		return fmt.Errorf("failed to encrypt secrets: %w", err)
	}
	fmt.Fprintf(a.out, "✅ %s saved to %s (file permissions: 0600)\n",
		name, filepath.Join(config.ProjectConfigDir, "secrets.json.enc"))
	return nil
}

func (a *app) runSecretsList() error {
	if !config.SecretsFileExists(a.projectDir) {
		fmt.Fprintln(a.out, "No secrets file. Create one with 'proofloop secrets set <NAME>'.")
		return nil
	}
	password, err := a.secretsPassword()
	if err != nil {
		return err
	}
	secrets, err := config.DecryptSecretsFile(a.projectDir, password)
	if err != nil {
		return fmt.Errorf("failed to unlock secrets: %w", err)
	}
	config.SetDecryptedSecrets(secrets)
	for _, name := range config.SecretNames() {
		fmt.Fprintln(a.out, name)
	}
	return nil
}

// secretsPassword takes the password from the environment or asks for it.
// A new secrets file asks twice.
func (a *app) secretsPassword() (string, error) {
	if password := os.Getenv(EnvPassword); password != "" {
		return password, nil
	}

	password, err := a.readSecret("Enter the password for this proofloop project: ")
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if password == "" {
		return "", fmt.Errorf("empty password")
	}
	if config.SecretsFileExists(a.projectDir) {
		return password, nil
	}

	confirm, err := a.readSecret("Confirm password: ")
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if confirm != password {
		return "", fmt.Errorf("passwords do not match")
	}
	fmt.Fprintf(a.errOut, "💡 Set %s to unlock the secrets without a prompt.\n", EnvPassword)
	return password, nil
}
