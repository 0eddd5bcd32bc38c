package populate

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/maxdollinger/specimen.io/pkg/fs"
)

const (
	EncryptedDir     = "encrypted_dir"
	EncryptedFile    = "encrypted_dir/file"
	EncryptedContent = "hello, encrypted world!"
)

func encryptedStep() Step {
	return Step{
		Name:     "encrypted dir",
		Provides: []string{EncryptedDir, EncryptedFile},
		Do: func(ctx context.Context, env *Env) error {
			policy, err := ActivePolicy(ctx, env.Runner)
			if err != nil {
				return err
			}

			dir := env.Path(EncryptedDir)
			if err := os.Mkdir(dir, 0o755); err != nil {
				return err
			}

			err = env.Runner.Run(ctx, fs.Command{
				Name: "e4crypt",
				Args: []string{"set_policy", policy, dir},
			})
			if err != nil {
				return fmt.Errorf("apply policy %s: %w", policy, err)
			}
			env.Logger.InfoContext(ctx, "encryption policy applied", "policy", policy)

			return writeFile(env.Path(EncryptedFile), []byte(EncryptedContent))
		},
	}
}

// ActivePolicy returns the descriptor of the first ext4 or fscrypt key in the
// session keyring.
func ActivePolicy(ctx context.Context, runner fs.Runner) (string, error) {
	out, err := runner.Output(ctx, fs.Command{Name: "keyctl", Args: []string{"rlist", "@s"}})
	if err != nil {
		return "", fmt.Errorf("list session keyring: %w", err)
	}

	for _, id := range strings.Fields(string(out)) {
		desc, err := runner.Output(ctx, fs.Command{Name: "keyctl", Args: []string{"rdescribe", id}})
		if err != nil {
			return "", fmt.Errorf("describe key %s: %w", id, err)
		}
		if policy, ok := parseKeyDescription(string(desc)); ok {
			return policy, nil
		}
	}

	return "", ErrNoEncryptionPolicy
}

// parseKeyDescription extracts the policy descriptor from rdescribe output,
// "type;uid;gid;perm;description".
func parseKeyDescription(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	desc := raw[strings.LastIndexByte(raw, ';')+1:]

	for _, prefix := range []string{"ext4:", "fscrypt:"} {
		policy, ok := strings.CutPrefix(desc, prefix)
		if ok && isPolicyDescriptor(policy) {
			return policy, true
		}
	}
	return "", false
}

func isPolicyDescriptor(s string) bool {
	if len(s) != 16 {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
