package populate

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/maxdollinger/specimen.io/pkg/fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeyDescription(t *testing.T) {
	tests := []struct {
		raw    string
		policy string
		ok     bool
	}{
		{raw: "logon;0;0;3f010000;ext4:0123456789abcdef\n", policy: "0123456789abcdef", ok: true},
		{raw: "logon;1000;1000;3f010000;fscrypt:FEDCBA9876543210", policy: "FEDCBA9876543210", ok: true},
		{raw: "ext4:0123456789abcdef", policy: "0123456789abcdef", ok: true},
		{raw: "keyring;1000;1000;3f030000;_ses", ok: false},
		{raw: "logon;0;0;3f010000;ext4:0123", ok: false},
		{raw: "logon;0;0;3f010000;ext4:0123456789abcdeg", ok: false},
		{raw: "user;0;0;3f010000;btrfs:0123456789abcdef", ok: false},
		{raw: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			policy, ok := parseKeyDescription(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.policy, policy)
		})
	}
}

func TestActivePolicy(t *testing.T) {
	runner := &scriptedRunner{
		outputs: map[string]string{
			"keyctl rlist @s":     "11 22 33\n",
			"keyctl rdescribe 11": "keyring;0;0;3f030000;_uid.1000",
			"keyctl rdescribe 22": "logon;0;0;3f010000;ext4:00112233aabbccdd",
			"keyctl rdescribe 33": "logon;0;0;3f010000;ext4:ffffffffffffffff",
		},
	}

	policy, err := ActivePolicy(context.Background(), runner)
	require.NoError(t, err)
	assert.Equal(t, "00112233aabbccdd", policy)
	assert.Len(t, runner.ran, 3, "lookup stops at the first usable key")
}

func TestActivePolicyNoKey(t *testing.T) {
	runner := &scriptedRunner{outputs: map[string]string{"keyctl rlist @s": ""}}

	_, err := ActivePolicy(context.Background(), runner)
	assert.ErrorIs(t, err, ErrNoEncryptionPolicy)
}

func TestActivePolicyKeyctlFailure(t *testing.T) {
	keyctlErr := errors.New("exit status 1")
	runner := &scriptedRunner{errs: map[string]error{"keyctl rlist @s": keyctlErr}}

	_, err := ActivePolicy(context.Background(), runner)
	assert.ErrorIs(t, err, keyctlErr)
	assert.NotErrorIs(t, err, ErrNoEncryptionPolicy)
}

func TestEncryptedStep(t *testing.T) {
	env, _, runner := testEnv(t)
	runner.outputs["keyctl rlist @s"] = "7"
	runner.outputs["keyctl rdescribe 7"] = "logon;0;0;3f010000;fscrypt:0011223344556677"

	require.NoError(t, encryptedStep().Do(context.Background(), env))

	last := runner.ran[len(runner.ran)-1]
	assert.Equal(t, fs.Command{Name: "e4crypt", Args: []string{"set_policy", "0011223344556677", env.Path(EncryptedDir)}}, last)

	data, err := os.ReadFile(env.Path(EncryptedFile))
	require.NoError(t, err)
	assert.Equal(t, EncryptedContent, string(data))
}

func TestEncryptedStepWithoutKey(t *testing.T) {
	env, _, runner := testEnv(t)
	runner.outputs["keyctl rlist @s"] = "\n"

	err := Run(context.Background(), env, Catalog(CatalogOptions{BlockSize: 4096, Encrypted: true}))
	assert.ErrorIs(t, err, ErrNoEncryptionPolicy)

	_, statErr := os.Stat(env.Path(EncryptedDir))
	assert.True(t, os.IsNotExist(statErr), "no directory is created without a policy")
}
