package kflags

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFlag struct {
	name    string
	value   string
	changed bool
}

func (f *fakeFlag) Name() string { return f.name }
func (f *fakeFlag) Changed() bool { return f.changed }
func (f *fakeFlag) Set(value string) error {
	f.value = value
	f.changed = true
	return nil
}

func TestEnvAugmenter(t *testing.T) {
	env := map[string]string{"WEBAUTH_GITHUB_CLIENT_ID": "from-env"}
	ea := &EnvAugmenter{Prefix: "webauth", Lookup: func(key string) (string, bool) {
		value, found := env[key]
		return value, found
	}}

	assert.Equal(t, "WEBAUTH_GITHUB_CLIENT_ID", ea.VariableName("github-client-id"))

	flag := &fakeFlag{name: "github-client-id"}
	found, err := ea.Augment(flag)
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "from-env", flag.value)

	// Command line wins over environment.
	flag = &fakeFlag{name: "github-client-id", value: "cli", changed: true}
	found, err = ea.Augment(flag)
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, "cli", flag.value)

	flag = &fakeFlag{name: "listen"}
	found, err = ea.Augment(flag)
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestEnvAugmenterDotenv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(file, []byte("KFLAGS_TEST_DOTENV_VALUE=dotenv\n"), 0600))
	t.Cleanup(func() { os.Unsetenv("KFLAGS_TEST_DOTENV_VALUE") })

	ea, err := NewEnvAugmenter("kflags", filepath.Join(dir, "missing.env"), file)
	require.NoError(t, err)

	flag := &fakeFlag{name: "test-dotenv-value"}
	found, err := ea.Augment(flag)
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "dotenv", flag.value)
}

func TestUsageError(t *testing.T) {
	err := NewUsageErrorf("flag %s is mandatory", "listen")
	var usage *UsageError
	assert.ErrorAs(t, err, &usage)
	assert.Equal(t, "flag listen is mandatory", err.Error())
	assert.Nil(t, NewUsageError(nil))
}
