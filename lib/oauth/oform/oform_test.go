package oform

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ccontavalli/webauth/lib/identity"
	"github.com/ccontavalli/webauth/lib/logger"
	"github.com/ccontavalli/webauth/lib/oauth"
	"github.com/ccontavalli/webauth/lib/session"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func bcryptOf(t *testing.T, password string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestParseUsers(t *testing.T) {
	data := `
[[user]]
name = "bob"
password = "{noop}secret"

[[user]]
name = "alice"
password = "{bcrypt}` + bcryptOf(t, "wonderland") + `"
roles = ["admin", "ROLE_user"]

[[user]]
name = "carol"
password = "` + bcryptOf(t, "carol") + `"
`
	directory, err := ParseUsers([]byte(data))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob", "carol"}, directory.Users())

	user, err := directory.Authenticate("bob", "secret")
	require.NoError(t, err)
	assert.Equal(t, []string{"ROLE_USER"}, user.Authorities())

	user, err = directory.Authenticate("alice", "wonderland")
	require.NoError(t, err)
	assert.Equal(t, []string{"ROLE_ADMIN", "ROLE_USER"}, user.Authorities())

	_, err = directory.Authenticate("carol", "carol")
	assert.NoError(t, err)

	_, err = directory.Authenticate("bob", "wrong")
	assert.True(t, errors.Is(err, ErrorInvalidCredentials))
	_, err = directory.Authenticate("mallory", "secret")
	assert.True(t, errors.Is(err, ErrorInvalidCredentials))
}

func TestParseUsersErrors(t *testing.T) {
	cases := map[string]string{
		"[[user]\nname=":                                    "invalid users file",
		"[[user]]\npassword = \"{noop}x\"":                  "has no name",
		"[[user]]\nname = \"a\"\npassword = \"{noop}x\"\n[[user]]\nname = \"a\"\npassword = \"{noop}y\"": "more than once",
		"[[user]]\nname = \"a\"\npassword = \"{md5}abc\"": `unknown password scheme in "{md5}"`,
		"[[user]]\nname = \"a\"\npassword = \"not-a-hash\"": "invalid bcrypt hash",
		"[[user]]\nname = \"a\"":                            "empty password",
	}
	for data, expected := range cases {
		_, err := ParseUsers([]byte(data))
		assert.ErrorContains(t, err, expected, "users file %q", data)
	}
}

func TestNewDirectory(t *testing.T) {
	var logged []string
	log := &logger.DefaultLogger{Printer: func(format string, args ...interface{}) {
		logged = append(logged, format)
	}}

	directory, err := NewDirectory(DefaultFlags(), log)
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultUser}, directory.(*StaticDirectory).Users())
	require.Len(t, logged, 1)
	assert.Contains(t, logged[0], "generated security password")

	path := filepath.Join(t.TempDir(), "users.toml")
	require.NoError(t, os.WriteFile(path, []byte("[[user]]\nname = \"bob\"\npassword = \"{noop}pw\"\n"), 0600))
	directory, err = NewDirectory(&Flags{UsersFile: path}, log)
	require.NoError(t, err)
	_, err = directory.Authenticate("bob", "pw")
	assert.NoError(t, err)

	_, err = NewDirectory(&Flags{UsersFile: filepath.Join(t.TempDir(), "missing.toml")}, log)
	assert.ErrorContains(t, err, "invalid --users-file")
}

func TestLoadUsersFormats(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "users.yaml")
	require.NoError(t, os.WriteFile(path, []byte("user:\n  - name: carol\n    password: \"{noop}secret\"\n    roles: [admin]\n"), 0600))
	directory, err := LoadUsers(path)
	require.NoError(t, err)
	user, err := directory.Authenticate("carol", "secret")
	require.NoError(t, err)
	assert.Equal(t, []string{"ROLE_ADMIN"}, user.Authorities())

	path = filepath.Join(dir, "typo.yml")
	require.NoError(t, os.WriteFile(path, []byte("user:\n  - name: carol\n    pasword: \"{noop}secret\"\n"), 0600))
	_, err = LoadUsers(path)
	assert.ErrorContains(t, err, "invalid users file")

	path = filepath.Join(dir, "users.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0600))
	_, err = LoadUsers(path)
	assert.ErrorContains(t, err, "unknown users file format")
}

func TestFlagsRegister(t *testing.T) {
	set := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags := DefaultFlags().Register(set, "form-")

	flag := set.Lookup("form-users-file")
	require.NotNil(t, flag)
	assert.Contains(t, flag.Usage, "TOML")
	assert.Contains(t, flag.Usage, "YAML")

	require.NoError(t, set.Parse([]string{"--form-users-file", "users.yml"}))
	assert.Equal(t, "users.yml", flags.UsersFile)
}

func TestHashPassword(t *testing.T) {
	encoded, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "{bcrypt}"))
	assert.True(t, CheckPassword(encoded, "hunter2"))
	assert.False(t, CheckPassword(encoded, "hunter3"))
}

func postLogin(username, password string) *http.Request {
	form := url.Values{"username": {username}, "password": {password}}
	r := httptest.NewRequest("POST", "/perform_login", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func TestAuthenticator(t *testing.T) {
	extractor, err := oauth.NewExtractor(session.NewMemory(), []byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	directory, err := NewStaticDirectory(User{Name: "bob", Password: "{noop}secret"})
	require.NoError(t, err)
	a := NewAuthenticator(extractor, directory)

	w := httptest.NewRecorder()
	data, err := a.PerformAuth(w, postLogin("bob", "secret"))
	require.NoError(t, err)
	require.True(t, data.Complete())
	assert.Equal(t, &identity.CredentialsIdentity{Username: "bob"}, data.Authentication.Principal)
	assert.Equal(t, []string{"ROLE_USER"}, data.Authentication.Authorities)

	r := httptest.NewRequest("GET", "/home", nil)
	for _, cookie := range w.Result().Cookies() {
		r.AddCookie(cookie)
	}
	sess, err := a.GetCredentialsFromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "bob", sess.Authentication.Name())

	w = httptest.NewRecorder()
	_, err = a.PerformAuth(w, postLogin("bob", "wrong"))
	assert.True(t, errors.Is(err, ErrorInvalidCredentials))
	assert.Empty(t, w.Result().Cookies())

	_, err = a.PerformAuth(httptest.NewRecorder(), postLogin("", ""))
	assert.True(t, errors.Is(err, ErrorInvalidCredentials))

	_, err = a.PerformAuth(httptest.NewRecorder(), httptest.NewRequest("GET", "/perform_login?username=bob&password=secret", nil))
	assert.ErrorContains(t, err, "POST")

	w = httptest.NewRecorder()
	require.NoError(t, a.PerformLogin(w, httptest.NewRequest("GET", "/home", nil)))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}
