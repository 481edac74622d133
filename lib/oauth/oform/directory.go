// Package oform logs users in with a username and a password.
//
// Users are defined in a TOML file:
//
//	[[user]]
//	name = "bob"
//	password = "{bcrypt}$2a$10$..."
//	roles = ["USER", "ADMIN"]
//
// or in a YAML file, with a .yaml or .yml extension:
//
//	user:
//	  - name: bob
//	    password: "{bcrypt}$2a$10$..."
//	    roles: [USER, ADMIN]
//
// Passwords are prefixed by the scheme used to encode them: {bcrypt} for
// bcrypt hashes, {noop} for plain text. Passwords with no prefix are bcrypt
// hashes.
package oform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ccontavalli/webauth/lib/kflags"
	"github.com/ccontavalli/webauth/lib/logger"
	"github.com/google/uuid"
	"github.com/pelletier/go-toml"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v2"
)

// ErrorInvalidCredentials is returned for unknown users and wrong passwords alike.
var ErrorInvalidCredentials = errors.New("invalid username or password")

const (
	prefixBcrypt = "{bcrypt}"
	prefixNoop   = "{noop}"

	// DefaultUser is the name of the user created when no users are configured.
	DefaultUser = "user"
	DefaultRole = "USER"
)

type User struct {
	Name     string   `toml:"name" yaml:"name"`
	Password string   `toml:"password" yaml:"password"`
	Roles    []string `toml:"roles" yaml:"roles"`
}

// Authorities returns ROLE_<role> for each role of the user, ROLE_USER if none.
func (u *User) Authorities() []string {
	roles := u.Roles
	if len(roles) == 0 {
		roles = []string{DefaultRole}
	}
	authorities := make([]string, 0, len(roles))
	for _, role := range roles {
		authorities = append(authorities, "ROLE_"+strings.ToUpper(strings.TrimPrefix(role, "ROLE_")))
	}
	return authorities
}

// UserDirectory verifies usernames and passwords.
type UserDirectory interface {
	// Authenticate returns the user if the password is valid, ErrorInvalidCredentials otherwise.
	Authenticate(username, password string) (*User, error)
}

// StaticDirectory is a UserDirectory with a fixed set of users.
type StaticDirectory struct {
	users map[string]*User
}

// dummyHash is compared against for unknown users.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password"), bcrypt.MinCost)

func NewStaticDirectory(users ...User) (*StaticDirectory, error) {
	sd := &StaticDirectory{users: map[string]*User{}}
	for ix := range users {
		user := users[ix]
		if user.Name == "" {
			return nil, fmt.Errorf("user#%d has no name", ix)
		}
		if _, found := sd.users[user.Name]; found {
			return nil, fmt.Errorf("user %s defined more than once", user.Name)
		}
		if err := validPassword(user.Password); err != nil {
			return nil, fmt.Errorf("user %s - %w", user.Name, err)
		}
		sd.users[user.Name] = &user
	}
	return sd, nil
}

type usersFile struct {
	User []User `toml:"user" yaml:"user"`
}

// Unmarshaller decodes a users file.
type Unmarshaller func(data []byte, value interface{}) error

// Formats maps the extension of a users file to the function decoding it.
var Formats = map[string]Unmarshaller{
	".toml": toml.Unmarshal,
	".yaml": yaml.UnmarshalStrict,
	".yml":  yaml.UnmarshalStrict,
}

// ParseUsers creates a StaticDirectory from the content of a TOML users file.
func ParseUsers(data []byte) (*StaticDirectory, error) {
	return ParseUsersWith(toml.Unmarshal, data)
}

// ParseUsersWith creates a StaticDirectory from a users file decoded by unmarshal.
func ParseUsersWith(unmarshal Unmarshaller, data []byte) (*StaticDirectory, error) {
	var file usersFile
	if err := unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("invalid users file - %w", err)
	}
	return NewStaticDirectory(file.User...)
}

// LoadUsers creates a StaticDirectory from a users file, in the format indicated by its extension.
func LoadUsers(path string) (*StaticDirectory, error) {
	unmarshal, found := Formats[strings.ToLower(filepath.Ext(path))]
	if !found {
		return nil, fmt.Errorf("%s: unknown users file format, use one of .toml, .yaml or .yml", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	directory, err := ParseUsersWith(unmarshal, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return directory, nil
}

// GeneratedDirectory creates a directory with a single user with a random password.
//
// The password is logged, so whoever has access to the logs can log in.
func GeneratedDirectory(log logger.Logger) *StaticDirectory {
	password := uuid.NewString()
	log.Warnf("Using generated security password: %s - this generated password is for development use only, configure a users file for production", password)

	return &StaticDirectory{users: map[string]*User{
		DefaultUser: {Name: DefaultUser, Password: prefixNoop + password, Roles: []string{DefaultRole}},
	}}
}

func (sd *StaticDirectory) Authenticate(username, password string) (*User, error) {
	user, found := sd.users[username]
	if !found {
		bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, ErrorInvalidCredentials
	}
	if !CheckPassword(user.Password, password) {
		return nil, ErrorInvalidCredentials
	}
	return user, nil
}

// Users returns the names of the users in the directory.
func (sd *StaticDirectory) Users() []string {
	names := make([]string, 0, len(sd.users))
	for name := range sd.users {
		names = append(names, name)
	}
	return names
}

func validPassword(encoded string) error {
	switch {
	case strings.HasPrefix(encoded, prefixNoop):
		return nil
	case encoded == "":
		return fmt.Errorf("empty password")
	case strings.HasPrefix(encoded, "{") && !strings.HasPrefix(encoded, prefixBcrypt):
		return fmt.Errorf("unknown password scheme in %q", encoded[:strings.Index(encoded+"}", "}")+1])
	}
	if _, err := bcrypt.Cost([]byte(strings.TrimPrefix(encoded, prefixBcrypt))); err != nil {
		return fmt.Errorf("invalid bcrypt hash - %w", err)
	}
	return nil
}

// CheckPassword returns true if password matches the encoded password.
func CheckPassword(encoded, password string) bool {
	if plain, ok := strings.CutPrefix(encoded, prefixNoop); ok {
		return plain == password
	}
	hash := strings.TrimPrefix(encoded, prefixBcrypt)
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// HashPassword encodes password as a {bcrypt} password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return prefixBcrypt + string(hash), nil
}

type Flags struct {
	UsersFile string
}

func DefaultFlags() *Flags {
	return &Flags{}
}

func (f *Flags) Register(set kflags.FlagSet, prefix string) *Flags {
	set.StringVar(&f.UsersFile, prefix+"users-file", f.UsersFile, "TOML (.toml) or YAML (.yaml, .yml) file with the users allowed to log in with a password - if not set, a user named 'user' with a generated password is created")
	return f
}

// NewDirectory returns the UserDirectory configured by flags.
func NewDirectory(flags *Flags, log logger.Logger) (UserDirectory, error) {
	if flags.UsersFile == "" {
		return GeneratedDirectory(log), nil
	}
	directory, err := LoadUsers(flags.UsersFile)
	if err != nil {
		return nil, kflags.NewUsageErrorf("invalid --users-file - %w", err)
	}
	return directory, nil
}
