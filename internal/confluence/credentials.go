package confluence

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Environment variables read by EnvProvider.
const (
	EnvUsername = "RESULTSYNC_USERNAME"
	EnvPassword = "RESULTSYNC_PASSWORD"
)

// ErrNoCredentials is returned by a provider that has nothing to offer.
var ErrNoCredentials = errors.New("no Confluence credentials available")

// Credentials authenticate against Confluence with basic auth.
type Credentials struct {
	Username string
	Password string
}

// CredentialProvider supplies credentials.
type CredentialProvider interface {
	Credentials(ctx context.Context) (Credentials, error)
}

// EnvProvider reads credentials from RESULTSYNC_USERNAME and
// RESULTSYNC_PASSWORD.
type EnvProvider struct {
	// Lookup defaults to os.LookupEnv.
	Lookup func(key string) (string, bool)
}

func (p EnvProvider) Credentials(ctx context.Context) (Credentials, error) {
	lookup := p.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	user, _ := lookup(EnvUsername)
	pass, _ := lookup(EnvPassword)
	if user == "" || pass == "" {
		return Credentials{}, ErrNoCredentials
	}
	return Credentials{Username: user, Password: pass}, nil
}

// PromptProvider asks for credentials interactively.
type PromptProvider struct {
	In  io.Reader
	Out io.Writer
	// Username is offered as the default answer when set.
	Username string
	// ReadPassword reads a password without echoing it.
	ReadPassword func() ([]byte, error)
}

// NewPromptProvider prompts on the terminal attached to stdin.
func NewPromptProvider(defaultUser string) *PromptProvider {
	fd := int(os.Stdin.Fd())
	return &PromptProvider{
		In:       os.Stdin,
		Out:      os.Stderr,
		Username: defaultUser,
		ReadPassword: func() ([]byte, error) {
			if !term.IsTerminal(fd) {
				return nil, errors.New("password prompt needs a terminal")
			}
			return term.ReadPassword(fd)
		},
	}
}

func (p *PromptProvider) Credentials(ctx context.Context) (Credentials, error) {
	reader := bufio.NewReader(p.In)

	if p.Username != "" {
		fmt.Fprintf(p.Out, "Confluence username [%s]: ", p.Username)
	} else {
		fmt.Fprint(p.Out, "Confluence username: ")
	}
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return Credentials{}, fmt.Errorf("failed to read username: %w", err)
	}
	user := strings.TrimSpace(line)
	if user == "" {
		user = p.Username
	}
	if user == "" {
		return Credentials{}, ErrNoCredentials
	}

	fmt.Fprint(p.Out, "Confluence password: ")
	pass, err := p.ReadPassword()
	fmt.Fprintln(p.Out)
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to read password: %w", err)
	}
	if len(pass) == 0 {
		return Credentials{}, ErrNoCredentials
	}
	return Credentials{Username: user, Password: string(pass)}, nil
}

// ChainProvider tries providers in order and returns the first credentials
// found.
type ChainProvider []CredentialProvider

func (c ChainProvider) Credentials(ctx context.Context) (Credentials, error) {
	for _, p := range c {
		creds, err := p.Credentials(ctx)
		if errors.Is(err, ErrNoCredentials) {
			continue
		}
		return creds, err
	}
	return Credentials{}, ErrNoCredentials
}
