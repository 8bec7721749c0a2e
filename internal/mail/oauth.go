package mail

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
)

// OAuthConfig читает client credentials (credentials.json из Google Cloud Console)
func OAuthConfig(credentialsFile string) (*oauth2.Config, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	conf, err := google.ConfigFromJSON(b, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}
	return conf, nil
}

// TokenSource возвращает источник токенов с кэшем в tokenFile.
// Если токена нет, печатает ссылку авторизации в out и читает код из in.
func TokenSource(ctx context.Context, conf *oauth2.Config, tokenFile string, in io.Reader, out io.Writer) (oauth2.TokenSource, error) {
	tok, err := LoadToken(tokenFile)
	if errors.Is(err, os.ErrNotExist) {
		tok, err = requestToken(ctx, conf, in, out)
		if err != nil {
			return nil, err
		}
		if err := SaveToken(tokenFile, tok); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	return conf.TokenSource(ctx, tok), nil
}

func requestToken(ctx context.Context, conf *oauth2.Config, in io.Reader, out io.Writer) (*oauth2.Token, error) {
	authURL := conf.AuthCodeURL("mailrag", oauth2.AccessTypeOffline)
	fmt.Fprintf(out, "Open the following link in your browser and paste the authorization code:\n%s\n\nCode: ", authURL)

	code, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && code != "") {
		return nil, fmt.Errorf("failed to read authorization code: %w", err)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, errors.New("authorization code is empty")
	}

	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange auth code: %w", err)
	}
	return tok, nil
}

// LoadToken читает закэшированный токен
func LoadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("invalid token file %s: %w", path, err)
	}
	return tok, nil
}

// SaveToken сохраняет токен с правами 0600
func SaveToken(path string, tok *oauth2.Token) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create token directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(tok)
}
