package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// BooksSettings holds the Books (accounting platform) OAuth parameters plus
// the persisted token triple. Only the token fields are ever rewritten.
type BooksSettings struct {
	ClientID        string `yaml:"clientId" validate:"required"`
	Secret          string `yaml:"secret" validate:"required"`
	RedirectUri     string `yaml:"redirectUri" validate:"required,url"`
	AuthorizeUri    string `yaml:"authorizeUri" validate:"required,url"`
	Scope           string `yaml:"scope" validate:"required"`
	OrganizationID  string `yaml:"organizationId" validate:"required"`
	AccessToken     string `yaml:"accessToken"`
	RefreshToken    string `yaml:"refreshToken"`
	TokenExpiration string `yaml:"tokenExpiration"`
}

// FieldOpsSettings holds the FieldOps (source platform) credentials.
type FieldOpsSettings struct {
	APIKey    string `yaml:"apiKey" validate:"required"`
	Subdomain string `yaml:"subdomain" validate:"required"`
}

type Settings struct {
	Books    BooksSettings    `yaml:"books"`
	FieldOps FieldOpsSettings `yaml:"fieldops"`

	path string
	doc  yaml.Node
}

// LoadSettings reads and validates the settings document. The raw yaml node
// tree is retained so SaveTokens can rewrite the token fields without
// disturbing anything else in the file (keys, order, comments).
func LoadSettings(path string) (*Settings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	s := &Settings{path: path}
	if err := yaml.Unmarshal(raw, &s.doc); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	if err := s.doc.Decode(s); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}

	if err := validator.New().Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, fmt.Errorf("settings field %s failed %q validation", verrs[0].Namespace(), verrs[0].Tag())
		}
		return nil, err
	}

	if s.Books.TokenExpiration != "" {
		if _, err := time.Parse(time.RFC3339, s.Books.TokenExpiration); err != nil {
			return nil, fmt.Errorf("settings books.tokenExpiration: %w", err)
		}
	}
	return s, nil
}

// TokenExpiresAt returns the parsed expiration, or the zero time when none
// is recorded (treated as already expired by the token manager).
func (s *Settings) TokenExpiresAt() time.Time {
	if s.Books.TokenExpiration == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s.Books.TokenExpiration)
	if err != nil {
		return time.Time{}
	}
	return t
}

// SaveTokens updates accessToken, refreshToken and tokenExpiration in the
// settings file, leaving every other field exactly as loaded.
func (s *Settings) SaveTokens(accessToken, refreshToken string, expiresAt time.Time) error {
	s.Books.AccessToken = accessToken
	s.Books.RefreshToken = refreshToken
	if expiresAt.IsZero() {
		s.Books.TokenExpiration = ""
	} else {
		s.Books.TokenExpiration = expiresAt.UTC().Format(time.RFC3339)
	}

	root := &s.doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return errors.New("settings document is not a mapping")
	}
	books := findOrAppendMap(root, "books")
	setScalar(books, "accessToken", s.Books.AccessToken)
	setScalar(books, "refreshToken", s.Books.RefreshToken)
	setScalar(books, "tokenExpiration", s.Books.TokenExpiration)

	out, err := yaml.Marshal(&s.doc)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, out, 0o600)
}

func findOrAppendMap(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	k := &yaml.Node{Kind: yaml.ScalarNode, Value: key}
	v := &yaml.Node{Kind: yaml.MappingNode}
	m.Content = append(m.Content, k, v)
	return v
}

func setScalar(m *yaml.Node, key string, value string) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1].SetString(value)
			return
		}
	}
	k := &yaml.Node{Kind: yaml.ScalarNode, Value: key}
	v := &yaml.Node{}
	v.SetString(value)
	m.Content = append(m.Content, k, v)
}
