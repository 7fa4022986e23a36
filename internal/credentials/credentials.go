// Package credentials reads and updates the Google Ads credentials file.
package credentials

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const section = "google_ads"

type Credentials struct {
	GoogleAds struct {
		DeveloperToken  string `yaml:"developer_token"`
		ClientID        string `yaml:"client_id"`
		ClientSecret    string `yaml:"client_secret"`
		RefreshToken    string `yaml:"refresh_token"`
		LoginCustomerID string `yaml:"login_customer_id"`
	} `yaml:"google_ads"`
}

// Load reads path and applies GOOGLE_ADS_* env overrides. A missing file is
// fine when the environment supplies everything.
func Load(path string) (Credentials, error) {
	var c Credentials
	if err := loadYAML(path, &c); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Credentials{}, err
	}
	applyEnvOverrides(&c)
	return c, nil
}

// Validate checks the fields needed for API calls. The refresh token is
// only required once the authorization step has run.
func (c Credentials) Validate(needRefreshToken bool) error {
	g := c.GoogleAds
	var missing []string
	if g.ClientID == "" {
		missing = append(missing, "client_id")
	}
	if g.ClientSecret == "" {
		missing = append(missing, "client_secret")
	}
	if needRefreshToken {
		if g.DeveloperToken == "" {
			missing = append(missing, "developer_token")
		}
		if g.RefreshToken == "" {
			missing = append(missing, "refresh_token (run `pausee auth`)")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("credentials: missing %s.%s", section, strings.Join(missing, ", "+section+"."))
	}
	return nil
}

func loadYAML(path string, out interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open credentials file %s: %w", path, err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode credentials file %s: %w", path, err)
	}
	return nil
}

func applyEnvOverrides(c *Credentials) {
	if v := os.Getenv("GOOGLE_ADS_DEVELOPER_TOKEN"); v != "" {
		c.GoogleAds.DeveloperToken = v
	}
	if v := os.Getenv("GOOGLE_ADS_CLIENT_ID"); v != "" {
		c.GoogleAds.ClientID = v
	}
	if v := os.Getenv("GOOGLE_ADS_CLIENT_SECRET"); v != "" {
		c.GoogleAds.ClientSecret = v
	}
	if v := os.Getenv("GOOGLE_ADS_REFRESH_TOKEN"); v != "" {
		c.GoogleAds.RefreshToken = v
	}
	if v := os.Getenv("GOOGLE_ADS_LOGIN_CUSTOMER_ID"); v != "" {
		c.GoogleAds.LoginCustomerID = v
	}
}

// SaveRefreshToken sets google_ads.refresh_token in the file at path,
// keeping every other key and comment.
func SaveRefreshToken(path, token string) error {
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read credentials file: %w", err)
	}

	var doc yaml.Node
	if len(bytes.TrimSpace(data)) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("decode credentials file %s: %w", path, err)
		}
	}
	if doc.Kind == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode}}}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("credentials file %s: top level is not a mapping", path)
	}
	sec := mappingValue(root, section)
	if sec == nil {
		sec = &yaml.Node{Kind: yaml.MappingNode}
		root.Content = append(root.Content, scalar(section), sec)
	}
	if sec.Kind != yaml.MappingNode {
		return fmt.Errorf("credentials file %s: %s is not a mapping", path, section)
	}
	if v := mappingValue(sec, "refresh_token"); v != nil {
		v.Kind, v.Tag, v.Value = yaml.ScalarNode, "!!str", token
	} else {
		sec.Content = append(sec.Content, scalar("refresh_token"), scalar(token))
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	_ = enc.Close()
	return writeFile(path, buf.Bytes())
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func scalar(v string) *yaml.Node { return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v} }

func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
