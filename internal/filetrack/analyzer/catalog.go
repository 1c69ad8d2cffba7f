package analyzer

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lk2023060901/docsense-backend/internal/filetrack/storage"
	apperrors "github.com/lk2023060901/docsense-backend/internal/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultMaxChars document characters sent when a prompt sets no limit
const DefaultMaxChars = 4000

// Prompt catalog entry. The body lives in ContentFile, relative to the
// catalog file.
type Prompt struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	ContentFile string `json:"content_file" yaml:"content_file"`
	SystemRole  string `json:"system_role,omitempty" yaml:"system_role,omitempty"`
	MaxChars    int    `json:"max_chars,omitempty" yaml:"max_chars,omitempty"`
	MaxTokens   int    `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// Catalog prompts by id
type Catalog struct {
	prompts map[string]Prompt
	dir     string
	fs      storage.FS
}

// LoadCatalog reads a JSON or YAML (.yaml/.yml) list of prompts
func LoadCatalog(fsys storage.FS, path string) (*Catalog, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompt catalog %s: %w", path, err)
	}

	var prompts []Prompt
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &prompts)
	default:
		err = json.Unmarshal(data, &prompts)
	}
	if err != nil {
		return nil, fmt.Errorf("parse prompt catalog %s: %w", path, err)
	}

	c := &Catalog{prompts: make(map[string]Prompt, len(prompts)), dir: filepath.Dir(path), fs: fsys}
	for _, p := range prompts {
		if p.ID == "" {
			return nil, fmt.Errorf("prompt catalog %s: entry without id", path)
		}
		if _, dup := c.prompts[p.ID]; dup {
			return nil, fmt.Errorf("prompt catalog %s: duplicate id %q", path, p.ID)
		}
		if p.MaxChars <= 0 {
			p.MaxChars = DefaultMaxChars
		}
		c.prompts[p.ID] = p
	}
	return c, nil
}

// Get looks a prompt up
func (c *Catalog) Get(id string) (Prompt, error) {
	p, ok := c.prompts[id]
	if !ok {
		return Prompt{}, apperrors.New(apperrors.ErrPromptNotFound, id)
	}
	return p, nil
}

// List prompts sorted by id
func (c *Catalog) List() []Prompt {
	out := make([]Prompt, 0, len(c.prompts))
	for _, p := range c.prompts {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Body reads the prompt text
func (c *Catalog) Body(p Prompt) (string, error) {
	if p.ContentFile == "" {
		return "", apperrors.New(apperrors.ErrPromptNotFound, p.ID+": no content_file")
	}
	path := p.ContentFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(c.dir, path)
	}
	data, err := c.fs.ReadFile(path)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrPromptNotFound, p.ID+": "+path)
	}
	return string(data), nil
}
