package chatbot

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultHelpTopic is served for empty or unknown topics
const DefaultHelpTopic = "general"

//go:embed help.yaml
var helpYAML []byte

// HelpCatalog holds the static help texts keyed by topic
type HelpCatalog struct {
	topics map[string]string
}

// LoadHelpCatalog parses a YAML mapping of topic to text
func LoadHelpCatalog(data []byte) (*HelpCatalog, error) {
	topics := make(map[string]string)
	if err := yaml.Unmarshal(data, &topics); err != nil {
		return nil, fmt.Errorf("failed to parse help catalog: %w", err)
	}
	if _, ok := topics[DefaultHelpTopic]; !ok {
		return nil, fmt.Errorf("help catalog has no %q topic", DefaultHelpTopic)
	}
	for k, v := range topics {
		topics[k] = strings.TrimRight(v, "\n")
	}
	return &HelpCatalog{topics: topics}, nil
}

// DefaultHelpCatalog returns the embedded catalog
func DefaultHelpCatalog() *HelpCatalog {
	c, err := LoadHelpCatalog(helpYAML)
	if err != nil {
		panic(err)
	}
	return c
}

// Get returns the resolved topic and its text. Lookup is case-insensitive
// and falls back to the general topic.
func (c *HelpCatalog) Get(topic string) (string, string) {
	key := strings.ToLower(strings.TrimSpace(topic))
	if text, ok := c.topics[key]; ok {
		return key, text
	}
	return DefaultHelpTopic, c.topics[DefaultHelpTopic]
}

// Topics lists the known topics in alphabetical order
func (c *HelpCatalog) Topics() []string {
	out := make([]string, 0, len(c.topics))
	for k := range c.topics {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
