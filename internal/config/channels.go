package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"chanrelay/internal/domain"
)

// LoadChannels reads the channels document at path. Any failure is logged and
// yields an empty mapping, so the relay runs with zero subscribed channels
// instead of aborting.
func LoadChannels(path string, logger *slog.Logger) domain.ChannelMapping {
	mapping, err := ReadChannels(path)
	if err != nil {
		logger.Error("channel config not loaded, relaying nothing", "path", path, "err", err)
		return domain.NewChannelMapping(nil)
	}
	logger.Info("channel config loaded", "path", path, "channels", mapping.Len())
	return mapping
}

// ReadChannels parses the channels document at path (JSON, or YAML for .yaml/.yml).
// Errors wrap domain.ErrConfigLoad.
func ReadChannels(path string) (domain.ChannelMapping, error) {
	data, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return domain.ChannelMapping{}, fmt.Errorf("%w: %w", domain.ErrConfigLoad, err)
	}
	routes, err := ParseChannels(data, filepath.Ext(path))
	if err != nil {
		return domain.ChannelMapping{}, fmt.Errorf("%w: %s: %w", domain.ErrConfigLoad, path, err)
	}
	return domain.NewChannelMapping(routes), nil
}

// ParseChannels decodes a channels document. ext selects YAML for ".yaml"/".yml".
func ParseChannels(data []byte, ext string) (map[string][]domain.Destination, error) {
	var doc map[string][]DestinationRecord
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	}

	routes := make(map[string][]domain.Destination, len(doc))
	for key, records := range doc {
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("empty channel key")
		}
		dests := make([]domain.Destination, 0, len(records))
		for i, rec := range records {
			dest, err := rec.Destination()
			if err != nil {
				return nil, fmt.Errorf("channel %s destination %d: %w", key, i, err)
			}
			dests = append(dests, dest)
		}
		routes[key] = dests
	}
	return routes, nil
}

// DestinationRecord is one destination entry of the channels document. It
// accepts a bare URL string, a list whose first element is the URL, or an
// object with named fields.
type DestinationRecord struct {
	URL       string `json:"url"       yaml:"url"`
	Kind      string `json:"kind"      yaml:"kind"`
	Name      string `json:"name"      yaml:"name"`
	Username  string `json:"username"  yaml:"username"`
	AvatarURL string `json:"avatarUrl" yaml:"avatarUrl"`
}

func (r *DestinationRecord) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = DestinationRecord{URL: s}
		return nil
	}

	var list []json.RawMessage
	if err := json.Unmarshal(data, &list); err == nil {
		if len(list) == 0 {
			return fmt.Errorf("empty destination record")
		}
		if err := json.Unmarshal(list[0], &s); err != nil {
			return fmt.Errorf("first field of destination record must be a URL string")
		}
		*r = DestinationRecord{URL: s}
		return nil
	}

	type plain DestinationRecord
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("destination record: %w", err)
	}
	*r = DestinationRecord(p)
	return nil
}

func (r *DestinationRecord) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*r = DestinationRecord{URL: node.Value}
		return nil
	case yaml.SequenceNode:
		if len(node.Content) == 0 {
			return fmt.Errorf("line %d: empty destination record", node.Line)
		}
		first := node.Content[0]
		if first.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: first field of destination record must be a URL string", first.Line)
		}
		*r = DestinationRecord{URL: first.Value}
		return nil
	case yaml.MappingNode:
		type plain DestinationRecord
		var p plain
		if err := node.Decode(&p); err != nil {
			return err
		}
		*r = DestinationRecord(p)
		return nil
	default:
		return fmt.Errorf("line %d: unsupported destination record", node.Line)
	}
}

// Destination validates the record and converts it.
func (r DestinationRecord) Destination() (domain.Destination, error) {
	raw := strings.TrimSpace(r.URL)
	if raw == "" {
		return domain.Destination{}, fmt.Errorf("missing webhook URL")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return domain.Destination{}, fmt.Errorf("invalid webhook URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return domain.Destination{}, fmt.Errorf("webhook URL must be absolute http(s)")
	}

	kind := domain.DestinationKind(strings.ToLower(strings.TrimSpace(r.Kind)))
	switch kind {
	case "":
		kind = domain.KindWebhook
	case domain.KindWebhook, domain.KindDiscord, domain.KindSlack:
	default:
		return domain.Destination{}, fmt.Errorf("unknown destination kind %q", r.Kind)
	}

	return domain.Destination{
		URL:       raw,
		Kind:      kind,
		Name:      r.Name,
		Username:  r.Username,
		AvatarURL: r.AvatarURL,
	}, nil
}
