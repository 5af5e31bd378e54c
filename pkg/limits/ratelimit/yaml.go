package ratelimit

import (
	"gopkg.in/yaml.v3"
)

// UnmarshalYAML decodes a Config and fills sliding window log parameters
// that are absent from the document. An identity without a kind is a
// sliding window log. Keys that are present keep their value, so an
// explicit zero still fails Validate.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	type plain Config
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}

	present := make(map[string]bool)
	if value.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(value.Content); i += 2 {
			present[value.Content[i].Value] = true
		}
	}

	if p.Kind == "" && !present["kind"] {
		p.Kind = KindSlidingWindowLog
	}
	if p.Kind == KindSlidingWindowLog {
		def := DefaultSlidingWindowLogConfig()
		if !present["window"] {
			p.Window = def.Window
		}
		if !present["max_requests"] {
			p.MaxRequests = def.MaxRequests
		}
	}

	*c = Config(p)
	return nil
}
