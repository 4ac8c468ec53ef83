package components

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/template"

	"github.com/directord/directord/pkg/cache"
)

// cachedArgs reads back the merged ARG/ENV/FACT dictionary a worker has
// accumulated, used as the template values for render.
func cachedArgs(c cache.Cache) (map[string]interface{}, error) {
	entry, ok, err := c.Get("args")
	if err != nil {
		return nil, fmt.Errorf("components: reading cached args: %w", err)
	}
	if !ok {
		return map[string]interface{}{}, nil
	}
	var args map[string]interface{}
	if err := json.Unmarshal(entry.Value, &args); err != nil {
		return nil, fmt.Errorf("components: decoding cached args: %w", err)
	}
	return args, nil
}

// cachedEnvs reads back the envs namespace ENV jobs accumulate, used as
// RUN's subprocess environment.
func cachedEnvs(c cache.Cache) (map[string]interface{}, error) {
	entry, ok, err := c.Get("envs")
	if err != nil {
		return nil, fmt.Errorf("components: reading cached envs: %w", err)
	}
	if !ok {
		return map[string]interface{}{}, nil
	}
	var envs map[string]interface{}
	if err := json.Unmarshal(entry.Value, &envs); err != nil {
		return nil, fmt.Errorf("components: decoding cached envs: %w", err)
	}
	return envs, nil
}

// mergeEnvs merges update into the worker's cached envs namespace, the
// ENV-only analogue of mergeArgs.
func mergeEnvs(c cache.Cache, update map[string]interface{}) error {
	existing, err := cachedEnvs(c)
	if err != nil {
		return err
	}
	deepMerge(existing, update, false)

	data, err := json.Marshal(existing)
	if err != nil {
		return fmt.Errorf("components: encoding merged envs: %w", err)
	}
	return c.Set(cache.Entry{Key: "envs", Value: data, Tags: []string{"envs"}})
}

// render substitutes {{ .key }} placeholders in content using the worker's
// cached args, the Go-template equivalent of the original's Jinja-based
// blueprinter. Missing keys render empty rather than failing, matching
// blueprinter's allow_empty_values behavior.
func render(content string, args map[string]interface{}) (string, error) {
	tmpl, err := template.New("job").Option("missingkey=zero").Parse(content)
	if err != nil {
		return "", fmt.Errorf("components: parsing template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, args); err != nil {
		return "", fmt.Errorf("components: executing template: %w", err)
	}
	return buf.String(), nil
}

// mergeArgs merges update into the worker's cached args dictionary and
// persists the result, used by ARG/ENV/FACT and by the coordinator's QUERY
// fan-out. Merging is recursive for nested maps (so repeated QUERY
// fan-outs from different workers accumulate under args["query"] instead
// of clobbering each other) and appends for lists when extend is set,
// mirroring the original's utils.merge_dict.
func mergeArgs(c cache.Cache, update map[string]interface{}, extend bool) error {
	existing, err := cachedArgs(c)
	if err != nil {
		return err
	}
	deepMerge(existing, update, extend)

	data, err := json.Marshal(existing)
	if err != nil {
		return fmt.Errorf("components: encoding merged args: %w", err)
	}
	return c.Set(cache.Entry{Key: "args", Value: data, Tags: []string{"args"}})
}

// deepMerge folds new into base in place: nested maps merge recursively,
// lists are appended to (only when extend is set), everything else
// overwrites base's prior value.
func deepMerge(base map[string]interface{}, new map[string]interface{}, extend bool) {
	for k, v := range new {
		existing, ok := base[k]
		if !ok {
			base[k] = v
			continue
		}
		switch value := v.(type) {
		case map[string]interface{}:
			if existingMap, ok := existing.(map[string]interface{}); ok {
				deepMerge(existingMap, value, extend)
				continue
			}
			base[k] = value
		case []interface{}:
			if extend {
				if existingList, ok := existing.([]interface{}); ok {
					base[k] = append(existingList, value...)
					continue
				}
			}
			base[k] = value
		default:
			if extend {
				if existingList, ok := existing.([]interface{}); ok {
					base[k] = append(existingList, value)
					continue
				}
			}
			base[k] = value
		}
	}
}
