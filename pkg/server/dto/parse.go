package dto

import (
	"errors"

	"github.com/soundprediction/agentgraph/pkg/nlp"
)

// ParseSettingsUpdate converts a loose JSON body into a settings update.
// Field presence is meaningful here, absent fields keep their stored
// values, so the body is inspected as a map rather than bound to a
// struct.
func ParseSettingsUpdate(body map[string]any) (nlp.SettingsUpdate, error) {
	var update nlp.SettingsUpdate
	if raw, ok := body["base_url"]; ok {
		s, ok := raw.(string)
		if !ok {
			return update, errors.New("base_url must be a string")
		}
		update.BaseURL = &s
	}
	if raw, ok := body["api_key"]; ok {
		s, ok := raw.(string)
		if !ok {
			return update, errors.New("api_key must be a string")
		}
		update.APIKey = &s
	}
	if raw, ok := body["clear_api_key"]; ok {
		b, ok := raw.(bool)
		if !ok {
			return update, errors.New("clear_api_key must be a boolean")
		}
		update.ClearAPIKey = b
	}
	if raw, ok := body["models"]; ok {
		items, ok := raw.([]any)
		if !ok {
			return update, errors.New("models must be a string array")
		}
		models := make([]string, 0, len(items))
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				return update, errors.New("models must be a string array")
			}
			models = append(models, s)
		}
		update.Models = models
	}
	if raw, ok := body["model_routing"]; ok {
		obj, ok := raw.(map[string]any)
		if !ok {
			return update, errors.New("model_routing must be an object")
		}
		routing := make(map[string]string, len(obj))
		for stage, value := range obj {
			s, ok := value.(string)
			if !ok {
				return update, errors.New("model_routing values must be strings")
			}
			routing[stage] = s
		}
		update.ModelRouting = routing
	}
	return update, nil
}

// ParseActivities accepts either a single activity record or a wrapper
// object {"activities": [...]} and returns the individual records.
func ParseActivities(body map[string]any) ([]map[string]any, error) {
	raw, ok := body["activities"]
	if !ok {
		return []map[string]any{body}, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, errors.New("activities must be an array of objects")
	}
	records := make([]map[string]any, 0, len(items))
	for _, item := range items {
		rec, ok := item.(map[string]any)
		if !ok {
			return nil, errors.New("activities must be an array of objects")
		}
		records = append(records, rec)
	}
	return records, nil
}
