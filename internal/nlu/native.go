package nlu

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ParseNative extracts intent slots from a platform-native NLU payload of
// the shape {"intents": {name: {"slots": {slot: {"value": v}}}}}. Slot
// values are rendered as strings: numbers in their shortest form, objects
// and lists as JSON. A payload without "intents" yields no forms.
func ParseNative(payload map[string]any) (map[string]map[string]string, error) {
	forms := make(map[string]map[string]string)
	raw, ok := payload["intents"]
	if !ok || raw == nil {
		return forms, nil
	}
	intents, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("nlu: intents is %T, want object", raw)
	}
	for name, v := range intents {
		intent, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("nlu: intent %q is %T, want object", name, v)
		}
		slots := make(map[string]string)
		if rawSlots, ok := intent["slots"]; ok && rawSlots != nil {
			sm, ok := rawSlots.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("nlu: slots of intent %q is %T, want object", name, rawSlots)
			}
			for slot, sv := range sm {
				obj, ok := sv.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("nlu: slot %q of intent %q is %T, want object", slot, name, sv)
				}
				value, err := slotString(obj["value"])
				if err != nil {
					return nil, fmt.Errorf("nlu: slot %q of intent %q: %w", slot, name, err)
				}
				slots[slot] = value
			}
		}
		forms[name] = slots
	}
	return forms, nil
}

func slotString(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(x), nil
	case bool:
		return strconv.FormatBool(x), nil
	case json.Number:
		return x.String(), nil
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}
