// internal/model/settings.go
package model

import "slices"

// BaudRateSetting is the well-known settings key for the serial speed
const BaudRateSetting = "baudrate"

// Setting is one adjustable device parameter
type Setting struct {
	Values        []string `json:"values"`
	SelectedValue string   `json:"selected_value"`
}

// SettingsDescriptor maps parameter names to their options. Absence of a key
// means the device does not support that parameter.
type SettingsDescriptor map[string]Setting

// Lookup returns the named setting and whether the device supports it
func (d SettingsDescriptor) Lookup(key string) (Setting, bool) {
	if d == nil {
		return Setting{}, false
	}
	s, ok := d[key]
	return s, ok
}

// Select returns a copy of d with key set to value. The value must be one of
// the advertised values.
func (d SettingsDescriptor) Select(key, value string) (SettingsDescriptor, bool) {
	s, ok := d.Lookup(key)
	if !ok || !slices.Contains(s.Values, value) {
		return d, false
	}
	out := d.Clone()
	s.SelectedValue = value
	out[key] = s
	return out, true
}

// Clone deep copies the descriptor
func (d SettingsDescriptor) Clone() SettingsDescriptor {
	if d == nil {
		return nil
	}
	out := make(SettingsDescriptor, len(d))
	for k, v := range d {
		out[k] = Setting{
			Values:        slices.Clone(v.Values),
			SelectedValue: v.SelectedValue,
		}
	}
	return out
}

// SerialSettings returns the descriptor a serial port advertises
func SerialSettings(selected BaudRate) SettingsDescriptor {
	values := make([]string, 0, len(BaudRates))
	for _, r := range BaudRates {
		values = append(values, r.String())
	}
	return SettingsDescriptor{
		BaudRateSetting: {
			Values:        values,
			SelectedValue: selected.String(),
		},
	}
}
