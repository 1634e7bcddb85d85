package config

import (
	"sort"

	"github.com/san-kum/thyrosim/internal/physiology"
)

// Preset is a named patient and thyroid state.
type Preset struct {
	Description string
	Patient     PatientConfig
	Secretion   SecretionConfig
	Absorption  AbsorptionConfig
	Days        float64
}

var Presets = map[string]*Preset{
	"euthyroid-female": {
		Description: "reference female, normal thyroid",
		Patient:     PatientConfig{Height: 1.63, Weight: 59, Sex: physiology.Female},
		Secretion:   SecretionConfig{T4: 100, T3: 100},
		Absorption:  AbsorptionConfig{T4: 88, T3: 88},
		Days:        5,
	},
	"euthyroid-male": {
		Description: "reference male, normal thyroid",
		Patient:     PatientConfig{Height: 1.77, Weight: 70, Sex: physiology.Male},
		Secretion:   SecretionConfig{T4: 100, T3: 100},
		Absorption:  AbsorptionConfig{T4: 88, T3: 88},
		Days:        5,
	},
	"hypothyroid": {
		Description: "residual function at 25%",
		Patient:     PatientConfig{Height: 1.70, Weight: 70, Sex: physiology.Female},
		Secretion:   SecretionConfig{T4: 25, T3: 25},
		Absorption:  AbsorptionConfig{T4: 88, T3: 88},
		Days:        30,
	},
	"severe-hypothyroid": {
		Description: "no residual function, e.g. after thyroidectomy",
		Patient:     PatientConfig{Height: 1.70, Weight: 70, Sex: physiology.Female},
		Secretion:   SecretionConfig{T4: 0, T3: 0},
		Absorption:  AbsorptionConfig{T4: 88, T3: 88},
		Days:        30,
	},
	"malabsorption": {
		Description: "hypothyroid with poor oral absorption",
		Patient:     PatientConfig{Height: 1.70, Weight: 70, Sex: physiology.Female},
		Secretion:   SecretionConfig{T4: 25, T3: 25},
		Absorption:  AbsorptionConfig{T4: 40, T3: 40},
		Days:        30,
	},
}

func GetPreset(name string) *Preset {
	return Presets[name]
}

// ListPresets returns preset names in sorted order.
func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply overwrites the patient section of c with p.
func (p *Preset) Apply(c *AppConfiguration) {
	c.Patient = p.Patient
	c.Secretion = p.Secretion
	c.Absorption = p.Absorption
	c.Days = p.Days
}
