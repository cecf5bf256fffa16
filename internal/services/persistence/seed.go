package persistence

import "github.com/LeonardoBeccarini/water-treatment/internal/model/entities"

// DefaultOntology is the reference vocabulary written by Seed.
func DefaultOntology() []entities.OntologyTerm {
	return []entities.OntologyTerm{
		{Concept: entities.FieldPollution, Property: "low", Value: 0.0, Description: "Low pollution level"},
		{Concept: entities.FieldPollution, Property: "medium", Value: 0.3, Description: "Medium pollution level"},
		{Concept: entities.FieldPollution, Property: "high", Value: 0.7, Description: "High pollution level"},
		{Concept: entities.FieldPollution, Property: "critical", Value: 0.9, Description: "Critical pollution level"},
		{Concept: entities.FieldPH, Property: "acidic", Value: 6.0, Description: "Acidic water"},
		{Concept: entities.FieldPH, Property: "neutral", Value: 7.0, Description: "Neutral water"},
		{Concept: entities.FieldPH, Property: "alkaline", Value: 8.0, Description: "Alkaline water"},
		{Concept: entities.FieldTemperature, Property: "cold", Value: 10.0, Description: "Cold water"},
		{Concept: entities.FieldTemperature, Property: "optimal", Value: 20.0, Description: "Optimal temperature"},
		{Concept: entities.FieldTemperature, Property: "warm", Value: 30.0, Description: "Warm water"},
		{Concept: entities.FieldOxygen, Property: "low", Value: 2.0, Description: "Low dissolved oxygen"},
		{Concept: entities.FieldOxygen, Property: "normal", Value: 5.0, Description: "Normal dissolved oxygen"},
		{Concept: entities.FieldOxygen, Property: "high", Value: 8.0, Description: "High dissolved oxygen"},
	}
}

// DefaultRules is the plant rule set written by Seed, in ascending priority.
// IDs are assigned by the store.
func DefaultRules() []entities.Rule {
	return []entities.Rule{
		{Name: "High pollution - intensive treatment", Condition: "pollution_level > 0.7", Action: "activate_chemical_treatment", Priority: 1},
		{Name: "Medium pollution - standard treatment", Condition: "pollution_level > 0.3 and pollution_level <= 0.7", Action: "activate_standard_treatment", Priority: 2},
		{Name: "Low pollution - minimal treatment", Condition: "pollution_level <= 0.3", Action: "activate_minimal_treatment", Priority: 3},
		{Name: "Acidic water - add alkaline", Condition: "ph_level < 6.5", Action: "add_alkaline", Priority: 2},
		{Name: "Alkaline water - add acid", Condition: "ph_level > 7.5", Action: "add_acid", Priority: 2},
		{Name: "Low temperature - heating", Condition: "temperature < 15", Action: "activate_heating", Priority: 3},
		{Name: "High temperature - cooling", Condition: "temperature > 25", Action: "activate_cooling", Priority: 3},
		{Name: "Low oxygen - aeration", Condition: "oxygen_level < 3", Action: "activate_aeration", Priority: 2},
	}
}
