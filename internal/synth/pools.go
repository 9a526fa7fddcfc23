package synth

import (
	"math/rand"
	"strings"

	"github.com/clerkops/formbench/internal/types"
)

// fieldTypeData maps field types to their synthetic value pools.
var fieldTypeData = map[types.FieldType][]string{
	types.FieldNumericShort: {
		"123", "456", "789", "012", "345", "678", "901", "234",
		"5678", "9012", "1234", "4567", "8901", "42", "307", "88",
	},
	types.FieldTextShort: {
		"TX", "CA", "NY", "FL", "IL", "PA", "OH", "GA",
		"Civil", "Criminal", "Family", "Probate", "Juvenile",
		"Plaintiff", "Defendant", "Appellant", "Respondent",
		"Dallas", "Harris", "Travis", "Bexar", "Tarrant", "El Paso",
	},
	types.FieldSentence: {
		"The defendant failed to appear at the scheduled hearing.",
		"Plaintiff requests summary judgment on all counts.",
		"Motion to dismiss is hereby granted.",
		"The court finds sufficient evidence to proceed.",
		"All parties have been duly notified of the hearing date.",
		"Defendant is ordered to pay restitution to the plaintiff.",
		"The case is hereby continued to the next available date.",
		"Witness testimony corroborates the plaintiff's claims.",
	},
	types.FieldFullName: {
		"John Smith", "Jane Doe", "Robert Johnson", "Maria Garcia",
		"Michael Brown", "Emily Davis", "David Wilson", "Sarah Miller",
		"James Taylor", "Jennifer Anderson", "William Thomas", "Linda Martinez",
		"Charles Jordan", "Patricia Williams", "Daniel Lee", "Angela Robinson",
		"Christopher Harris", "Amanda Clark", "Matthew Wright", "Stephanie King",
	},
	types.FieldDayMonth: {
		"January 15", "February 20", "March 10", "April 5",
		"May 25", "June 30", "July 4", "August 15",
		"September 1", "October 12", "November 28", "December 25",
		"January 3", "March 22", "June 17", "September 30",
	},
	types.FieldTwoDigitYear: {
		"20", "21", "22", "23", "24", "25", "26",
	},
	types.FieldFourDigitYear: {
		"2020", "2021", "2022", "2023", "2024", "2025", "2026",
	},
}

// legacyPool pairs a field-name substring with its fallback value pool.
// Order matters: the first substring found in the field name wins.
type legacyPool struct {
	key    string
	values []string
}

// legacyPools are the name-based fallbacks kept for mappings that predate
// field types.
var legacyPools = []legacyPool{
	{"defendant_name", fieldTypeData[types.FieldFullName]},
	{"plaintiff_name", []string{
		"ABC Corporation", "XYZ Inc.", "State of Texas", "City of Dallas",
		"First National Bank", "Johnson & Associates", "Smith Holdings LLC",
	}},
	{"case_number", []string{
		"2024-CV-001234", "2024-CV-005678", "2023-CV-009012", "2024-CR-003456",
		"DC-2024-0001", "DC-2024-0042", "CC-2024-1234", "JP-2024-5678",
	}},
	{"date", []string{
		"January 15, 2024", "February 20, 2024", "March 10, 2024",
		"April 5, 2024", "May 25, 2024", "June 30, 2024",
	}},
}

// defaultPool is the pool of last resort.
var defaultPool = fieldTypeData[types.FieldTextShort]

// syntheticValue picks a value for a field. Custom options win, then the
// field-type pool, then the legacy name-substring pools, then the default.
func syntheticValue(rng *rand.Rand, fieldName string, fieldType types.FieldType, customOptions []string) string {
	if len(customOptions) > 0 {
		return customOptions[rng.Intn(len(customOptions))]
	}

	if pool, ok := fieldTypeData[fieldType]; ok {
		return pool[rng.Intn(len(pool))]
	}

	lower := strings.ToLower(fieldName)
	for _, lp := range legacyPools {
		if strings.Contains(lower, lp.key) {
			return lp.values[rng.Intn(len(lp.values))]
		}
	}

	return defaultPool[rng.Intn(len(defaultPool))]
}
