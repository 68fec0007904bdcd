package triage

// selfHarmTriggers force provider review with a RED signal in every mode.
// Matching is case-insensitive substring; the list is maintained by hand.
var selfHarmTriggers = []string{
	"suicide", "kill myself", "hurt myself", "end it", "psychosis",
	"hearing voices", "seeing things",
}

// clinicalTriggers force provider review with a YELLOW signal in HEALTH mode.
var clinicalTriggers = []string{
	// maternal red flags
	"severe headache", "vision changes", "bp ", "blood pressure",
	"shortness of breath", "chest pain",
	"calf pain", "leg swelling", "dvt", "pulmonary embolism",
	"heavy bleeding", "soaked pad", "large clots",
	"fever", "103", "102", "101", "100.4", "chills",
	"incision red", "incision pus", "wound opening", "infection",
	"severe abdominal pain", "right upper quadrant pain",
	"postpartum preeclampsia", "postpartum hemorrhage",
	// infant red flags
	"blue lips", "floppy", "lethargic baby", "no wet diapers",
	"fever baby", "high fever baby", "trouble breathing",
	// meds / diagnosis specifics
	"dose", "dosage", "prescribed", "antibiotic", "antidepressant",
	"sertraline", "zoloft", "ssri", "ibuprofen", "acetaminophen",
	"breastfeeding and medication", "drug interaction",
}
