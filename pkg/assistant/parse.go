package assistant

import (
	"regexp"
	"strings"
)

// Analysis is the structured reading of a disease detection response.
type Analysis struct {
	PlantName               string            `json:"plant_name"`
	PlantScientificName     string            `json:"plant_scientific_name"`
	DiseaseName             string            `json:"disease_name"`
	DiseaseScientificName   string            `json:"disease_scientific_name"`
	Confidence              string            `json:"confidence"`
	Symptoms                []string          `json:"symptoms"`
	CauseOfDisease          string            `json:"cause_of_disease"`
	DiseaseCycle            string            `json:"disease_cycle"`
	Medications             []string          `json:"medications"`
	OrganicAlternatives     []string          `json:"organic_alternatives"`
	CulturalControl         []string          `json:"cultural_control"`
	PreventionTips          []string          `json:"prevention_tips"`
	EnvironmentalConditions map[string]string `json:"environmental_conditions"`
	GeneralGuidelines       string            `json:"general_guidelines"`
	AdditionalAdvice        string            `json:"additional_advice"`
}

var (
	// a header is an upper-case label such as "RECOMMENDED MEDICATIONS (Available in Kenya):"
	headerPattern = regexp.MustCompile(`(?m)^[ \t]*([A-Z]{3,}[A-Z \t]*(?:\([^)\n]*\))?)[ \t]*:[ \t]*(.*)$`)
	itemPattern   = regexp.MustCompile(`(?m)^[ \t]*(?:[•*\-]|\d+[.)])[ \t]*(.+?)[ \t]*$`)
	pairPattern   = regexp.MustCompile(`(?m)^[ \t]*(?:[•*\-][ \t]*)?([^:\n]+?)[ \t]*:[ \t]*(.+?)[ \t]*$`)
	spacePattern  = regexp.MustCompile(`\s+`)
)

var commonCrops = []string{
	"sweet potato", "maize", "tomato", "potato", "bean", "coffee", "tea", "wheat", "rice",
	"cassava", "banana", "cabbage", "kale", "spinach", "onion", "carrot", "cucumber",
	"pepper", "strawberry", "apple", "mango", "orange", "lemon", "avocado", "sugarcane",
}

// DefaultAnalysis is stored when no usable response is available.
func DefaultAnalysis() Analysis {
	return Analysis{
		PlantName:               "Unknown",
		PlantScientificName:     "Unknown",
		DiseaseName:             "Analysis Pending",
		DiseaseScientificName:   "Unknown",
		Confidence:              "Medium",
		Symptoms:                []string{"Unable to extract specific symptoms"},
		CauseOfDisease:          "Information not available from the analysis.",
		DiseaseCycle:            "Information not available from the analysis.",
		Medications:             []string{"Please consult with a local agricultural officer or agrovet for specific recommendations."},
		OrganicAlternatives:     []string{"Contact KALRO (Kenya Agricultural and Livestock Research Organization) for organic solutions."},
		CulturalControl:         []string{"Practice crop rotation", "Improve air circulation", "Remove and destroy infected plants"},
		PreventionTips:          []string{"Use disease-resistant varieties", "Maintain field hygiene", "Monitor crops regularly"},
		EnvironmentalConditions: map[string]string{},
		GeneralGuidelines:       "Please consult with your local agricultural extension officer or agrovet for specific advice tailored to your area.",
		AdditionalAdvice:        "For accurate diagnosis, please take clear photos of affected leaves, stems, and fruits.",
	}
}

// ConfidenceScore maps a confidence label to the stored score.
func ConfidenceScore(label string) float64 {
	fields := strings.Fields(strings.ToLower(label))
	if len(fields) == 0 {
		return 0.45
	}
	switch strings.Trim(fields[0], ".,;-") {
	case "high":
		return 0.85
	case "medium":
		return 0.65
	default:
		return 0.45
	}
}

type section struct {
	key  string
	body string
}

func splitSections(text string) []section {
	matches := headerPattern.FindAllStringSubmatchIndex(text, -1)
	out := make([]section, 0, len(matches))
	for i, m := range matches {
		key := text[m[2]:m[3]]
		if p := strings.Index(key, "("); p >= 0 {
			key = key[:p]
		}
		key = strings.ToUpper(strings.Join(strings.Fields(key), " "))

		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		body := text[m[4]:m[5]] + text[m[1]:end]
		out = append(out, section{key: key, body: strings.TrimSpace(body)})
	}
	return out
}

func collapse(s string) string {
	return strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return collapse(s)
}

func items(body string) []string {
	var out []string
	for _, m := range itemPattern.FindAllStringSubmatch(body, -1) {
		if v := collapse(m[1]); len(v) > 2 {
			out = append(out, v)
		}
	}
	return out
}

func pairs(body string) map[string]string {
	out := map[string]string{}
	for _, m := range pairPattern.FindAllStringSubmatch(body, -1) {
		out[collapse(m[1])] = collapse(m[2])
	}
	return out
}

// ParseAnalysis reads the labelled sections of a response. Missing sections keep
// neutral defaults.
func ParseAnalysis(text string) Analysis {
	a := Analysis{
		PlantName:               "Unknown",
		PlantScientificName:     "Unknown",
		DiseaseName:             "Unknown",
		DiseaseScientificName:   "Unknown",
		Confidence:              "Medium",
		CauseOfDisease:          "Information not available",
		DiseaseCycle:            "Information not available",
		EnvironmentalConditions: map[string]string{},
		GeneralGuidelines:       "Please consult with your local agricultural extension officer for specific advice.",
	}
	if strings.TrimSpace(text) == "" {
		return a
	}

	for _, s := range splitSections(text) {
		switch {
		case s.key == "PLANT NAME" || s.key == "CROP NAME" || s.key == "PLANT" || s.key == "CROP":
			setIf(&a.PlantName, firstLine(s.body))
		case s.key == "SCIENTIFIC NAME" || s.key == "BOTANICAL NAME":
			setIf(&a.PlantScientificName, firstLine(s.body))
		case s.key == "DISEASE NAME" || s.key == "DISEASE" || s.key == "DIAGNOSIS":
			setIf(&a.DiseaseName, firstLine(s.body))
		case s.key == "DISEASE SCIENTIFIC NAME" || s.key == "PATHOGEN" || s.key == "CAUSAL AGENT":
			setIf(&a.DiseaseScientificName, firstLine(s.body))
		case strings.HasPrefix(s.key, "CONFIDENCE"):
			setIf(&a.Confidence, firstLine(s.body))
		case strings.HasPrefix(s.key, "SYMPTOM"):
			a.Symptoms = items(s.body)
		case strings.HasPrefix(s.key, "CAUSE"):
			setIf(&a.CauseOfDisease, collapse(s.body))
		case strings.HasSuffix(s.key, "CYCLE"):
			setIf(&a.DiseaseCycle, collapse(s.body))
		case strings.Contains(s.key, "MEDICATION"):
			a.Medications = items(s.body)
		case strings.HasPrefix(s.key, "ORGANIC"):
			a.OrganicAlternatives = items(s.body)
		case strings.HasPrefix(s.key, "CULTURAL CONTROL"):
			a.CulturalControl = items(s.body)
		case strings.HasPrefix(s.key, "PREVENTION"):
			a.PreventionTips = items(s.body)
		case strings.HasPrefix(s.key, "ENVIRONMENTAL CONDITIONS"):
			a.EnvironmentalConditions = pairs(s.body)
		case strings.HasPrefix(s.key, "GENERAL GUIDELINES"):
			setIf(&a.GeneralGuidelines, collapse(s.body))
		case strings.HasPrefix(s.key, "ADDITIONAL ADVICE"):
			setIf(&a.AdditionalAdvice, collapse(s.body))
		}
	}

	if a.PlantName == "Unknown" {
		lower := strings.ToLower(text)
		for _, crop := range commonCrops {
			if strings.Contains(lower, crop) {
				a.PlantName = titleCase(crop)
				break
			}
		}
	}
	return a
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
