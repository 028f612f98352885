package scoring

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// educationRanks orders degrees: doctorate > master's/professional > bachelor's > certificate/diploma.
var educationRanks = map[string]float64{
	"phd":           3,
	"doctorate":     3,
	"master":        2.5,
	"mba":           2.5,
	"msc":           2.5,
	"bachelor":      2,
	"btech":         2,
	"bsc":           2,
	"b.s":           2,
	"certification": 1.5,
	"certificate":   1.5,
	"diploma":       1,
}

var reYears = regexp.MustCompile(`(\d+)\+?\s*years?`)

// DefaultSkills is the weighted critical-skill vocabulary used when none is configured.
func DefaultSkills() SkillVocabulary {
	return SkillVocabulary{
		"python": 2.0, "java": 2.0, "javascript": 2.0, "sql": 2.0,
		"react": 1.8, "node": 1.8, "aws": 1.8, "azure": 1.8, "gcp": 1.8,
		"machine learning": 2.0, "ai": 2.0, "data science": 2.0,
		"kubernetes": 1.8, "docker": 1.8, "git": 1.5,
	}
}

// SkillVocabulary maps a lowercase skill term to its importance.
type SkillVocabulary map[string]float64

// educationRank returns the highest degree rank mentioned in text, 0 if none.
func educationRank(text string) float64 {
	text = strings.ToLower(text)
	best := 0.0
	for term, rank := range educationRanks {
		if rank > best && strings.Contains(text, term) {
			best = rank
		}
	}
	return best
}

// EducationScore compares the highest degree in candidate with the one query asks for.
func EducationScore(query, candidate string) float64 {
	required := educationRank(query)
	if required == 0 {
		return 0.8
	}
	have := educationRank(candidate)
	switch {
	case have >= required:
		return 1.0
	case have >= required*0.8:
		return 0.8
	default:
		return 0.6
	}
}

// YearsOfExperience returns the largest "<n> years" figure in text, 0 if none.
func YearsOfExperience(text string) int {
	best := 0
	for _, m := range reYears.FindAllStringSubmatch(strings.ToLower(text), -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n > best {
			best = n
		}
	}
	return best
}

// ExperienceScore gives partial credit for candidates short of the required years,
// never below 0.5.
func ExperienceScore(query, candidate string) float64 {
	required := YearsOfExperience(query)
	if required == 0 {
		return 0.8
	}
	have := YearsOfExperience(candidate)
	switch {
	case have >= required:
		return 1.0
	case float64(have) >= float64(required)*0.7:
		return 0.85
	default:
		return max(0.5, float64(have)/float64(required))
	}
}

// SkillScore is the weighted share of the skills found in query that candidate
// also mentions. A query without known skills scores 0.5.
func SkillScore(vocab SkillVocabulary, query, candidate string) float64 {
	query, candidate = strings.ToLower(query), strings.ToLower(candidate)

	// Sorted so the float sums are identical between runs.
	skills := make([]string, 0, len(vocab))
	for skill := range vocab {
		skills = append(skills, skill)
	}
	sort.Strings(skills)

	var total, matched float64
	for _, skill := range skills {
		weight := vocab[skill]
		if weight <= 0 || !containsTerm(query, skill) {
			continue
		}
		total += weight
		if containsTerm(candidate, skill) {
			matched += weight
		}
	}
	if total == 0 {
		return 0.5
	}
	return min(1.0, matched/total)
}

// containsTerm reports whether term occurs in text without letters or digits
// glued to either side, so "ai" does not match "maintain".
func containsTerm(text, term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return false
	}
	for off := 0; off < len(text); {
		i := strings.Index(text[off:], term)
		if i < 0 {
			return false
		}
		start := off + i
		end := start + len(term)
		if !isWordRune(lastRune(text[:start])) && !isWordRune(firstRune(text[end:])) {
			return true
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		off = start + size
	}
	return false
}

func firstRune(s string) rune {
	if s == "" {
		return ' '
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r
}

func lastRune(s string) rune {
	if s == "" {
		return ' '
	}
	r, _ := utf8.DecodeLastRuneInString(s)
	return r
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
