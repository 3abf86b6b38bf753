package meal

import (
	"Fasting-Tracker/domain"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)
	decimalPattern    = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)
	calorieSuffixes   = []string{"kcal", "千卡", "大卡", "卡"}

	replyValidator = validator.New()
)

// ValidateResponse turns a raw AI reply into a FoodAnalysisResult. Any reply
// it cannot confidently coerce fails with a *domain.ValidationError.
func ValidateResponse(raw string) (domain.FoodAnalysisResult, error) {
	text := stripFences(raw)
	if match := jsonObjectPattern.FindString(text); match != "" {
		text = match
	} else {
		return domain.FoodAnalysisResult{}, &domain.ValidationError{Reason: "reply contains no JSON object"}
	}

	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return domain.FoodAnalysisResult{}, &domain.ValidationError{Reason: fmt.Sprintf("malformed JSON: %v", err)}
	}

	var (
		result domain.FoodAnalysisResult
		err    error
	)
	if result.FoodName, err = requiredString(fields, "foodName", true); err != nil {
		return domain.FoodAnalysisResult{}, err
	}
	if result.Calories, err = parseCalories(fields["calories"]); err != nil {
		return domain.FoodAnalysisResult{}, err
	}
	if result.Tags, err = parseTags(fields["tags"]); err != nil {
		return domain.FoodAnalysisResult{}, err
	}
	if result.Advice, err = requiredString(fields, "advice", false); err != nil {
		return domain.FoodAnalysisResult{}, err
	}
	if result.NextStep, err = requiredString(fields, "nextStep", false); err != nil {
		return domain.FoodAnalysisResult{}, err
	}
	if result.Macros, err = parseMacros(fields["macros"]); err != nil {
		return domain.FoodAnalysisResult{}, err
	}

	if err := replyValidator.Struct(result); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			return domain.FoodAnalysisResult{}, &domain.ValidationError{Field: verrs[0].Field(), Reason: verrs[0].Tag()}
		}
		return domain.FoodAnalysisResult{}, &domain.ValidationError{Reason: err.Error()}
	}
	return result, nil
}

func stripFences(raw string) string {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	return strings.TrimSpace(text)
}

func requiredString(fields map[string]any, key string, nonEmpty bool) (string, error) {
	v, ok := fields[key]
	if !ok || v == nil {
		return "", &domain.ValidationError{Field: key, Reason: "missing"}
	}
	s, ok := v.(string)
	if !ok {
		return "", &domain.ValidationError{Field: key, Reason: "not a string"}
	}
	s = strings.TrimSpace(s)
	if nonEmpty && s == "" {
		return "", &domain.ValidationError{Field: key, Reason: "empty"}
	}
	return s, nil
}

func parseCalories(v any) (float64, error) {
	var (
		value float64
		err   error
	)
	switch c := v.(type) {
	case nil:
		return 0, &domain.ValidationError{Field: "calories", Reason: "missing"}
	case json.Number:
		value, err = c.Float64()
	case string:
		value, err = parseCalorieString(c)
	default:
		return 0, &domain.ValidationError{Field: "calories", Reason: "not a number"}
	}
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, &domain.ValidationError{Field: "calories", Reason: "not a number"}
	}
	if value < 0 {
		return 0, &domain.ValidationError{Field: "calories", Reason: "negative"}
	}
	return value, nil
}

func parseCalorieString(s string) (float64, error) {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	for _, suffix := range calorieSuffixes {
		if strings.HasSuffix(lower, suffix) {
			s = strings.TrimSpace(s[:len(s)-len(suffix)])
			break
		}
	}
	// ParseFloat alone also takes hex, underscores, exponents and Inf
	if !decimalPattern.MatchString(s) {
		return 0, strconv.ErrSyntax
	}
	return strconv.ParseFloat(s, 64)
}

func parseTags(v any) ([]string, error) {
	if v == nil {
		return nil, &domain.ValidationError{Field: "tags", Reason: "missing"}
	}
	list, ok := v.([]any)
	if !ok {
		return nil, &domain.ValidationError{Field: "tags", Reason: "not a list"}
	}
	tags := make([]string, 0, len(list))
	for i, item := range list {
		tag, ok := item.(string)
		if !ok {
			return nil, &domain.ValidationError{Field: fmt.Sprintf("tags[%d]", i), Reason: "not a string"}
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

func parseMacros(v any) (*domain.Macros, error) {
	if v == nil {
		return nil, nil
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &domain.ValidationError{Field: "macros", Reason: "not an object"}
	}

	macros := &domain.Macros{}
	for key, dst := range map[string]*string{
		"protein": &macros.Protein,
		"fat":     &macros.Fat,
		"carbs":   &macros.Carbs,
	} {
		switch m := obj[key].(type) {
		case nil:
		case string:
			*dst = m
		case json.Number:
			*dst = m.String()
		default:
			return nil, &domain.ValidationError{Field: "macros." + key, Reason: "not a string"}
		}
	}
	return macros, nil
}
