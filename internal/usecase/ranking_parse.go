package usecase

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	jsonArrayPattern  = regexp.MustCompile(`(?s)\[.*?\]`)
	jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)
)

// parseResult is the outcome of decoding free-form model output.
// When ok is false, reason says why and value must not be used.
type parseResult[T any] struct {
	value  T
	ok     bool
	reason string
}

func parsed[T any](v T) parseResult[T] {
	return parseResult[T]{value: v, ok: true}
}

func unparsed[T any](reason string) parseResult[T] {
	return parseResult[T]{reason: reason}
}

// parseKeywordArray extracts the first JSON string array from a completion.
// Blank and repeated keywords are dropped; an array left empty is a failure.
func parseKeywordArray(content string) parseResult[[]string] {
	match := jsonArrayPattern.FindString(content)
	if match == "" {
		return unparsed[[]string]("no JSON array in completion")
	}

	var raw []string
	if err := json.Unmarshal([]byte(match), &raw); err != nil {
		return unparsed[[]string]("invalid keyword array: " + err.Error())
	}

	seen := make(map[string]struct{}, len(raw))
	keywords := make([]string, 0, len(raw))
	for _, k := range raw {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, dup := seen[strings.ToLower(k)]; dup {
			continue
		}
		seen[strings.ToLower(k)] = struct{}{}
		keywords = append(keywords, k)
	}
	if len(keywords) == 0 {
		return unparsed[[]string]("keyword array is empty")
	}
	return parsed(keywords)
}

// parseJSONObject decodes the outermost JSON object of a completion into T.
func parseJSONObject[T any](content string) parseResult[T] {
	match := jsonObjectPattern.FindString(content)
	if match == "" {
		return unparsed[T]("no JSON object in completion")
	}
	var v T
	if err := json.Unmarshal([]byte(match), &v); err != nil {
		return unparsed[T]("invalid JSON object: " + err.Error())
	}
	return parsed(v)
}
