package ycm

import "github.com/tidwall/gjson"

// parseCandidates converts the daemon's completions array into candidates,
// preserving daemon order. Unknown fields are ignored; missing fields
// yield empty strings.
func parseCandidates(result gjson.Result) []CompletionCandidate {
	completions := result.Get("completions")
	if !completions.Exists() || !completions.IsArray() {
		return nil
	}

	raw := completions.Array()
	candidates := make([]CompletionCandidate, 0, len(raw))
	for _, item := range raw {
		candidates = append(candidates, CompletionCandidate{
			InsertionText: item.Get("insertion_text").String(),
			DetailedInfo:  item.Get("detailed_info").String(),
			Kind:          item.Get("kind").String(),
			ExtraMenuInfo: item.Get("extra_menu_info").String(),
			MenuText:      item.Get("menu_text").String(),
		})
	}
	return candidates
}
