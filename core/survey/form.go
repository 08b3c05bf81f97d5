package survey

import (
	"encoding/json"
	"sort"
	"strings"
)

type (
	// Question is one entry of a form's `content.survey`.
	Question struct {
		Name       string   `json:"name"`
		Type       string   `json:"type"`
		Label      []string `json:"label"`
		XPath      string   `json:"$xpath"`
		ChoiceList string   `json:"select_from_list_name"`
	}

	// Choice is one entry of a form's choice lists.
	Choice struct {
		ListName string   `json:"list_name"`
		Name     string   `json:"name"`
		Label    []string `json:"label"`
	}

	// Choices accepts both the list form (`[{list_name, name, label}]`)
	// and the map form (`{list_name: [{name, label}]}`) of `content.choices`.
	Choices []Choice

	FormContent struct {
		Survey  []Question `json:"survey"`
		Choices Choices    `json:"choices"`
	}

	// Form is the body of `GET assets/{formId}.json`. Only used to label answers for display.
	Form struct {
		UID     string      `json:"uid"`
		Name    string      `json:"name"`
		Content FormContent `json:"content"`
	}

	// LabeledAnswer is a submission answer with its question label and, for select questions, choice labels.
	LabeledAnswer struct {
		Field    string `json:"field"`
		Question string `json:"question"`
		Answer   string `json:"answer"`
	}
)

func (c *Choices) UnmarshalJSON(data []byte) error {
	var list []Choice
	if err := json.Unmarshal(data, &list); err == nil {
		*c = list
		return nil
	}
	var byList map[string][]Choice
	if err := json.Unmarshal(data, &byList); err != nil {
		return err
	}
	names := make([]string, 0, len(byList))
	for name := range byList {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]Choice, 0)
	for _, name := range names {
		for _, ch := range byList[name] {
			ch.ListName = name
			out = append(out, ch)
		}
	}
	*c = out
	return nil
}

func firstLabel(labels []string, fallback string) string {
	for _, l := range labels {
		if l = strings.TrimSpace(l); l != "" {
			return l
		}
	}
	return fallback
}

// Key returns the answer key a question is stored under in submissions.
func (q Question) Key() string {
	if q.XPath != "" {
		return q.XPath
	}
	return q.Name
}

// Labels maps answer keys to question labels. Questions without a name (groups ends, notes...) are skipped.
func (f Form) Labels() map[string]string {
	out := make(map[string]string, len(f.Content.Survey))
	for _, q := range f.Content.Survey {
		if q.Name == "" {
			continue
		}
		out[q.Key()] = firstLabel(q.Label, q.Name)
	}
	return out
}

func (f Form) choiceLabels() map[string]map[string]string {
	out := make(map[string]map[string]string)
	for _, ch := range f.Content.Choices {
		if _, ok := out[ch.ListName]; !ok {
			out[ch.ListName] = make(map[string]string)
		}
		out[ch.ListName][ch.Name] = firstLabel(ch.Label, ch.Name)
	}
	return out
}

func isMetaField(key string) bool {
	return strings.HasPrefix(key, "_") ||
		strings.HasPrefix(key, "meta/") ||
		strings.HasPrefix(key, "formhub/") ||
		key == "start" || key == "end" || key == "__version__"
}

// LabelAnswers renders the non-meta answers of sub using the form's labels.
// Answers of select questions have their choice names replaced by labels (comma separated for multi selects).
// The output follows the form's question order; answers to unknown fields come last, sorted by key.
func (f Form) LabelAnswers(sub Submission) []LabeledAnswer {
	choices := f.choiceLabels()
	seen := make(map[string]bool, len(sub))
	out := make([]LabeledAnswer, 0, len(sub))

	for _, q := range f.Content.Survey {
		key := q.Key()
		if q.Name == "" || seen[key] {
			continue
		}
		ans := sub.String(key)
		if ans == "" {
			continue
		}
		seen[key] = true
		if list, ok := choices[q.ChoiceList]; ok {
			parts := strings.Fields(ans)
			for i, p := range parts {
				if l, ok := list[p]; ok {
					parts[i] = l
				}
			}
			ans = strings.Join(parts, ", ")
		}
		out = append(out, LabeledAnswer{Field: key, Question: firstLabel(q.Label, q.Name), Answer: ans})
	}

	rest := make([]string, 0)
	for key := range sub {
		if !seen[key] && !isMetaField(key) && sub.String(key) != "" {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	for _, key := range rest {
		out = append(out, LabeledAnswer{Field: key, Question: key, Answer: sub.String(key)})
	}
	return out
}
