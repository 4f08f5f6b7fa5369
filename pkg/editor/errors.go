package editor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nstogner/eastworld-studio/pkg/client"
)

// Errors maps a field path such as "name" or "actions.0.name" to a message.
type Errors map[string]string

func (e Errors) Empty() bool { return len(e) == 0 }

// String lists the errors in field order.
func (e Errors) String() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %s", k, e[k])
	}
	return strings.Join(parts, "; ")
}

// fromValidation converts a 422 detail list into field errors. The leading
// "body" or "query" location is dropped.
func fromValidation(verr *client.ValidationError) Errors {
	errs := Errors{}
	if len(verr.Detail) == 0 {
		errs[""] = strings.TrimSpace(string(verr.Body))
		return errs
	}
	for _, d := range verr.Detail {
		loc := d.Loc
		if len(loc) > 0 {
			if s, ok := loc[0].(string); ok && (s == "body" || s == "query") {
				loc = loc[1:]
			}
		}
		parts := make([]string, len(loc))
		for i, p := range loc {
			parts[i] = fmt.Sprint(p)
		}
		key := strings.Join(parts, ".")
		if _, ok := errs[key]; !ok {
			errs[key] = d.Msg
		}
	}
	return errs
}
