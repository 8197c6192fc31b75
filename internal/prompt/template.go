package prompt

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	variablePattern = regexp.MustCompile(`\{\{\{?(\w+)\}?\}\}`)
	sectionPattern  = regexp.MustCompile(`(?s)\{\{#if (\w+)\}\}\n?(.*?)\{\{/if\}\}\n?`)
	slotPattern     = regexp.MustCompile(`\x00(\d+)\x00`)
)

// Render fills a template. {{name}} and {{{name}}} are replaced with vars[name];
// a {{#if name}}...{{/if}} section is kept only when vars[name] is non-empty.
// Variables used only inside sections are optional; every other variable must
// be present.
func Render(template string, vars map[string]string) (string, error) {
	missing := findMissingVars(template, vars)
	if len(missing) > 0 {
		return "", fmt.Errorf("missing template variables: %s", strings.Join(missing, ", "))
	}

	result := sectionPattern.ReplaceAllStringFunc(template, func(match string) string {
		m := sectionPattern.FindStringSubmatch(match)
		if strings.TrimSpace(vars[m[1]]) == "" {
			return ""
		}
		return m[2]
	})

	// Blank-line cleanup applies to the template text only; values are
	// spliced in afterwards exactly as given.
	var values []string
	result = variablePattern.ReplaceAllStringFunc(result, func(match string) string {
		val := vars[variablePattern.FindStringSubmatch(match)[1]]
		if val == "" {
			return ""
		}
		values = append(values, val)
		return fmt.Sprintf("\x00%d\x00", len(values)-1)
	})
	result = collapseBlankLines(result)

	return slotPattern.ReplaceAllStringFunc(result, func(match string) string {
		i, _ := strconv.Atoi(match[1 : len(match)-1])
		return values[i]
	}), nil
}

// MustRender is Render for templates defined in code.
func MustRender(template string, vars map[string]string) string {
	out, err := Render(template, vars)
	if err != nil {
		panic(err)
	}
	return out
}

// ExtractVariables returns a list of variable names found in the template.
func ExtractVariables(template string) []string {
	matches := variablePattern.FindAllStringSubmatch(template, -1)
	seen := make(map[string]bool)
	var vars []string
	for _, m := range matches {
		if len(m) > 1 && !seen[m[1]] {
			vars = append(vars, m[1])
			seen[m[1]] = true
		}
	}
	return vars
}

func findMissingVars(template string, vars map[string]string) []string {
	required := ExtractVariables(sectionPattern.ReplaceAllString(template, ""))
	var missing []string
	for _, v := range required {
		if _, ok := vars[v]; !ok {
			missing = append(missing, v)
		}
	}
	return missing
}

var reBlankRun = regexp.MustCompile(`\n{3,}`)

func collapseBlankLines(s string) string {
	return strings.TrimSpace(reBlankRun.ReplaceAllString(s, "\n\n"))
}
