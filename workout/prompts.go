package workout

import (
	"strings"
	"text/template"
)

// DefaultMessageMaxChars bounds the delivery message.
const DefaultMessageMaxChars = 900

const systemPrompt = `You are an experienced strength and conditioning coach writing one workout
for one person. Write the full workout: every block, exercise, set count, rep
scheme, load guidance and rest period. Respect the person's equipment,
injuries, schedule and experience level. Keep the session achievable in the
time they have.`

const structuredPrompt = `Convert the workout below into the structured format. Keep every exercise,
in order, grouped into the blocks the workout describes. Do not invent
exercises that are not in the workout. Use an empty string for unknown values.`

const messagePromptTemplate = `Rewrite the workout below as a text message to the person doing it. Use short
lines, one exercise per line with sets and reps, and no markdown. Keep it
under {{.MaxChars}} characters. Reply with the message only.`

var userTemplates = map[Operation]*template.Template{
	Create: parse("create", `Create the workout for {{.Date}}.

## Profile
{{.Profile}}
{{with .Program}}
## Current program
{{.}}
{{end}}{{with .History}}
## Recent workouts
{{.}}
{{end}}{{with .Focus}}
## Focus for this session
{{.}}
{{end}}`),

	Replace: parse("replace", `Replace the workout planned for {{.Date}} with a new one.

## Profile
{{.Profile}}
{{with .Program}}
## Current program
{{.}}
{{end}}{{with .History}}
## Recent workouts
{{.}}
{{end}}
## Planned workout
{{.Current}}

## Why it is being replaced
{{.Reason}}`),

	Substitute: parse("substitute", `Swap one exercise in the workout for {{.Date}} and keep everything else the same.

## Profile
{{.Profile}}

## Workout
{{.Current}}

## Exercise to replace
{{.Exercise}}
{{if .Replacement}}
## Use this instead
{{.Replacement}}
{{else}}
Pick the closest alternative that trains the same movement pattern with the
equipment the person has.
{{end}}`),

	Modify: parse("modify", `The person asked to change the workout for {{.Date}}.

## Profile
{{.Profile}}
{{with .History}}
## Recent workouts
{{.}}
{{end}}
## Workout
{{.Current}}

## Requested changes
{{.Changes}}

Apply the changes if they make sense. If the workout already satisfies the
request, set wasModified to false and return the workout unchanged.`),
}

func parse(name, text string) *template.Template {
	return template.Must(template.New(name).Option("missingkey=error").Parse(text))
}

type promptData struct {
	Request
	Date string
}

func renderUserPrompt(req Request) (string, error) {
	var buf strings.Builder
	if err := userTemplates[req.Operation].Execute(&buf, promptData{Request: req, Date: req.Date.String()}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var messagePrompt = parse("message", messagePromptTemplate)

func renderMessagePrompt(maxChars int) (string, error) {
	var buf strings.Builder
	if err := messagePrompt.Execute(&buf, struct{ MaxChars int }{maxChars}); err != nil {
		return "", err
	}
	return buf.String(), nil
}
