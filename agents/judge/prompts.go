/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package judge

import (
	"fmt"

	"chainguard.dev/refgrader/agents/promptbuilder"
	"chainguard.dev/refgrader/agents/schema"
	"chainguard.dev/refgrader/grading/category"
)

var evaluabilityTemplate = promptbuilder.MustNewPrompt(`<task>
You are a strict quality reviewer for SAP BW coursework submissions.
Decide whether the attached screenshot can be graded at all.
</task>

<reject_when>
- A context menu, dropdown, dialog or popup covers the content
- It shows a login screen, the SAP Easy Access start page or a transaction picker
- An error message or warning dialog is in the foreground
- The image is blurry, pixelated, too dark or too bright to read
- The screenshot is cut off, or zoomed so far in or out that the content is unusable
- It shows ABAP source code instead of graphical SAP BW models or tables
- It shows unrelated software, an empty screen, a loading screen or "no data"
- The student obviously uploaded the wrong image
</reject_when>

<accept_only_when>
- SAP BW content (tables, diagrams, models) is clearly recognizable
- The quality is good enough to grade
- No interface element hides the content
</accept_only_when>

Be very strict: rejecting a poor image is better than grading it.

<output_format>
Reply with a single JSON object matching this schema:
{{schema}}
</output_format>

Respond with only the JSON object, no markdown fences and no additional text.`)

var attributeTemplate = promptbuilder.MustNewPrompt(`<task>
Analyze the attached {{category}} screenshot from an SAP BW submission and
describe it for fast reference matching.
</task>

<output_format>
Fill in this JSON shape. Replace every "true/false" with a JSON boolean,
every "number" with a JSON number, and every "a/b/c" list with exactly one
of the listed values. Keep every key.
{{shape}}
</output_format>

Respond with only the JSON object, no markdown fences and no additional text.`)

var compareTemplate = promptbuilder.MustNewPrompt(`<task>
The attached image shows two {{category}} screenshots side by side.
LEFT is the student's submission. RIGHT is the reference solution.
Grade how well the student's work matches the reference.
</task>

First check the quality of the student image. If it is unusable (a context
menu covers it, it is completely blurry, it shows the wrong content or only
error messages), set "skip_evaluation" to true, explain why in
"skip_reason", and stop.

<reference_analysis>
{{reference}}
</reference_analysis>

<rubric>
{{emphasis}}
Award points per criterion, never more than its max:
{{rubric}}
Anchors relative to each max: full = as good as the reference, 80-99% very
good, 60-79% good, 40-59% satisfactory, 20-39% poor, below 20% failing.
The overall points are the sum of all criterion points (0-100); 70 or more passes.
</rubric>

<output_format>
Reply with a JSON object shaped like this, each check a JSON boolean and
each points value a JSON number:
{{shape}}
Write feedback, strengths and improvements in German, grounded in concrete
differences you can see between the two images.
</output_format>

Give DIFFERENT points depending on the REAL quality of the student image.
Respond with only the JSON object, no markdown fences and no additional text.`)

func evaluabilityPrompt() (string, error) {
	p, err := evaluabilityTemplate.BindJSON("schema", schema.ReflectType[evaluabilityReply](schema.Strict()))
	if err != nil {
		return "", err
	}
	return p.Build()
}

func attributePrompt(categoryName string) (string, error) {
	shape, err := category.AttributeTemplate(categoryName)
	if err != nil {
		return "", err
	}
	p, err := attributeTemplate.BindString("category", categoryName)
	if err != nil {
		return "", err
	}
	if p, err = p.BindJSON("shape", shape); err != nil {
		return "", err
	}
	return p.Build()
}

type rubricLine struct {
	Criterion string   `yaml:"criterion"`
	Max       float64  `yaml:"max"`
	Checks    []string `yaml:"checks"`
}

func comparePrompt(rubric category.Rubric, reference map[string]any) (string, error) {
	emphasis := "Every criterion carries equal weight."
	if rubric.Mode == category.Custom {
		emphasis = "The reference is the instructor's own solution: half of the points are for matching its content."
	}
	lines := make([]rubricLine, 0, len(rubric.Criteria))
	for _, c := range rubric.Criteria {
		lines = append(lines, rubricLine{Criterion: fmt.Sprintf("%s (%s)", c.Key, c.Title), Max: c.Max, Checks: c.Checks})
	}
	if reference == nil {
		reference = map[string]any{}
	}

	p, err := compareTemplate.BindString("category", rubric.Category)
	if err != nil {
		return "", err
	}
	if p, err = p.BindString("emphasis", emphasis); err != nil {
		return "", err
	}
	if p, err = p.BindYAML("rubric", lines); err != nil {
		return "", err
	}
	if p, err = p.BindJSON("reference", reference); err != nil {
		return "", err
	}
	if p, err = p.BindJSON("shape", replyShape(rubric)); err != nil {
		return "", err
	}
	return p.Build()
}

// replyShape is the example reply shown to the model for a rubric.
func replyShape(rubric category.Rubric) map[string]any {
	shape := map[string]any{
		"skip_evaluation": false,
		"skip_reason":     "",
		"overall": map[string]any{
			"points":       "0-100",
			"feedback":     "...",
			"strengths":    []string{"..."},
			"improvements": []string{"..."},
		},
	}
	for _, c := range rubric.Criteria {
		section := map[string]any{"points": fmt.Sprintf("0-%.0f", c.Max)}
		for _, check := range c.Checks {
			section[check] = "true/false"
		}
		shape[c.Key] = section
	}
	return shape
}
