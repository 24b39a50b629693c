package main

import (
	"math/rand"
)

var examples = map[string]string{
	"Analyze a resume against a pasted job description": `talentos resume.pdf -j "Senior Go engineer, Kubernetes, 5+ years"`,
	"Use a job posting from the web, coach tone":        `talentos cv.docx -j https://jobs.example.com/1234 -p candidate`,
	"Save the report and copy it":                      `talentos resume.pdf --jd-file jd.pdf -o reports/ -c`,
	"Pipe the raw report elsewhere":                    `talentos resume.pdf -j file://jd.txt | glow`,
}

func randomExample() (string, string) {
	keys := make([]string, 0, len(examples))
	for k := range examples {
		keys = append(keys, k)
	}
	desc := keys[rand.Intn(len(keys))] //nolint:gosec
	return desc, examples[desc]
}
