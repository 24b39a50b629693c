package main

import (
	"os"
	"strings"

	"github.com/charmbracelet/x/editor"
)

const scissors = "# ------------------------ >8 ------------------------"

const jdTemplate = "\n\n" + scissors + `
# Paste or write the job description above this line.
# Do not modify or remove the line above.
# Everything below it will be ignored.
`

// newJDFile writes the current job description to a temporary Markdown file
// the editor can open.
func newJDFile(current string) (string, error) {
	f, err := os.CreateTemp("", "talentos-jd-*.md")
	if err != nil {
		return "", talentosError{err, "Could not create job description file."}
	}
	defer func() { _ = f.Close() }()
	if _, err := f.WriteString(current + jdTemplate); err != nil {
		return "", talentosError{err, "Could not write job description file."}
	}
	return f.Name(), nil
}

// readJDFile reads back an edited job description, cutting everything from
// the scissors line down, and removes the file.
func readJDFile(path string) (string, error) {
	defer func() { _ = os.Remove(path) }()
	bts, err := os.ReadFile(path)
	if err != nil {
		return "", talentosError{err, "Could not read job description file."}
	}
	return cutScissors(string(bts)), nil
}

// editJD opens the job description in $EDITOR and waits for it to close.
func editJD(current string) (string, error) {
	path, err := newJDFile(current)
	if err != nil {
		return "", err
	}
	c, err := editor.Cmd("talentos", path)
	if err != nil {
		return "", talentosError{err, "Could not edit the job description."}
	}
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	if err := c.Run(); err != nil {
		return "", talentosError{err, "Missing $EDITOR"}
	}
	return readJDFile(path)
}

func cutScissors(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) == scissors {
			lines = lines[:i]
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
