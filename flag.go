package main

import (
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/duration"
)

var (
	unknownShorthandRe = regexp.MustCompile(`unknown shorthand flag: '.*' in (-\w)`)
	invalidArgumentRe  = regexp.MustCompile(`invalid argument ".*" for "(.*)" flag: .*`)
)

func newFlagParseError(err error) flagParseError {
	s := err.Error()
	fe := flagParseError{err: err, reason: s}
	switch {
	case strings.HasPrefix(s, "flag needs an argument:"):
		fe.reason = "Flag %s needs an argument."
		fe.flag = lastFlagName(s)
	case strings.HasPrefix(s, "unknown flag:"):
		fe.reason = "Flag %s is missing."
		fe.flag = strings.TrimPrefix(s, "unknown flag: ")
	case strings.HasPrefix(s, "unknown shorthand flag:"):
		fe.reason = "Short flag %s is missing."
		fe.flag = submatch(unknownShorthandRe, s)
	case strings.HasPrefix(s, "invalid argument"):
		fe.reason = "Flag %s has an invalid argument."
		fe.flag = submatch(invalidArgumentRe, s)
	}
	return fe
}

// lastFlagName extracts "-x" or "--name" from the tail of a pflag message.
func lastFlagName(s string) string {
	ps := strings.Split(s, "-")
	switch len(ps) {
	case 2: //nolint:mnd
		return "-" + ps[len(ps)-1]
	case 3: //nolint:mnd
		return "--" + ps[len(ps)-1]
	default:
		return ""
	}
}

func submatch(re *regexp.Regexp, s string) string {
	if parts := re.FindStringSubmatch(s); len(parts) > 1 {
		return parts[1]
	}
	return ""
}

type flagParseError struct {
	err    error
	reason string
	flag   string
}

func (f flagParseError) Error() string {
	return f.err.Error()
}

func (f flagParseError) ReasonFormat() string {
	return f.reason
}

func (f flagParseError) Flag() string {
	return f.flag
}

// durationFlag accepts day and week units on top of time.ParseDuration.
type durationFlag time.Duration

func newDurationFlag(val time.Duration, p *time.Duration) *durationFlag {
	*p = val
	return (*durationFlag)(p)
}

func (d *durationFlag) Set(s string) error {
	v, err := duration.Parse(s)
	*d = durationFlag(v)
	//nolint: wrapcheck
	return err
}

func (d *durationFlag) String() string {
	return time.Duration(*d).String()
}

func (*durationFlag) Type() string {
	return "duration"
}
