package webid

import "strings"

// Audience is the downstream service a WebID is presented to: none, exactly
// one, or a list. A list of one is still a list and resolves to a list.
type Audience struct {
	values []string
	multi  bool
}

func NoAudience() Audience { return Audience{} }

func SingleAudience(a string) Audience {
	if a = strings.TrimSpace(a); a == "" {
		return Audience{}
	}
	return Audience{values: []string{a}}
}

func Audiences(list ...string) Audience {
	var values []string
	for _, a := range list {
		if a = strings.TrimSpace(a); a != "" {
			values = append(values, a)
		}
	}
	if len(values) == 0 {
		return Audience{}
	}
	return Audience{values: values, multi: true}
}

// ParseAudience reads the query/body form: empty, one value, or a comma-separated list.
func ParseAudience(raw string) Audience {
	if !strings.Contains(raw, ",") {
		return SingleAudience(raw)
	}
	return Audiences(strings.Split(raw, ",")...)
}

func (a Audience) IsNone() bool  { return len(a.values) == 0 }
func (a Audience) IsMulti() bool { return a.multi }

// Values returns the audiences in input order.
func (a Audience) Values() []string {
	return append([]string(nil), a.values...)
}

// First returns the single audience, or "" when there is none.
func (a Audience) First() string {
	if len(a.values) == 0 {
		return ""
	}
	return a.values[0]
}

// String renders the audience the way it is sent in X-WebID-Audience.
func (a Audience) String() string {
	return strings.Join(a.values, ",")
}
