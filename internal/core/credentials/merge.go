package credentials

import "time"

// SourceAudienceField tags a credential with the audience it was fetched for.
const SourceAudienceField = "_sourceAudience"

// Credential is an opaque verifiable credential document.
type Credential = map[string]any

// merge concatenates per-audience lists in order and keeps one credential
// per id. A duplicate replaces the kept one, in place, only if it has more
// fields or, with equal fields, a strictly newer issuanceDate. Ties keep the
// entry seen first. Credentials without an id are never merged.
//
// Fields are counted recursively: each key counts once, keys of nested
// objects count too (arrays are walked but their elements add no count of
// their own), and the _sourceAudience tag is ignored. So
// {"id":..,"credentialSubject":{"name":..,"age":..}} counts 4.
func merge(lists [][]Credential) []Credential {
	var out []Credential
	pos := make(map[string]int)

	for _, list := range lists {
		for _, cred := range list {
			id, ok := cred["id"].(string)
			if !ok || id == "" {
				out = append(out, cred)
				continue
			}

			i, seen := pos[id]
			if !seen {
				pos[id] = len(out)
				out = append(out, cred)
				continue
			}

			dedupDropped.Inc()
			if preferred(cred, out[i]) {
				out[i] = cred
			}
		}
	}
	if out == nil {
		out = []Credential{}
	}
	return out
}

// preferred reports whether candidate should replace current.
func preferred(candidate, current Credential) bool {
	cf, kf := fieldCount(candidate), fieldCount(current)
	if cf != kf {
		return cf > kf
	}
	return issuanceDate(candidate).After(issuanceDate(current))
}

// fieldCount counts every key of the document, keys of nested objects and of
// objects inside arrays included, except the top-level audience tag this
// gateway adds.
func fieldCount(cred Credential) int {
	n := 0
	for k, v := range cred {
		if k == SourceAudienceField {
			continue
		}
		n += 1 + nestedFields(v)
	}
	return n
}

func nestedFields(v any) int {
	switch t := v.(type) {
	case map[string]any:
		n := 0
		for _, child := range t {
			n += 1 + nestedFields(child)
		}
		return n
	case []any:
		n := 0
		for _, child := range t {
			n += nestedFields(child)
		}
		return n
	}
	return 0
}

// issuanceDate parses the credential's issuanceDate (or validFrom); missing or
// unparseable dates sort as the zero time.
func issuanceDate(cred Credential) time.Time {
	for _, field := range []string{"issuanceDate", "validFrom"} {
		s, ok := cred[field].(string)
		if !ok {
			continue
		}
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

// tag returns a shallow copy of cred carrying the source audience.
func tag(cred Credential, audience string) Credential {
	out := make(Credential, len(cred)+1)
	for k, v := range cred {
		out[k] = v
	}
	out[SourceAudienceField] = audience
	return out
}
