package config

import (
	"net/url"
	"strings"
)

// RedactURL hides passwords in a connection URL: the userinfo password and
// any password query parameter (as ClickHouse DSNs allow) become "***".
// If the URL cannot be parsed it is returned unchanged.
func RedactURL(raw string) string {
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	redacted := raw

	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			redacted = redactUserinfo(raw)
		}
	}

	if u.Query().Has("password") {
		redacted = redactQueryPassword(redacted)
	}

	return redacted
}

// redactUserinfo replaces the text between "user:" and "@" in the raw string,
// so the rest of the URL keeps its original encoding.
func redactUserinfo(raw string) string {
	schemeEnd := strings.Index(raw, "://")
	if schemeEnd < 0 {
		return raw
	}

	afterScheme := schemeEnd + len("://")

	atIdx := strings.Index(raw[afterScheme:], "@")
	if atIdx < 0 {
		return raw
	}

	userinfo := raw[afterScheme : afterScheme+atIdx]

	colonIdx := strings.Index(userinfo, ":")
	if colonIdx < 0 {
		return raw
	}

	return raw[:afterScheme] + userinfo[:colonIdx+1] + "***" + raw[afterScheme+atIdx:]
}

func redactQueryPassword(raw string) string {
	base, query, found := strings.Cut(raw, "?")
	if !found {
		return raw
	}

	params := strings.Split(query, "&")
	for i, p := range params {
		if k, _, ok := strings.Cut(p, "="); ok && k == "password" {
			params[i] = k + "=***"
		}
	}

	return base + "?" + strings.Join(params, "&")
}
