package session

import "strings"

// CookieName is the cookie the server issues at login.
const CookieName = "user_session"

// ReadCookie extracts the value of the named cookie from a raw Cookie
// header. It mirrors the delimiter search the web client performs: the
// pattern "; name=" must occur exactly once in "; " + header, otherwise the
// result is absent. Because the pattern is anchored on "; ", a name that is
// merely a suffix of another cookie's name never matches.
func ReadCookie(header, name string) (string, bool) {
	padded := "; " + header
	pattern := "; " + name + "="
	if strings.Count(padded, pattern) != 1 {
		return "", false
	}
	value := padded[strings.Index(padded, pattern)+len(pattern):]
	if i := strings.IndexByte(value, ';'); i >= 0 {
		value = value[:i]
	}
	return value, true
}
