package metadb

import (
	"net/mail"
	"regexp"
	"strings"
	"time"
)

var addressPattern = regexp.MustCompile(`<([^>]+)>|(\S+@\S+)`)

// ParseAddress достаёт адрес и домен из "Name <user@domain>" или "user@domain".
// Адрес приводится к нижнему регистру; домен без "@" - "unknown".
func ParseAddress(s string) (email, domain string) {
	m := addressPattern.FindStringSubmatch(s)
	if m == nil {
		return strings.ToLower(s), "unknown"
	}

	email = m[1]
	if email == "" {
		email = m[2]
	}
	email = strings.ToLower(strings.TrimSpace(email))

	domain = "unknown"
	if i := strings.LastIndex(email, "@"); i >= 0 {
		domain = email[i+1:]
	}
	return email, domain
}

// ParseAddressList разбирает список получателей. Сначала RFC 5322
// (запятые внутри кавычек не режут адрес), при ошибке - поиск адресов регуляркой.
func ParseAddressList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	if list, err := mail.ParseAddressList(s); err == nil {
		out := make([]string, 0, len(list))
		for _, a := range list {
			out = append(out, strings.ToLower(a.Address))
		}
		return out
	}

	var out []string
	for _, m := range addressPattern.FindAllStringSubmatch(s, -1) {
		email := m[1]
		if email == "" {
			email = m[2]
		}
		email = strings.ToLower(strings.Trim(email, ` ,;<>"'`))
		if email != "" {
			out = append(out, email)
		}
	}
	return out
}

// ParseDate разбирает заголовок Date (RFC 5322) и возвращает время в UTC.
// Неразборчивая дата заменяется текущим временем.
func ParseDate(s string, now func() time.Time) time.Time {
	if t, err := mail.ParseDate(strings.TrimSpace(s)); err == nil {
		return t.UTC()
	}
	return now().UTC()
}
