package http11

import (
	"fmt"
	"time"
)

// statusText asocia cada código soportado a su reason phrase.
var statusText = map[int]string{
	100: "Continue",
	200: "OK",
	204: "No Content",
	206: "Partial Content",
	301: "Moved Permanently",
	302: "Found",
	304: "Not Modified",
	307: "Temporary Redirect",
	400: "Bad Request",
	401: "Unauthorized",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	408: "Request Timeout",
	412: "Precondition Failed",
	413: "Request Entity Too Large",
	414: "Request-URI Too Large",
	416: "Requested Range Not Satisfiable",
	417: "Expectation Failed",
	500: "Internal Server Error",
	501: "Not Implemented",
	502: "Bad Gateway",
	503: "Service Unavailable",
	504: "Gateway Time-out",
}

// StatusText devuelve la reason phrase del código, o "Unknown Status" para
// códigos fuera de la tabla (que siguen siendo válidos en la línea de status).
func StatusText(code int) string {
	if text, ok := statusText[code]; ok {
		return text
	}
	return "Unknown Status"
}

// rfc1123 es el único formato que se genera; en recepción se aceptan además
// RFC 850 y asctime por compatibilidad con clientes antiguos.
const rfc1123 = "Mon, 02 Jan 2006 15:04:05 GMT"

var dateLayouts = []string{
	time.RFC1123, // Sun, 06 Nov 1994 08:49:37 GMT
	time.RFC850,  // Sunday, 06-Nov-94 08:49:37 GMT
	time.ANSIC,   // Sun Nov  6 08:49:37 1994
}

// ParseDate interpreta una fecha en cualquiera de los formatos soportados,
// normalizada a UTC.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date format: %q", s)
}

// FormatDate formatea un instante en RFC 1123 sobre GMT. Cubre el rango de
// años 0001-9999.
func FormatDate(t time.Time) string {
	return t.UTC().Format(rfc1123)
}
