package http11

import (
	"math"
	"strings"
	"time"

	"so-http11-embed/internal/util"
)

// Range es el rango absoluto (base cero, extremos incluidos) que cubre todas
// las byte-ranges pedidas por el cliente.
type Range struct {
	Start int64
	End   int64
}

// Length devuelve el número de bytes que abarca el rango.
func (r Range) Length() int64 { return r.End - r.Start + 1 }

// ParseRange interpreta una lista de byte-range-specs ("-N", "N-", "N-M",
// separadas por comas) contra un recurso de length bytes, devolviendo la
// envolvente [min, max] de todas ellas. Un spec inválido invalida el header
// completo y devuelve nil (RFC2616#14.35.1: ignorar). El extremo superior se
// recorta a length-1; un inicio >= length se devuelve tal cual para que el
// llamador responda 416.
func ParseRange(spec string, length int64) *Range {
	min := int64(math.MaxInt64)
	max := int64(-1)
	for _, token := range util.SplitElements(spec, false) {
		var start, end int64
		dash := strings.IndexByte(token, '-')
		switch {
		case dash == 0: // rango de sufijo: últimos N bytes
			n, err := util.ParseULong(token[1:], 10)
			if err != nil {
				return nil
			}
			start = length - n
			end = length - 1
		case dash == len(token)-1: // rango abierto: de N al final
			n, err := util.ParseULong(token[:dash], 10)
			if err != nil {
				return nil
			}
			start = n
			end = length - 1
		case dash > 0: // rango explícito
			var err error
			if start, err = util.ParseULong(token[:dash], 10); err != nil {
				return nil
			}
			if end, err = util.ParseULong(token[dash+1:], 10); err != nil {
				return nil
			}
		default:
			return nil
		}
		if end < start {
			return nil
		}
		if start < min {
			min = start
		}
		if end > max {
			max = end
		}
	}
	if max < 0 { // sin specs
		return nil
	}
	if max >= length && min < length {
		max = length - 1
	}
	return &Range{Start: min, End: max} // ojo: min puede ser >= length
}

// Match comprueba un ETag contra una lista de candidatos. Hay coincidencia
// si el ETag no es vacío y los candidatos contienen "*" o un tag idéntico.
// "*" coincide con cualquier ETag no vacío; bajo comparación fuerte un tag
// débil (prefijo "W/") nunca coincide con otro tag, aunque sea idéntico
// (RFC2616#3.11, #13.3.3).
func Match(strong bool, etags []string, etag string) bool {
	if etag == "" {
		return false
	}
	for _, e := range etags {
		if e == "*" || e == etag && !(strong && strings.HasPrefix(e, "W/")) {
			return true
		}
	}
	return false
}

// ConditionalStatus calcula el status de respuesta que corresponde a los
// headers condicionales de la petición, dado el instante de última
// modificación y el ETag del recurso. Precedencia: If-Match >
// If-Unmodified-Since > If-None-Match > If-Modified-Since, con force-200
// cuando una precondición posterior indica cambio.
func ConditionalStatus(req *Request, lastModified time.Time, etag string) int {
	headers := req.Headers()
	// If-Match
	if header, ok := headers.Lookup("If-Match"); ok &&
		!Match(true, util.SplitElements(header, false), etag) {
		return 412
	}
	// If-Unmodified-Since
	if date, ok := headers.GetDate("If-Unmodified-Since"); ok && lastModified.After(date) {
		return 412
	}
	// If-Modified-Since
	status := 200
	force := false
	if date, ok := headers.GetDate("If-Modified-Since"); ok && !date.After(time.Now()) {
		if lastModified.After(date) {
			force = true
		} else {
			status = 304
		}
	}
	// If-None-Match
	if header, ok := headers.Lookup("If-None-Match"); ok {
		if Match(false, util.SplitElements(header, false), etag) { // RFC7232#3.2: comparación débil
			if req.Method == "GET" || req.Method == "HEAD" {
				status = 304
			} else {
				status = 412
			}
		} else {
			force = true
		}
	}
	if force {
		return 200
	}
	return status
}
